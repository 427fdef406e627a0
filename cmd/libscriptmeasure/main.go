// Package main builds libscriptmeasure, the C ABI of the measure bridge.
// Build with: go build -buildmode=c-shared -o libscriptmeasure.so .
//
// The host calls SetHostAPI once with its callback table, then drives each
// measure through Initialize, Reload, Update, GetString, ExecuteBang and
// Finalize. Strings crossing the boundary are NUL-terminated UTF-16.
package main

/*
#include <stdlib.h>
#include "smhost.h"
*/
import "C"

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"github.com/reglet-dev/scriptmeasure"
	"github.com/reglet-dev/scriptmeasure/internal/abi"
)

func main() {}

var (
	pluginOnce sync.Once
	plugin     *scriptmeasure.Plugin
	pluginErr  error

	hostMu  sync.RWMutex
	hostAPI *C.SMHostAPI
)

// getPlugin creates the process-wide plugin on first use.
func getPlugin() (*scriptmeasure.Plugin, error) {
	pluginOnce.Do(func() {
		opts, err := bridgeOptionsFromEnv(os.Getenv)
		if err != nil {
			pluginErr = err
			return
		}
		plugin, pluginErr = scriptmeasure.New(
			scriptmeasure.WithBridgeOptions(opts...),
			scriptmeasure.WithAllocator(cAllocator{}),
		)
	})
	return plugin, pluginErr
}

func currentHostAPI() *C.SMHostAPI {
	hostMu.RLock()
	defer hostMu.RUnlock()
	return hostAPI
}

// SetHostAPI installs the host callback table. The table must stay valid
// until the library is unloaded.
//
//export SetHostAPI
func SetHostAPI(api *C.SMHostAPI) {
	hostMu.Lock()
	hostAPI = api
	hostMu.Unlock()
}

// Initialize creates a measure and stores its handle in *data. On failure
// *data is left NULL and the error goes to the host log.
//
//export Initialize
func Initialize(data *unsafe.Pointer, rm unsafe.Pointer) {
	api := newCHost(currentHostAPI(), rm)
	p, err := getPlugin()
	if err == nil {
		var h scriptmeasure.Handle
		h, err = p.Create(context.Background(), api)
		if err == nil {
			C.sm_set_handle(data, C.uintptr_t(h))
			return
		}
	}
	reportError(api, fmt.Errorf("scriptmeasure: initialize: %w", err))
}

//export Reload
func Reload(data unsafe.Pointer, rm unsafe.Pointer, maxValue *C.double) {
	p, h, ok := resolve(data)
	if !ok {
		return
	}
	var mv float64
	if maxValue != nil {
		mv = float64(*maxValue)
	}
	p.Reload(context.Background(), h, newCHost(currentHostAPI(), rm), &mv)
	if maxValue != nil {
		*maxValue = C.double(mv)
	}
}

//export Update
func Update(data unsafe.Pointer) C.double {
	p, h, ok := resolve(data)
	if !ok {
		return 0
	}
	return C.double(p.Update(context.Background(), h))
}

// GetString returns a buffer owned by the measure. It stays valid until the
// next GetString or Finalize on the same measure.
//
//export GetString
func GetString(data unsafe.Pointer) *C.uint16_t {
	p, h, ok := resolve(data)
	if !ok {
		return nil
	}
	return (*C.uint16_t)(p.Stringify(context.Background(), h))
}

//export ExecuteBang
func ExecuteBang(data unsafe.Pointer, args *C.uint16_t) {
	p, h, ok := resolve(data)
	if !ok {
		return
	}
	p.Command(context.Background(), h, abi.DecodeWide(unsafe.Pointer(args), maxHostStringUnits))
}

//export Finalize
func Finalize(data unsafe.Pointer) {
	p, h, ok := resolve(data)
	if !ok {
		return
	}
	if err := p.Destroy(context.Background(), h); err != nil {
		slog.Warn("scriptmeasure: finalize failed", "handle", uint64(h), "error", err)
	}
}

func resolve(data unsafe.Pointer) (*scriptmeasure.Plugin, scriptmeasure.Handle, bool) {
	h := scriptmeasure.Handle(C.sm_handle(data))
	if h == 0 {
		return nil, 0, false
	}
	p, err := getPlugin()
	if err != nil {
		return nil, 0, false
	}
	return p, h, true
}
