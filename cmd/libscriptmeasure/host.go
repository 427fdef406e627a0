package main

/*
#include "smhost.h"
*/
import "C"

import (
	"context"
	"log/slog"
	"unsafe"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/internal/abi"
	hostlog "github.com/reglet-dev/scriptmeasure/log"
)

// maxHostStringUnits bounds strings read from host memory.
const maxHostStringUnits = 1 << 16

// cHost implements ports.HostAPI over the host callback table for one rm
// pointer. Without a table every read returns its default.
type cHost struct {
	api *C.SMHostAPI
	rm  unsafe.Pointer
}

func newCHost(api *C.SMHostAPI, rm unsafe.Pointer) *cHost {
	return &cHost{api: api, rm: rm}
}

// withWide passes s to fn as a temporary C string.
func withWide(s string, fn func(p *C.uint16_t)) {
	w, err := abi.NewWideString(cAllocator{}, s)
	if err != nil {
		fn(nil)
		return
	}
	defer w.Free()
	fn((*C.uint16_t)(w.Ptr()))
}

func hostString(p *C.uint16_t) (string, bool) {
	if p == nil {
		return "", false
	}
	return abi.DecodeWide(unsafe.Pointer(p), maxHostStringUnits), true
}

func (h *cHost) ReadString(option, defValue string, substitute bool) (string, bool) {
	if h.api == nil {
		return defValue, true
	}
	replace := C.int(0)
	if substitute {
		replace = 1
	}
	var out string
	var ok bool
	withWide(option, func(o *C.uint16_t) {
		withWide(defValue, func(d *C.uint16_t) {
			out, ok = hostString(C.sm_read_string(h.api, h.rm, o, d, replace))
		})
	})
	return out, ok
}

func (h *cHost) ReadPath(option, defValue string) (string, bool) {
	if h.api == nil {
		return defValue, true
	}
	var out string
	var ok bool
	withWide(option, func(o *C.uint16_t) {
		withWide(defValue, func(d *C.uint16_t) {
			out, ok = hostString(C.sm_read_path(h.api, h.rm, o, d))
		})
	})
	return out, ok
}

func (h *cHost) ReadDouble(option string, defValue float64) float64 {
	if h.api == nil {
		return defValue
	}
	var out float64
	withWide(option, func(o *C.uint16_t) {
		out = float64(C.sm_read_double(h.api, h.rm, o, C.double(defValue)))
	})
	return out
}

func (h *cHost) ReadInt(option string, defValue int) int {
	if h.api == nil {
		return defValue
	}
	var out int
	withWide(option, func(o *C.uint16_t) {
		out = int(C.sm_read_int(h.api, h.rm, o, C.int(defValue)))
	})
	return out
}

func (h *cHost) MeasureName() string {
	if h.api == nil {
		return ""
	}
	name, _ := hostString(C.sm_get_measure_name(h.api, h.rm))
	return name
}

func (h *cHost) Execute(command string) {
	if h.api == nil {
		return
	}
	withWide(command, func(c *C.uint16_t) {
		C.sm_execute(h.api, h.rm, c)
	})
}

func (h *cHost) Log(level entities.LogLevel, message string) {
	if h.api == nil {
		slog.Log(context.Background(), hostlog.SlogLevel(level), message)
		return
	}
	withWide(message, func(m *C.uint16_t) {
		C.sm_log(h.api, h.rm, C.int(level), m)
	})
}

// reportError logs err to the host, or to slog when no host is installed.
func reportError(api ports.HostAPI, err error) {
	api.Log(entities.LogError, err.Error())
}

var _ ports.HostAPI = (*cHost)(nil)
