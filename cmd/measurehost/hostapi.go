package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/reglet-dev/scriptmeasure/config"
	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	hostlog "github.com/reglet-dev/scriptmeasure/log"
)

// hostAPI serves one measure from its skin options. Commands are queued:
// the bridge holds its execution lock while a script runs them.
type hostAPI struct {
	name    string
	logger  *slog.Logger
	queue   *bangQueue
	options *config.Options
	mu      sync.RWMutex
}

func newHostAPI(name string, options *config.Options, queue *bangQueue, logger *slog.Logger) *hostAPI {
	return &hostAPI{
		name:    name,
		options: options,
		queue:   queue,
		logger:  logger.With("measure", name),
	}
}

func (h *hostAPI) opts() *config.Options {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.options
}

// setOptions replaces the options after a skin reload.
func (h *hostAPI) setOptions(o *config.Options) {
	h.mu.Lock()
	h.options = o
	h.mu.Unlock()
}

func (h *hostAPI) ReadString(option, defValue string, substitute bool) (string, bool) {
	return h.opts().ReadString(option, defValue, substitute)
}

func (h *hostAPI) ReadPath(option, defValue string) (string, bool) {
	return h.opts().ReadPath(option, defValue)
}

func (h *hostAPI) ReadDouble(option string, defValue float64) float64 {
	return h.opts().ReadDouble(option, defValue)
}

func (h *hostAPI) ReadInt(option string, defValue int) int {
	return h.opts().ReadInt(option, defValue)
}

func (h *hostAPI) MeasureName() string {
	return h.name
}

func (h *hostAPI) Execute(command string) {
	h.queue.push(h.name, command)
}

func (h *hostAPI) Log(level entities.LogLevel, message string) {
	h.logger.Log(context.Background(), hostlog.SlogLevel(level), message)
}

var _ ports.HostAPI = (*hostAPI)(nil)
