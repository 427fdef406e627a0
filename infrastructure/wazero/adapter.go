package wazero

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/scriptmeasure/hostfuncs"
	"github.com/reglet-dev/scriptmeasure/internal/abi"
)

// HostModuleName is the import module guests use for accessor functions.
const HostModuleName = "measure_host"

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Logger receives adapter failures. Default is slog.Default().
	Logger *slog.Logger

	// ModuleName is the host module name (default: "measure_host").
	ModuleName string

	// MaxRequestSize limits the size of incoming requests from guest memory.
	// Default is 1MB.
	MaxRequestSize uint32
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name (default: "measure_host").
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithAdapterMaxRequestSize sets the maximum request size from guest memory.
func WithAdapterMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxRequestSize = size
	}
}

// WithAdapterLogger sets the logger for adapter failures.
func WithAdapterLogger(logger *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Logger:         slog.Default(),
		ModuleName:     HostModuleName,
		MaxRequestSize: hostfuncs.DefaultMaxRequestSize,
	}
}

// RegisterWithRuntime exports every handler of registry from a host module
// on runtime. Each export has the signature (i64) -> i64: the packed
// request is read from guest memory, the handler invoked, and the response
// written back through the guest's allocate export.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.HandlerRegistry, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)
	for _, name := range registry.Names() {
		funcName := name
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				handleRegistryCall(ctx, mod, stack, registry, funcName, cfg)
			}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
			Export(funcName)
	}

	_, err := builder.Instantiate(ctx)
	return err
}

// handleRegistryCall handles a host function call from WASM.
func handleRegistryCall(ctx context.Context, mod api.Module, stack []uint64, registry *hostfuncs.HandlerRegistry, name string, cfg AdapterConfig) {
	ptr, length, ok := unpack(stack[0])
	if !ok {
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.NewValidationError("null request pointer with non-zero length"), cfg.Logger)
		return
	}

	if length > cfg.MaxRequestSize {
		errMsg := fmt.Sprintf("request size %d exceeds maximum %d bytes", length, cfg.MaxRequestSize)
		cfg.Logger.ErrorContext(ctx, "wazero: "+errMsg, "function", name)
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.NewValidationError(errMsg), cfg.Logger)
		return
	}

	var request []byte
	if length > 0 {
		b, ok := mod.Memory().Read(ptr, length)
		if !ok {
			errMsg := "failed to read request from guest memory"
			cfg.Logger.ErrorContext(ctx, "wazero: "+errMsg, "function", name)
			stack[0] = writeErrorResponse(ctx, mod, hostfuncs.NewInternalError(errMsg), cfg.Logger)
			return
		}
		// Copy out: the handler may call back into the guest.
		request = append([]byte(nil), b...)
	}

	response, err := registry.Invoke(ctx, name, request)
	if err != nil {
		cfg.Logger.ErrorContext(ctx, "wazero: handler invocation failed", "function", name, "error", err)
		stack[0] = writeErrorResponse(ctx, mod, hostfuncs.NewInternalError(err.Error()), cfg.Logger)
		return
	}

	stack[0] = writeResponse(ctx, mod, response, cfg.Logger)
}

// writeResponse allocates memory in the guest and writes data there.
// Returns packed ptr+len or 0 on failure.
func writeResponse(ctx context.Context, mod api.Module, data []byte, logger *slog.Logger) uint64 {
	if len(data) == 0 {
		return 0
	}
	ptr, err := guestAlloc(ctx, mod, data)
	if err != nil {
		logger.ErrorContext(ctx, "wazero: failed to write response", "module", mod.Name(), "error", err)
		return 0
	}
	return abi.PackPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: bounded by guest memory
}

// writeErrorResponse writes an error response to guest memory.
func writeErrorResponse(ctx context.Context, mod api.Module, errResp hostfuncs.ErrorResponse, logger *slog.Logger) uint64 {
	return writeResponse(ctx, mod, errResp.ToJSON(), logger)
}

// guestAlloc copies data into memory obtained from the guest's allocate.
func guestAlloc(ctx context.Context, mod api.Module, data []byte) (uint32, error) {
	allocateFn := mod.ExportedFunction(exportAllocate)
	if allocateFn == nil {
		return 0, fmt.Errorf("guest module missing %q export", exportAllocate)
	}
	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("guest allocate: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("guest allocate returned no result")
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 {
		return 0, fmt.Errorf("guest allocate returned null for %d bytes", len(data))
	}
	if !mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("write of %d bytes at %#x out of range", len(data), ptr)
	}
	return ptr, nil
}

// unpack splits a packed ptr/len, rejecting a null pointer with a length.
func unpack(packed uint64) (ptr, length uint32, ok bool) {
	if uint32(packed>>32) == 0 && uint32(packed) != 0 { //nolint:gosec // G115: packed 32-bit halves
		return 0, 0, false
	}
	ptr, length = abi.UnpackPtrLen(packed)
	return ptr, length, true
}
