package wazero

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/errors"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/hostfuncs"
)

// EngineName is the name the engine registers under.
const EngineName = entities.EngineWazero

// Guest exports used outside class methods.
const (
	exportAllocate   = "allocate"
	exportDeallocate = "deallocate"
	exportInitialize = "_initialize"
)

type engineConfig struct {
	logger         *slog.Logger
	registry       *hostfuncs.HandlerRegistry
	cacheDir       string
	maxRequestSize uint32
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:         slog.Default(),
		maxRequestSize: hostfuncs.DefaultMaxRequestSize,
	}
}

// Option configures the Engine.
type Option func(*engineConfig)

// WithLogger sets the logger for guest output and adapter failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegistry replaces the host function registry exported to guests.
func WithRegistry(r *hostfuncs.HandlerRegistry) Option {
	return func(c *engineConfig) {
		c.registry = r
	}
}

// WithCacheDir persists compiled modules in dir across processes.
func WithCacheDir(dir string) Option {
	return func(c *engineConfig) {
		c.cacheDir = dir
	}
}

// WithMaxRequestSize caps accessor requests read from guest memory.
func WithMaxRequestSize(size uint32) Option {
	return func(c *engineConfig) {
		if size > 0 {
			c.maxRequestSize = size
		}
	}
}

// Engine implements ports.Engine on wazero. A runtime is created on every
// Start and closed on Shutdown; compiled modules survive restarts through
// the compilation cache.
type Engine struct {
	config  engineConfig
	cache   wazero.CompilationCache
	runtime wazero.Runtime
	home    string
	nextID  int
	mu      sync.Mutex
}

// NewEngine creates an engine. Without WithRegistry the accessor registry
// is built with logging middleware on the engine logger.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		r, err := hostfuncs.NewAccessorRegistry(
			hostfuncs.WithMiddleware(hostfuncs.LoggingMiddleware(cfg.logger)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build accessor registry: %w", err)
		}
		cfg.registry = r
	}

	cache := wazero.NewCompilationCache()
	if cfg.cacheDir != "" {
		c, err := wazero.NewCompilationCacheWithDir(cfg.cacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open compilation cache: %w", err)
		}
		cache = c
	}
	return &Engine{config: cfg, cache: cache}, nil
}

// Name implements ports.Engine.
func (e *Engine) Name() string {
	return EngineName
}

// Start implements ports.Engine.
func (e *Engine) Start(ctx context.Context, opts ports.StartOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runtime != nil {
		return nil
	}
	if opts.Home != "" {
		info, err := os.Stat(opts.Home)
		if err != nil {
			return fmt.Errorf("runtime home: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("runtime home %s is not a directory", opts.Home)
		}
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCompilationCache(e.cache))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("failed to instantiate WASI: %w", err)
	}
	err := RegisterWithRuntime(ctx, rt, e.config.registry,
		WithAdapterMaxRequestSize(e.config.maxRequestSize),
		WithAdapterLogger(e.config.logger),
	)
	if err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("failed to register host functions: %w", err)
	}

	e.runtime = rt
	e.home = opts.Home
	return nil
}

// NewContext implements ports.Engine.
func (e *Engine) NewContext(_ context.Context) (ports.ScriptContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runtime == nil {
		return nil, errors.ErrRuntimeNotStarted
	}
	e.nextID++
	return &Context{engine: e, runtime: e.runtime, home: e.home, id: e.nextID}, nil
}

// Shutdown implements ports.Engine. Every module still open is closed
// with the runtime.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runtime == nil {
		return nil
	}
	err := e.runtime.Close(ctx)
	e.runtime = nil
	e.home = ""
	return err
}

// Close releases the compilation cache. The engine must be shut down.
func (e *Engine) Close(ctx context.Context) error {
	if err := e.Shutdown(ctx); err != nil {
		return err
	}
	return e.cache.Close(ctx)
}

var _ ports.Engine = (*Engine)(nil)
