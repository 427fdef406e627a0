package goja

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/errors"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/hostfuncs"
)

// EngineName is the name the engine registers under.
const EngineName = entities.EngineGoja

// engineConfig holds configuration for the Engine.
type engineConfig struct {
	logger   *slog.Logger
	registry *hostfuncs.HandlerRegistry
	readFile func(name string) ([]byte, error)
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:   slog.Default(),
		readFile: os.ReadFile,
	}
}

// Option configures the Engine.
type Option func(*engineConfig)

// WithLogger sets the logger receiving print and console output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegistry replaces the host function registry the accessor dispatches
// through. It must contain the accessor bundle.
func WithRegistry(r *hostfuncs.HandlerRegistry) Option {
	return func(c *engineConfig) {
		c.registry = r
	}
}

// WithReadFile replaces the function the require loader reads modules with.
func WithReadFile(fn func(name string) ([]byte, error)) Option {
	return func(c *engineConfig) {
		if fn != nil {
			c.readFile = fn
		}
	}
}

// Engine implements ports.Engine on goja. Each context owns a separate
// goja.Runtime; the bridge's execution lock keeps calls sequential.
type Engine struct {
	config  engineConfig
	home    string
	nextID  int
	started bool
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
	for _, name := range []string{hostfuncs.FuncReadString, hostfuncs.FuncSetMaxValue} {
		if !cfg.registry.Has(name) {
			return nil, fmt.Errorf("registry lacks accessor function %s", name)
		}
	}
	return &Engine{config: cfg}, nil
}

// Name implements ports.Engine.
func (e *Engine) Name() string {
	return EngineName
}

// Start implements ports.Engine. A non-empty home directory is put first
// on the search path of every context.
func (e *Engine) Start(_ context.Context, opts ports.StartOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if opts.Home != "" {
		info, err := os.Stat(opts.Home)
		if err != nil {
			return fmt.Errorf("runtime home: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("runtime home %s is not a directory", opts.Home)
		}
	}
	e.home = opts.Home
	e.started = true
	return nil
}

// NewContext implements ports.Engine.
func (e *Engine) NewContext(_ context.Context) (ports.ScriptContext, error) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil, errors.ErrRuntimeNotStarted
	}
	e.nextID++
	id, home := e.nextID, e.home
	e.mu.Unlock()

	c, err := newContext(e, id)
	if err != nil {
		return nil, err
	}
	if home != "" {
		c.AddSearchPath(home)
	}
	return c, nil
}

// Shutdown implements ports.Engine.
func (e *Engine) Shutdown(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = false
	e.home = ""
	return nil
}

var _ ports.Engine = (*Engine)(nil)
