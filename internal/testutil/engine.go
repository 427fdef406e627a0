package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/reglet-dev/scriptmeasure/domain/errors"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
)

// MockEngine is a scriptable ports.Engine. Sources are "run" by
// RunSourceFunc, which decides what namespace a load produces.
type MockEngine struct {
	StartFunc      func(ctx context.Context, opts ports.StartOptions) error
	ShutdownFunc   func(ctx context.Context) error
	NewContextFunc func(ctx context.Context) error
	RunSourceFunc  func(ctx context.Context, sc *MockContext, name string, src []byte) (ports.Namespace, error)
	EngineName     string

	mu      sync.Mutex
	stats   MockEngineStats
	running bool
}

// MockEngineStats counts engine lifecycle events.
type MockEngineStats struct {
	Homes     []string
	Starts    int
	Shutdowns int
	Opened    int
	Closed    int
}

func (e *MockEngine) Name() string {
	if e.EngineName == "" {
		return "mock"
	}
	return e.EngineName
}

func (e *MockEngine) Start(ctx context.Context, opts ports.StartOptions) error {
	if e.StartFunc != nil {
		if err := e.StartFunc(ctx, opts); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.Starts++
	e.stats.Homes = append(e.stats.Homes, opts.Home)
	e.running = true
	return nil
}

func (e *MockEngine) NewContext(ctx context.Context) (ports.ScriptContext, error) {
	if e.NewContextFunc != nil {
		if err := e.NewContextFunc(ctx); err != nil {
			return nil, err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil, errors.ErrRuntimeNotStarted
	}
	e.stats.Opened++
	return &MockContext{engine: e}, nil
}

func (e *MockEngine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stats.Shutdowns++
	e.running = false
	e.mu.Unlock()
	if e.ShutdownFunc != nil {
		return e.ShutdownFunc(ctx)
	}
	return nil
}

// Stats returns a copy of the lifecycle counters.
func (e *MockEngine) Stats() MockEngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Homes = slices.Clone(e.stats.Homes)
	return s
}

// Running reports whether Start succeeded without a later Shutdown.
func (e *MockEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// MockContext is the ports.ScriptContext handed out by MockEngine.
type MockContext struct {
	engine *MockEngine
	paths  []string
	runs   []string
	closed bool
}

func (c *MockContext) AddSearchPath(dir string) bool {
	if slices.Contains(c.paths, dir) {
		return false
	}
	c.paths = append(c.paths, dir)
	return true
}

func (c *MockContext) SearchPath() []string {
	return slices.Clone(c.paths)
}

func (c *MockContext) RunSource(ctx context.Context, name string, src []byte) (ports.Namespace, error) {
	if c.closed {
		return nil, fmt.Errorf("context closed")
	}
	c.runs = append(c.runs, name)
	if c.engine.RunSourceFunc == nil {
		return MockNamespace{}, nil
	}
	return c.engine.RunSourceFunc(ctx, c, name, src)
}

func (c *MockContext) Close(_ context.Context) error {
	if c.closed {
		return fmt.Errorf("context already closed")
	}
	c.closed = true
	c.engine.mu.Lock()
	c.engine.stats.Closed++
	c.engine.mu.Unlock()
	return nil
}

// Runs lists the display names passed to RunSource.
func (c *MockContext) Runs() []string {
	return slices.Clone(c.runs)
}

// Closed reports whether Close was called.
func (c *MockContext) Closed() bool {
	return c.closed
}

// MockNamespace maps names to symbols.
type MockNamespace map[string]ports.Symbol

func (n MockNamespace) Lookup(_ context.Context, name string) (ports.Symbol, bool) {
	s, ok := n[name]
	return s, ok
}

// SymbolFunc adapts a constructor function to ports.Symbol.
type SymbolFunc func(ctx context.Context) (ports.ScriptObject, error)

func (f SymbolFunc) Instantiate(ctx context.Context) (ports.ScriptObject, error) {
	return f(ctx)
}

// MethodFunc implements one script method.
type MethodFunc func(ctx context.Context, args ...any) (ports.Value, error)

// MockObject is a ports.ScriptObject with methods looked up by name.
type MockObject struct {
	Methods map[string]MethodFunc
	mu      sync.Mutex
	calls   []string
}

func (o *MockObject) Call(ctx context.Context, method string, args ...any) (ports.Value, error) {
	o.mu.Lock()
	o.calls = append(o.calls, method)
	fn, ok := o.Methods[method]
	o.mu.Unlock()
	if !ok {
		return ports.Undefined(), errors.ErrMethodNotFound
	}
	return fn(ctx, args...)
}

// Calls returns the method names called so far.
func (o *MockObject) Calls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.calls)
}

// CallCount returns how often method was called.
func (o *MockObject) CallCount(method string) int {
	n := 0
	for _, c := range o.Calls() {
		if c == method {
			n++
		}
	}
	return n
}
