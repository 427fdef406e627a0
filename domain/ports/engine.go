package ports

import "context"

// StartOptions configures Engine.Start.
type StartOptions struct {
	// Home is the runtime home directory. Empty keeps the engine default.
	Home string
}

// Engine is an embedded scripting runtime driven by the bridge.
// Engines are not safe for concurrent use; the bridge serializes every
// call through its execution lock.
type Engine interface {
	// Name identifies the engine (e.g. "goja").
	Name() string

	// Start initializes the runtime. It is called once per 0→1 transition
	// of live instances.
	Start(ctx context.Context, opts StartOptions) error

	// NewContext creates an execution context isolated from all others.
	NewContext(ctx context.Context) (ScriptContext, error)

	// Shutdown tears the runtime down. Contexts must already be closed.
	Shutdown(ctx context.Context) error
}

// ScriptContext is an isolated evaluation environment inside an engine.
type ScriptContext interface {
	// AddSearchPath registers dir in the module search path. It returns
	// false when dir was already present.
	AddSearchPath(dir string) bool

	// SearchPath returns a copy of the module search path.
	SearchPath() []string

	// RunSource executes src into a fresh top-level namespace. displayName
	// identifies the source in diagnostics.
	RunSource(ctx context.Context, displayName string, src []byte) (Namespace, error)

	// Close releases the context.
	Close(ctx context.Context) error
}

// Namespace is the set of top-level symbols produced by one RunSource.
type Namespace interface {
	// Lookup resolves a symbol. Dotted names walk nested properties.
	Lookup(ctx context.Context, name string) (Symbol, bool)
}

// Symbol is a constructible script value.
type Symbol interface {
	// Instantiate calls the symbol with no arguments and returns the instance.
	Instantiate(ctx context.Context) (ScriptObject, error)
}

// ScriptObject is an instantiated script handler. Methods are resolved by
// name at call time; a missing method yields errors.ErrMethodNotFound.
//
// Arguments are Go values: string, float64, int, bool, *MaxValue and
// Accessor. Engines convert them to their native representation.
type ScriptObject interface {
	Call(ctx context.Context, method string, args ...any) (Value, error)
}

// Accessor marks the host accessor argument passed to Reload. Engines bind
// it to script-visible functions.
type Accessor interface {
	// Binding returns the host API the accessor forwards to.
	Binding() HostAPI
}
