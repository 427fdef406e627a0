// Package hostfuncs implements the host accessor shim: the functions a
// measure script uses to reach back into the host (read options, log, run
// host commands). Every call is routed through an immutable HandlerRegistry
// of JSON handlers so that all engines, native or WebAssembly, share one
// dispatch path and one error format.
//
// The package has no scripting-runtime dependencies.
package hostfuncs
