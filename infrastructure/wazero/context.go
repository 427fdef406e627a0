package wazero

import (
	"context"
	stdErrors "errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/scriptmeasure/domain/ports"
)

// Context is a set of module instances sharing a search path. Modules are
// anonymous, so the same binary can be loaded into many contexts.
type Context struct {
	engine  *Engine
	runtime wazero.Runtime
	modules []api.Module
	paths   []string
	home    string
	id      int
	closed  bool
}

// AddSearchPath implements ports.ScriptContext. Directories are mounted
// for modules loaded afterwards.
func (c *Context) AddSearchPath(dir string) bool {
	if slices.Contains(c.paths, dir) {
		return false
	}
	c.paths = append(c.paths, dir)
	return true
}

// SearchPath implements ports.ScriptContext.
func (c *Context) SearchPath() []string {
	return slices.Clone(c.paths)
}

func (c *Context) moduleConfig(displayName string) wazero.ModuleConfig {
	fsConfig := wazero.NewFSConfig()
	for _, dir := range c.paths {
		fsConfig = fsConfig.WithReadOnlyDirMount(dir, dir)
	}
	if c.home != "" {
		fsConfig = fsConfig.WithReadOnlyDirMount(c.home, "/home")
	}
	out := newLogWriter(c.engine.config.logger, displayName, c.id, false)
	errOut := newLogWriter(c.engine.config.logger, displayName, c.id, true)
	return wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions().
		WithFSConfig(fsConfig).
		WithStdout(out).
		WithStderr(errOut).
		WithArgs(displayName)
}

// RunSource implements ports.ScriptContext: src is a WebAssembly binary.
func (c *Context) RunSource(ctx context.Context, displayName string, src []byte) (ports.Namespace, error) {
	if c.closed {
		return nil, fmt.Errorf("script context %d is closed", c.id)
	}

	compiled, err := c.runtime.CompileModule(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%s: compile: %w", displayName, err)
	}

	mod, err := c.runtime.InstantiateModule(ctx, compiled, c.moduleConfig(displayName))
	if err != nil {
		return nil, fmt.Errorf("%s: instantiate: %w", displayName, err)
	}
	if init := mod.ExportedFunction(exportInitialize); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("%s: %s: %w", displayName, exportInitialize, err)
		}
	}
	c.modules = append(c.modules, mod)

	return &namespace{ctx: c, mod: mod, classes: classesOf(compiled.ExportedFunctions())}, nil
}

// Close implements ports.ScriptContext.
func (c *Context) Close(ctx context.Context) error {
	if c.closed {
		return fmt.Errorf("script context %d already closed", c.id)
	}
	c.closed = true
	var errs []error
	for _, m := range c.modules {
		if err := m.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.modules = nil
	return stdErrors.Join(errs...)
}

// classesOf groups "Class.Method" exports by class. The class part may
// itself be dotted; the method is the last segment.
func classesOf(exports map[string]api.FunctionDefinition) map[string]map[string]api.FunctionDefinition {
	classes := make(map[string]map[string]api.FunctionDefinition)
	for name, def := range exports {
		i := strings.LastIndexByte(name, '.')
		if i <= 0 || i == len(name)-1 {
			continue
		}
		class, method := name[:i], name[i+1:]
		if classes[class] == nil {
			classes[class] = make(map[string]api.FunctionDefinition)
		}
		classes[class][method] = def
	}
	return classes
}

type namespace struct {
	ctx     *Context
	mod     api.Module
	classes map[string]map[string]api.FunctionDefinition
}

// Lookup implements ports.Namespace.
func (n *namespace) Lookup(_ context.Context, name string) (ports.Symbol, bool) {
	if _, ok := n.classes[name]; !ok {
		return nil, false
	}
	return &symbol{ns: n, class: name}, true
}

type symbol struct {
	ns    *namespace
	class string
}

// Instantiate calls C.new when exported; otherwise the handle is 0.
func (s *symbol) Instantiate(ctx context.Context) (ports.ScriptObject, error) {
	obj := &object{ns: s.ns, class: s.class}
	ctor := s.ns.mod.ExportedFunction(s.class + ".new")
	if ctor == nil {
		return obj, nil
	}
	if n := len(ctor.Definition().ParamTypes()); n != 0 {
		return nil, fmt.Errorf("%s.new takes %d parameters, want none", s.class, n)
	}
	results, err := ctor.Call(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s.new: %w", s.class, err)
	}
	if len(results) > 0 {
		obj.self = uint32(results[0]) //nolint:gosec // G115: i32 handle
	}
	return obj, nil
}
