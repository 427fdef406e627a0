package goja

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dop251/goja"

	"github.com/reglet-dev/scriptmeasure/domain/errors"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
)

// dottedIdent matches the symbol names Lookup accepts.
var dottedIdent = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// Each load is evaluated as the body of a function. The returned resolver
// evaluates a name inside that function scope, which is how class and
// let/const declarations are reached without leaking into the global object.
const (
	loadPrefix = "(function () {"
	loadSuffix = "\n;return function () { return eval(arguments[0]); };\n})"
)

// scopeNames resolve to the resolver's own frame rather than the script.
var scopeNames = map[string]bool{"this": true, "arguments": true}

// Context is one isolated goja runtime.
type Context struct {
	engine *Engine
	vm     *goja.Runtime
	paths  []string
	id     int
	closed bool
}

func newContext(e *Engine, id int) (*Context, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	c := &Context{
		engine: e,
		vm:     vm,
		id:     id,
	}
	if err := c.installGlobals(); err != nil {
		return nil, fmt.Errorf("failed to install script globals: %w", err)
	}
	return c, nil
}

// AddSearchPath implements ports.ScriptContext.
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

// RunSource implements ports.ScriptContext.
func (c *Context) RunSource(_ context.Context, displayName string, src []byte) (ports.Namespace, error) {
	if c.closed {
		return nil, fmt.Errorf("script context %d is closed", c.id)
	}

	prog, err := goja.Compile(displayName, loadPrefix+string(src)+loadSuffix, false)
	if err != nil {
		return nil, &ScriptError{Message: err.Error()}
	}

	globals := make(map[string]struct{})
	for _, name := range c.vm.GlobalObject().GetOwnPropertyNames() {
		globals[name] = struct{}{}
	}

	var resolve goja.Callable
	err = c.run(func() error {
		v, err := c.vm.RunProgram(prog)
		if err != nil {
			return err
		}
		body, ok := goja.AssertFunction(v)
		if !ok {
			return fmt.Errorf("load wrapper is not a function")
		}
		r, err := body(goja.Undefined())
		if err != nil {
			return err
		}
		resolve, ok = goja.AssertFunction(r)
		if !ok {
			// The script ended with a top-level return.
			return fmt.Errorf("%s: unexpected top-level return", displayName)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &namespace{ctx: c, resolve: resolve, globals: globals}, nil
}

// Close implements ports.ScriptContext.
func (c *Context) Close(_ context.Context) error {
	if c.closed {
		return fmt.Errorf("script context %d already closed", c.id)
	}
	c.closed = true
	c.vm.Interrupt("context closed")
	return nil
}

// run calls fn and converts script exceptions into ScriptError.
func (c *Context) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ex, ok := r.(*goja.Exception); ok {
				err = toScriptError(ex)
				return
			}
			err = fmt.Errorf("script runtime panic: %v", r)
		}
	}()
	if err := fn(); err != nil {
		return toScriptError(err)
	}
	return nil
}

type namespace struct {
	ctx     *Context
	resolve goja.Callable
	// globals holds the global object's properties from before the load.
	globals map[string]struct{}
}

// Lookup implements ports.Namespace. Names must be dotted identifiers whose
// first segment the script defined. Runtime globals only count when the
// script shadows them.
func (n *namespace) Lookup(_ context.Context, name string) (ports.Symbol, bool) {
	if !dottedIdent.MatchString(name) || n.ctx.closed {
		return nil, false
	}
	head, _, _ := strings.Cut(name, ".")
	if scopeNames[head] {
		return nil, false
	}

	vm := n.ctx.vm
	var v goja.Value
	err := n.ctx.run(func() error {
		hv, err := n.resolve(goja.Undefined(), vm.ToValue(head))
		if err != nil {
			return err
		}
		if _, ok := n.globals[head]; ok {
			if g := vm.GlobalObject().Get(head); g != nil && hv.SameAs(g) {
				return errors.ErrSymbolNotFound
			}
		}
		v, err = n.resolve(goja.Undefined(), vm.ToValue(name))
		return err
	})
	if err != nil || v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	return &symbol{ctx: n.ctx, name: name, value: v}, true
}

type symbol struct {
	ctx   *Context
	value goja.Value
	name  string
}

// Instantiate constructs the symbol with new, or calls it when it is a
// plain factory function.
func (s *symbol) Instantiate(_ context.Context) (ports.ScriptObject, error) {
	var obj *goja.Object
	err := s.ctx.run(func() error {
		if _, ok := goja.AssertConstructor(s.value); ok {
			o, err := s.ctx.vm.New(s.value)
			if err != nil {
				return err
			}
			obj = o
			return nil
		}
		fn, ok := goja.AssertFunction(s.value)
		if !ok {
			return &ScriptError{Message: fmt.Sprintf("TypeError: %s is not callable", s.name)}
		}
		v, err := fn(goja.Undefined())
		if err != nil {
			return err
		}
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return &ScriptError{Message: fmt.Sprintf("TypeError: %s() returned %s", s.name, valueName(v))}
		}
		obj = v.ToObject(s.ctx.vm)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &object{ctx: s.ctx, obj: obj}, nil
}

type object struct {
	ctx *Context
	obj *goja.Object
}

// Call implements ports.ScriptObject.
func (o *object) Call(ctx context.Context, method string, args ...any) (ports.Value, error) {
	c := o.ctx
	if c.closed {
		return ports.Undefined(), fmt.Errorf("script context %d is closed", c.id)
	}

	var out ports.Value
	missing := false
	// Getters and argument conversion can throw, so everything touching
	// the runtime goes through run.
	err := c.run(func() error {
		m := o.obj.Get(method)
		if m == nil || goja.IsUndefined(m) || goja.IsNull(m) {
			missing = true
			return nil
		}
		fn, ok := goja.AssertFunction(m)
		if !ok {
			return &ScriptError{Message: fmt.Sprintf("TypeError: %s is not a function", method)}
		}
		jsArgs := make([]goja.Value, 0, len(args))
		for _, a := range args {
			v, err := c.toJS(ctx, a)
			if err != nil {
				return err
			}
			jsArgs = append(jsArgs, v)
		}
		v, err := fn(o.obj, jsArgs...)
		if err != nil {
			return err
		}
		out = c.fromJS(v)
		return nil
	})
	if missing {
		return ports.Undefined(), fmt.Errorf("%s: %w", method, errors.ErrMethodNotFound)
	}
	if err != nil {
		return ports.Undefined(), err
	}
	return out, nil
}

func valueName(v goja.Value) string {
	if v != nil && goja.IsNull(v) {
		return "null"
	}
	return "undefined"
}
