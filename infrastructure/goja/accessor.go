package goja

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/hostfuncs"
)

// newAccessor builds the rm object a script receives in Reload. Every
// method dispatches through the host function registry with the accessor
// bound to the call context, so the object stays usable after Reload.
func (c *Context) newAccessor(ctx context.Context, acc ports.Accessor) (goja.Value, error) {
	callCtx := context.WithoutCancel(ctx)
	if _, ok := hostfuncs.AccessorFrom(callCtx); !ok {
		a, isShim := acc.(*hostfuncs.Accessor)
		if !isShim {
			a = hostfuncs.NewAccessor(acc.Binding())
		}
		callCtx = hostfuncs.WithAccessor(callCtx, a)
	}

	vm := c.vm
	obj := vm.NewObject()
	methods := map[string]func(goja.FunctionCall) goja.Value{
		"RmReadString": func(call goja.FunctionCall) goja.Value {
			req := hostfuncs.ReadStringRequest{
				Option:  c.stringArg(call, 0, "RmReadString", "option"),
				Default: optionalString(call, 1),
				Replace: optionalBool(call, 2, true),
			}
			return c.stringResult(dispatch[hostfuncs.ReadStringRequest, hostfuncs.StringResponse](c, callCtx, hostfuncs.FuncReadString, req))
		},
		"RmReadPath": func(call goja.FunctionCall) goja.Value {
			req := hostfuncs.ReadPathRequest{
				Option:  c.stringArg(call, 0, "RmReadPath", "option"),
				Default: optionalString(call, 1),
			}
			return c.stringResult(dispatch[hostfuncs.ReadPathRequest, hostfuncs.StringResponse](c, callCtx, hostfuncs.FuncReadPath, req))
		},
		"RmReadDouble": func(call goja.FunctionCall) goja.Value {
			req := hostfuncs.ReadDoubleRequest{Option: c.stringArg(call, 0, "RmReadDouble", "option")}
			if def := call.Argument(1); !goja.IsUndefined(def) {
				req.Default = def.ToFloat()
			}
			resp := dispatch[hostfuncs.ReadDoubleRequest, hostfuncs.ReadDoubleResponse](c, callCtx, hostfuncs.FuncReadDouble, req)
			return vm.ToValue(resp.Value)
		},
		"RmReadInt": func(call goja.FunctionCall) goja.Value {
			req := hostfuncs.ReadIntRequest{
				Option:  c.stringArg(call, 0, "RmReadInt", "option"),
				Default: int(call.Argument(1).ToInteger()),
			}
			resp := dispatch[hostfuncs.ReadIntRequest, hostfuncs.ReadIntResponse](c, callCtx, hostfuncs.FuncReadInt, req)
			return vm.ToValue(resp.Value)
		},
		"RmGetMeasureName": func(goja.FunctionCall) goja.Value {
			return c.stringResult(dispatch[hostfuncs.Empty, hostfuncs.StringResponse](c, callCtx, hostfuncs.FuncGetMeasureName, hostfuncs.Empty{}))
		},
		"RmExecute": func(call goja.FunctionCall) goja.Value {
			req := hostfuncs.ExecuteRequest{Command: c.stringArg(call, 0, "RmExecute", "command")}
			dispatch[hostfuncs.ExecuteRequest, hostfuncs.Empty](c, callCtx, hostfuncs.FuncExecute, req)
			return goja.Undefined()
		},
		"RmLog": func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) < 2 {
				panic(vm.NewTypeError("RmLog requires a level and a message"))
			}
			req := hostfuncs.LogRequest{
				Level:   entities.LogLevel(call.Argument(0).ToInteger()),
				Message: call.Argument(1).String(),
			}
			dispatch[hostfuncs.LogRequest, hostfuncs.Empty](c, callCtx, hostfuncs.FuncLog, req)
			return goja.Undefined()
		},
	}
	for name, fn := range methods {
		if err := obj.Set(name, fn); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}
	if err := setLogLevels(vm, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// setLogLevels defines the read-only LOG_* constants on obj.
func setLogLevels(vm *goja.Runtime, obj *goja.Object) error {
	levels := []struct {
		name  string
		level entities.LogLevel
	}{
		{"LOG_ERROR", entities.LogError},
		{"LOG_WARNING", entities.LogWarning},
		{"LOG_NOTICE", entities.LogNotice},
		{"LOG_DEBUG", entities.LogDebug},
	}
	for _, l := range levels {
		if err := obj.DefineDataProperty(l.name, vm.ToValue(int(l.level)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return fmt.Errorf("failed to define %s: %w", l.name, err)
		}
	}
	return nil
}

func (c *Context) stringResult(resp hostfuncs.StringResponse) goja.Value {
	if !resp.OK {
		return goja.Null()
	}
	return c.vm.ToValue(resp.Value)
}

// stringArg returns argument i, throwing a TypeError when it is not a string.
func (c *Context) stringArg(call goja.FunctionCall, i int, fn, param string) string {
	v := call.Argument(i)
	if _, ok := v.Export().(string); !ok {
		panic(c.vm.NewTypeError(fmt.Sprintf("%s: %s must be a string", fn, param)))
	}
	return v.String()
}

func optionalString(call goja.FunctionCall, i int) string {
	v := call.Argument(i)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func optionalBool(call goja.FunctionCall, i int, def bool) bool {
	v := call.Argument(i)
	if goja.IsUndefined(v) {
		return def
	}
	return v.ToBoolean()
}
