package goja

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/hostfuncs"
)

// ScriptError is an exception raised by script code, or a syntax error.
type ScriptError struct {
	Message string
	Stack   string
}

func (e *ScriptError) Error() string {
	return e.Message
}

func toScriptError(err error) error {
	var se *ScriptError
	if stdErrors.As(err, &se) {
		return err
	}
	var ex *goja.Exception
	if stdErrors.As(err, &ex) {
		return &ScriptError{Message: ex.Error(), Stack: ex.String()}
	}
	var syntax *goja.CompilerSyntaxError
	if stdErrors.As(err, &syntax) {
		return &ScriptError{Message: syntax.Error()}
	}
	var interrupted *goja.InterruptedError
	if stdErrors.As(err, &interrupted) {
		return &ScriptError{Message: interrupted.Error()}
	}
	return err
}

// toJS converts a bridge argument to a script value.
func (c *Context) toJS(ctx context.Context, arg any) (goja.Value, error) {
	switch a := arg.(type) {
	case nil:
		return goja.Null(), nil
	case string, float64, int, bool:
		return c.vm.ToValue(a), nil
	case *ports.MaxValue:
		return c.newMaxValueBox(ctx, a)
	case ports.Accessor:
		return c.newAccessor(ctx, a)
	default:
		return nil, fmt.Errorf("unsupported argument type %T", arg)
	}
}

// fromJS copies a script result out of the runtime.
func (c *Context) fromJS(v goja.Value) ports.Value {
	if v == nil || goja.IsUndefined(v) {
		return ports.Undefined()
	}
	if goja.IsNull(v) {
		return ports.Null()
	}
	switch x := v.Export().(type) {
	case int64:
		return ports.Number(float64(x))
	case float64:
		return ports.Number(x)
	case string:
		return ports.String(x)
	case bool:
		return ports.Bool(x)
	}

	display := "[object]"
	if ex := c.vm.Try(func() { display = v.String() }); ex != nil {
		display = "[object]"
	}
	return ports.Object(display)
}

// newMaxValueBox exposes box as an object with a numeric value property.
// Writes go through the set_max_value host function.
func (c *Context) newMaxValueBox(ctx context.Context, box *ports.MaxValue) (goja.Value, error) {
	callCtx := context.WithoutCancel(ctx)
	if _, ok := hostfuncs.MaxValueFrom(callCtx); !ok {
		callCtx = hostfuncs.WithMaxValue(callCtx, box)
	}

	obj := c.vm.NewObject()
	getter := c.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return c.vm.ToValue(box.Value)
	})
	setter := c.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0).ToFloat()
		dispatch[hostfuncs.SetMaxValueRequest, hostfuncs.Empty](c, callCtx, hostfuncs.FuncSetMaxValue, hostfuncs.SetMaxValueRequest{Value: v})
		return goja.Undefined()
	})
	if err := obj.DefineAccessorProperty("value", getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		return nil, err
	}
	if err := obj.Set("toString", func(goja.FunctionCall) goja.Value {
		return c.vm.ToValue(fmt.Sprint(box.Value))
	}); err != nil {
		return nil, err
	}
	return obj, nil
}

// dispatch calls a host function and throws its error into the script.
func dispatch[Req any, Resp any](c *Context, ctx context.Context, name string, req Req) Resp {
	resp, err := hostfuncs.Call[Req, Resp](ctx, c.engine.config.registry, name, req)
	if err != nil {
		panic(c.vm.NewGoError(err))
	}
	return resp
}
