package wazero

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/scriptmeasure/domain/errors"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/hostfuncs"
)

// object is one instance handle of a class exported by a module.
type object struct {
	ns    *namespace
	class string
	self  uint32
}

// Call implements ports.ScriptObject. The accessor and max-value box travel
// in ctx, where the host functions find them; the box's current value is
// also passed as an f64 argument.
func (o *object) Call(ctx context.Context, method string, args ...any) (ports.Value, error) {
	if o.ns.ctx.closed {
		return ports.Undefined(), fmt.Errorf("script context %d is closed", o.ns.ctx.id)
	}
	name := o.class + "." + method
	fn := o.ns.mod.ExportedFunction(name)
	if fn == nil {
		return ports.Undefined(), fmt.Errorf("%s: %w", name, errors.ErrMethodNotFound)
	}

	ctx = bindCallContext(ctx, args)
	def := fn.Definition()
	params := def.ParamTypes()

	stack := make([]uint64, 0, len(params))
	if len(params) > 0 {
		stack = append(stack, api.EncodeI32(int32(o.self))) //nolint:gosec // G115: i32 handle
	}

	var owned []guestBuffer
	defer func() {
		for _, b := range owned {
			o.deallocate(ctx, b)
		}
	}()

	for _, arg := range args {
		if len(stack) == len(params) {
			break
		}
		if _, isAccessor := arg.(ports.Accessor); isAccessor {
			continue
		}
		v, buf, err := o.encodeArg(ctx, arg, params[len(stack)])
		if err != nil {
			return ports.Undefined(), fmt.Errorf("%s: argument %d: %w", name, len(stack), err)
		}
		if buf.size > 0 {
			owned = append(owned, buf)
		}
		stack = append(stack, v)
	}
	// Missing arguments are zero.
	for len(stack) < len(params) {
		stack = append(stack, 0)
	}

	results, err := fn.Call(ctx, stack...)
	if err != nil {
		return ports.Undefined(), fmt.Errorf("%s: %w", name, err)
	}
	if len(results) == 0 {
		return ports.Undefined(), nil
	}
	return o.decodeResult(ctx, name, def.ResultTypes()[0], results[0])
}

// bindCallContext makes sure the accessor and max-value box among args are
// reachable from host functions.
func bindCallContext(ctx context.Context, args []any) context.Context {
	for _, arg := range args {
		switch a := arg.(type) {
		case *ports.MaxValue:
			if _, ok := hostfuncs.MaxValueFrom(ctx); !ok {
				ctx = hostfuncs.WithMaxValue(ctx, a)
			}
		case ports.Accessor:
			if _, ok := hostfuncs.AccessorFrom(ctx); !ok {
				acc, isShim := a.(*hostfuncs.Accessor)
				if !isShim {
					acc = hostfuncs.NewAccessor(a.Binding())
				}
				ctx = hostfuncs.WithAccessor(ctx, acc)
			}
		}
	}
	return ctx
}

type guestBuffer struct {
	ptr, size uint32
}

func (o *object) encodeArg(ctx context.Context, arg any, want api.ValueType) (uint64, guestBuffer, error) {
	switch a := arg.(type) {
	case string:
		if want != api.ValueTypeI64 {
			return 0, guestBuffer{}, fmt.Errorf("string needs an i64 parameter, got %s", api.ValueTypeName(want))
		}
		if a == "" {
			return 0, guestBuffer{}, nil
		}
		ptr, err := guestAlloc(ctx, o.ns.mod, []byte(a))
		if err != nil {
			return 0, guestBuffer{}, err
		}
		buf := guestBuffer{ptr: ptr, size: uint32(len(a))} //nolint:gosec // G115: bounded by guest memory
		return packGuest(buf), buf, nil
	case float64:
		return encodeNumber(a, want), guestBuffer{}, nil
	case int:
		return encodeNumber(float64(a), want), guestBuffer{}, nil
	case bool:
		if a {
			return encodeNumber(1, want), guestBuffer{}, nil
		}
		return encodeNumber(0, want), guestBuffer{}, nil
	case *ports.MaxValue:
		return encodeNumber(a.Value, want), guestBuffer{}, nil
	default:
		return 0, guestBuffer{}, fmt.Errorf("unsupported argument type %T", arg)
	}
}

func encodeNumber(f float64, want api.ValueType) uint64 {
	switch want {
	case api.ValueTypeF64:
		return api.EncodeF64(f)
	case api.ValueTypeF32:
		return api.EncodeF32(float32(f))
	case api.ValueTypeI32:
		return api.EncodeI32(int32(f))
	default:
		return api.EncodeI64(int64(f))
	}
}

func (o *object) decodeResult(ctx context.Context, name string, t api.ValueType, raw uint64) (ports.Value, error) {
	switch t {
	case api.ValueTypeF64:
		return ports.Number(api.DecodeF64(raw)), nil
	case api.ValueTypeF32:
		return ports.Number(float64(api.DecodeF32(raw))), nil
	case api.ValueTypeI32:
		return ports.Number(float64(api.DecodeI32(raw))), nil
	case api.ValueTypeI64:
		if raw == 0 {
			return ports.Null(), nil
		}
		ptr, length, ok := unpack(raw)
		if !ok {
			return ports.Undefined(), fmt.Errorf("%s returned a null pointer with length %d", name, uint32(raw)) //nolint:gosec // G115: low half
		}
		b, ok := o.ns.mod.Memory().Read(ptr, length)
		if !ok {
			return ports.Undefined(), fmt.Errorf("%s returned out-of-range string %#x+%d", name, ptr, length)
		}
		s := string(b)
		o.deallocate(ctx, guestBuffer{ptr: ptr, size: length})
		return ports.String(s), nil
	default:
		return ports.Undefined(), fmt.Errorf("%s: unsupported result type %s", name, api.ValueTypeName(t))
	}
}

// deallocate returns a buffer to the guest when it exports deallocate.
func (o *object) deallocate(ctx context.Context, b guestBuffer) {
	fn := o.ns.mod.ExportedFunction(exportDeallocate)
	if fn == nil || b.ptr == 0 {
		return
	}
	if _, err := fn.Call(ctx, uint64(b.ptr), uint64(b.size)); err != nil {
		o.ns.ctx.engine.config.logger.WarnContext(ctx, "wazero: guest deallocate failed", "error", err)
	}
}

func packGuest(b guestBuffer) uint64 {
	return uint64(b.ptr)<<32 | uint64(b.size)
}
