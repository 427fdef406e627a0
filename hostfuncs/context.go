package hostfuncs

import (
	"context"

	"github.com/reglet-dev/scriptmeasure/domain/ports"
)

// HostContext is the context handed to a handler by HandlerRegistry.Invoke.
// Middleware uses it to learn which host function is running.
type HostContext interface {
	context.Context

	// FunctionName returns the registered name of the invoked function.
	FunctionName() string
}

type hostContext struct {
	context.Context
	funcName string
}

// NewHostContext wraps ctx for the host function funcName.
func NewHostContext(ctx context.Context, funcName string) HostContext {
	return &hostContext{Context: ctx, funcName: funcName}
}

func (c *hostContext) FunctionName() string {
	return c.funcName
}

// HostContextFrom wraps ctx for funcName. A HostContext for the same name
// is returned as is; one for another name (a handler calling a sibling) is
// wrapped again so the name always matches the running function.
func HostContextFrom(ctx context.Context, funcName string) HostContext {
	if hc, ok := ctx.(HostContext); ok && hc.FunctionName() == funcName {
		return hc
	}
	return NewHostContext(ctx, funcName)
}

type accessorKey struct{}

type maxValueKey struct{}

// WithAccessor binds the accessor for the duration of one script call.
func WithAccessor(ctx context.Context, a *Accessor) context.Context {
	return context.WithValue(ctx, accessorKey{}, a)
}

// AccessorFrom returns the accessor bound to ctx.
func AccessorFrom(ctx context.Context) (*Accessor, bool) {
	a, ok := ctx.Value(accessorKey{}).(*Accessor)
	return a, ok && a != nil
}

// WithMaxValue binds the Reload max-value box.
func WithMaxValue(ctx context.Context, m *ports.MaxValue) context.Context {
	return context.WithValue(ctx, maxValueKey{}, m)
}

// MaxValueFrom returns the max-value box bound to ctx.
func MaxValueFrom(ctx context.Context) (*ports.MaxValue, bool) {
	m, ok := ctx.Value(maxValueKey{}).(*ports.MaxValue)
	return m, ok && m != nil
}
