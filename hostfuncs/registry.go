package hostfuncs

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// HandlerRegistry maps host function names to handlers. It is fixed at
// construction, so every engine context can share one without locking.
type HandlerRegistry struct {
	handlers map[string]ByteHandler
	names    []string
}

type registryBuilder struct {
	handlers   map[string]ByteHandler
	middleware []Middleware
	errs       []error
}

// NewRegistry builds a registry. Duplicate or empty names fail the build.
//
//	reg, err := NewRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware()),
//	    WithBundle(AccessorBundle()),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{handlers: make(map[string]ByteHandler)}
	for _, opt := range opts {
		opt(b)
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}

	reg := &HandlerRegistry{
		handlers: make(map[string]ByteHandler, len(b.handlers)),
		names:    make([]string, 0, len(b.handlers)),
	}
	for name, h := range b.handlers {
		reg.handlers[name] = chain(h, b.middleware)
		reg.names = append(reg.names, name)
	}
	sort.Strings(reg.names)
	return reg, nil
}

// chain wraps h so that mw[0] runs first.
func chain(h ByteHandler, mw []Middleware) ByteHandler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Invoke runs the handler registered as name. An unknown name yields a
// NOT_FOUND error response rather than a Go error, so guests see it as data.
// Values bound with WithAccessor and WithMaxValue travel through ctx.
func (r *HandlerRegistry) Invoke(ctx context.Context, name string, payload []byte) ([]byte, error) {
	h, ok := r.handlers[name]
	if !ok {
		return NewNotFoundError(name).ToJSON(), nil
	}
	return h(HostContextFrom(ctx, name), payload)
}

// Has reports whether name is registered.
func (r *HandlerRegistry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *HandlerRegistry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (b *registryBuilder) addHandler(name string, h ByteHandler) error {
	switch {
	case name == "":
		return fmt.Errorf("handler name cannot be empty")
	case h == nil:
		return fmt.Errorf("handler %q is nil", name)
	}
	if _, dup := b.handlers[name]; dup {
		return fmt.Errorf("duplicate handler name: %q", name)
	}
	b.handlers[name] = h
	return nil
}

// WithByteHandler registers a raw handler. WithHandler adds JSON decoding.
func WithByteHandler(name string, h ByteHandler) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addHandler(name, h); err != nil {
			b.errs = append(b.errs, err)
		}
	}
}

// WithMiddleware appends middleware. The first one added runs outermost.
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
