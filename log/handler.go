// Package log routes structured logging (slog) into the host log.
package log

import (
	"context"
	"log/slog"
	"strings"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
)

// HostLogger is the part of the host API the handler writes to.
type HostLogger interface {
	Log(level entities.LogLevel, message string)
}

// HostLogHandler implements slog.Handler on top of the host log.
type HostLogHandler struct {
	sink   HostLogger
	opts   handlerConfig
	attrs  []LogAttrWire
	groups []string
}

// HandlerOption configures the HostLogHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	prefix string
	level  slog.Level
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithPrefix prepends "prefix: " to every message.
func WithPrefix(prefix string) HandlerOption {
	return func(c *handlerConfig) {
		c.prefix = prefix
	}
}

// NewHandler creates a new HostLogHandler writing to sink.
func NewHandler(sink HostLogger, opts ...HandlerOption) *HostLogHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HostLogHandler{sink: sink, opts: cfg}
}

// NewLogger is shorthand for slog.New(NewHandler(sink, opts...)).
func NewLogger(sink HostLogger, opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(sink, opts...))
}

// HostLevel maps a slog level onto the four host levels.
func HostLevel(level slog.Level) entities.LogLevel {
	switch {
	case level >= slog.LevelError:
		return entities.LogError
	case level >= slog.LevelWarn:
		return entities.LogWarning
	case level >= slog.LevelInfo:
		return entities.LogNotice
	default:
		return entities.LogDebug
	}
}

// SlogLevel maps a host level onto slog. Unknown levels become debug.
func SlogLevel(level entities.LogLevel) slog.Level {
	switch level {
	case entities.LogError:
		return slog.LevelError
	case entities.LogWarning:
		return slog.LevelWarn
	case entities.LogNotice:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *HostLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.sink != nil && level >= h.opts.level
}

// Handle renders the record as "prefix: message key=value ..." and writes
// it to the host.
func (h *HostLogHandler) Handle(_ context.Context, record slog.Record) error {
	if h.sink == nil {
		return nil
	}

	var b strings.Builder
	if h.opts.prefix != "" {
		b.WriteString(h.opts.prefix)
		b.WriteString(": ")
	}
	b.WriteString(record.Message)

	attrs := append([]LogAttrWire(nil), h.attrs...)
	record.Attrs(func(a slog.Attr) bool {
		attrs = appendAttr(attrs, h.groups, a)
		return true
	})
	writeAttrs(&b, attrs)

	h.sink.Log(HostLevel(record.Level), b.String())
	return nil
}

// WithAttrs returns a new HostLogHandler that includes the given attributes.
func (h *HostLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	n := h.clone()
	for _, a := range attrs {
		n.attrs = appendAttr(n.attrs, n.groups, a)
	}
	return n
}

// WithGroup returns a new HostLogHandler with the given group name.
func (h *HostLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	n := h.clone()
	n.groups = append(n.groups, name)
	return n
}

func (h *HostLogHandler) clone() *HostLogHandler {
	return &HostLogHandler{
		sink:   h.sink,
		opts:   h.opts,
		attrs:  append([]LogAttrWire(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}
