package entities

import (
	"log/slog"
	"strings"
)

// Engine names accepted by BridgeConfig.Engine.
const (
	EngineAuto   = "auto"
	EngineGoja   = "goja"
	EngineWazero = "wazero"
)

// Operation names a script method the bridge calls after a successful load.
type Operation string

const (
	OpReload      Operation = "Reload"
	OpUpdate      Operation = "Update"
	OpGetString   Operation = "GetString"
	OpExecuteBang Operation = "ExecuteBang"
	OpFinalize    Operation = "Finalize"
)

// Operations lists every script method in call order of a typical lifetime.
func Operations() []Operation {
	return []Operation{OpReload, OpUpdate, OpGetString, OpExecuteBang, OpFinalize}
}

// LevelDiscard drops runtime-call errors without logging them.
const LevelDiscard = slog.Level(1 << 10)

// ParseCallErrorLevel accepts slog level names ("debug", "warn", "error+2")
// and "discard".
func ParseCallErrorLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "discard") {
		return LevelDiscard, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}

// BridgeConfig controls process-wide bridge behavior.
type BridgeConfig struct {
	// CallErrorLevels sets the log level used when a script method raises.
	// Operations missing from the map use DefaultCallErrorLevel.
	CallErrorLevels map[Operation]slog.Level `json:"call_error_levels,omitempty"`

	// Engine selects the scripting engine: auto, goja or wazero.
	Engine string `json:"engine" validate:"omitempty,oneof=auto goja wazero"`

	// ScriptRoot resolves relative script paths. Empty means the working directory.
	ScriptRoot string `json:"script_root,omitempty"`

	// DefaultCallErrorLevel applies to operations without an explicit level.
	DefaultCallErrorLevel slog.Level `json:"default_call_error_level"`

	// MaxStringBytes caps the UTF-8 size of a GetString result. Zero disables the cap.
	MaxStringBytes int `json:"max_string_bytes" validate:"gte=0"`

	// SharedContext runs every measure in the base context. Measures can see
	// each other's globals, the runtime is never shut down before Close, and
	// load failures are logged instead of shown as the measure's string.
	SharedContext bool `json:"shared_context"`
}

// DefaultBridgeConfig returns the isolated-context configuration.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		Engine:                EngineAuto,
		DefaultCallErrorLevel: slog.LevelWarn,
		MaxStringBytes:        64 * 1024,
	}
}

// CallErrorLevel returns the log level for errors raised by op.
func (c BridgeConfig) CallErrorLevel(op Operation) slog.Level {
	if lvl, ok := c.CallErrorLevels[op]; ok {
		return lvl
	}
	return c.DefaultCallErrorLevel
}

// BridgeOption is a functional option for configuring the bridge.
type BridgeOption func(*BridgeConfig)

// WithEngine selects the scripting engine by name.
func WithEngine(name string) BridgeOption {
	return func(c *BridgeConfig) {
		c.Engine = name
	}
}

// WithSharedContext enables or disables shared-context mode.
func WithSharedContext(enabled bool) BridgeOption {
	return func(c *BridgeConfig) {
		c.SharedContext = enabled
	}
}

// WithScriptRoot sets the directory relative script paths resolve against.
func WithScriptRoot(dir string) BridgeOption {
	return func(c *BridgeConfig) {
		c.ScriptRoot = dir
	}
}

// WithCallErrorLevel sets the log level for errors raised by one operation.
// Pass LevelDiscard to drop them silently.
func WithCallErrorLevel(op Operation, level slog.Level) BridgeOption {
	return func(c *BridgeConfig) {
		if c.CallErrorLevels == nil {
			c.CallErrorLevels = make(map[Operation]slog.Level)
		}
		c.CallErrorLevels[op] = level
	}
}

// WithDefaultCallErrorLevel sets the fallback log level for runtime-call errors.
func WithDefaultCallErrorLevel(level slog.Level) BridgeOption {
	return func(c *BridgeConfig) {
		c.DefaultCallErrorLevel = level
	}
}

// WithMaxStringBytes caps GetString results. Negative values are ignored.
func WithMaxStringBytes(n int) BridgeOption {
	return func(c *BridgeConfig) {
		if n >= 0 {
			c.MaxStringBytes = n
		}
	}
}

// NewBridgeConfig creates a BridgeConfig with the given options.
func NewBridgeConfig(opts ...BridgeOption) BridgeConfig {
	cfg := DefaultBridgeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
