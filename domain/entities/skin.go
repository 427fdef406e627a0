package entities

import "time"

// Skin is the document a standalone host loads to drive a set of measures.
type Skin struct {
	// Variables are substituted into option values written as #Name#.
	Variables map[string]string `json:"variables,omitempty" yaml:"variables" toml:"variables"`

	// Bridge configures the bridge shared by all measures of the skin.
	Bridge SkinBridge `json:"bridge" yaml:"bridge" toml:"bridge"`

	// Name identifies the skin in logs.
	Name string `json:"name" yaml:"name" toml:"name" validate:"required" jsonschema:"required"`

	// UpdateInterval is the polling period, e.g. "1s".
	UpdateInterval Duration `json:"update_interval" yaml:"update_interval" toml:"update_interval" jsonschema:"type=string,default=1s"`

	// Measures are created in order and destroyed in reverse order.
	Measures []SkinMeasure `json:"measures" yaml:"measures" toml:"measures" validate:"required,min=1,unique=Name,dive" jsonschema:"required,minItems=1"`
}

// SkinBridge mirrors BridgeConfig in skin documents.
type SkinBridge struct {
	Engine         string `json:"engine,omitempty" yaml:"engine" toml:"engine" validate:"omitempty,oneof=auto goja wazero" jsonschema:"enum=auto,enum=goja,enum=wazero"`
	CallErrorLevel string `json:"call_error_level,omitempty" yaml:"call_error_level" toml:"call_error_level" validate:"omitempty,oneof=debug info warn error discard" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,enum=discard"`
	SharedContext  bool   `json:"shared_context,omitempty" yaml:"shared_context" toml:"shared_context"`
}

// SkinMeasure declares one measure and its options.
type SkinMeasure struct {
	// Options are the raw measure options (ScriptPath, ClassName, ...).
	Options map[string]string `json:"options" yaml:"options" toml:"options"`

	// Name is the measure name reported to scripts.
	Name string `json:"name" yaml:"name" toml:"name" validate:"required" jsonschema:"required"`
}

// Duration is a time.Duration that decodes from strings such as "500ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
