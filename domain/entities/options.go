package entities

import (
	"path/filepath"
	"strings"
)

// Option names read from the host for every measure.
const (
	OptionScriptPath  = "ScriptPath"
	OptionClassName   = "ClassName"
	OptionRuntimeHome = "ScriptHome"

	// OptionRuntimeHomeAlias is accepted when OptionRuntimeHome is not set.
	OptionRuntimeHomeAlias = "PythonHome"
)

// Defaults applied when an option is absent.
const (
	DefaultScriptPath = "default.js"
	DefaultClassName  = "Measure"
)

// MeasureOptions holds the per-measure settings read through the host accessor.
type MeasureOptions struct {
	// ScriptPath is the script file to load. Relative paths are resolved by the host.
	ScriptPath string `json:"script_path" validate:"required"`

	// ClassName is the symbol instantiated from the script namespace.
	ClassName string `json:"class_name" validate:"required,dottedident"`

	// RuntimeHome overrides the runtime home directory. Only honored before
	// the runtime is first started.
	RuntimeHome string `json:"runtime_home,omitempty" validate:"omitempty,dir"`
}

// DefaultMeasureOptions returns the options used when the host sets none.
func DefaultMeasureOptions() MeasureOptions {
	return MeasureOptions{
		ScriptPath: DefaultScriptPath,
		ClassName:  DefaultClassName,
	}
}

// ScriptParts splits ScriptPath into directory, base name and extension.
// The extension keeps its leading dot.
func (o MeasureOptions) ScriptParts() (dir, base, ext string) {
	dir = filepath.Dir(o.ScriptPath)
	file := filepath.Base(o.ScriptPath)
	ext = filepath.Ext(file)
	base = strings.TrimSuffix(file, ext)
	return dir, base, ext
}
