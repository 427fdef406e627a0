// Package config provides the option maps behind in-process hosts: a
// measure's key/value options with case-insensitive lookup and #Var#
// substitution, answering the HostAPI read calls.
package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/reglet-dev/scriptmeasure/domain/errors"
)

// Options is a case-insensitive option map. It is safe for concurrent use.
type Options struct {
	values  map[string]string
	vars    *Variables
	baseDir string
	mu      sync.RWMutex
}

// OptionsOption configures Options.
type OptionsOption func(*Options)

// WithVariables shares a variable table used for #Var# substitution.
func WithVariables(v *Variables) OptionsOption {
	return func(o *Options) {
		if v != nil {
			o.vars = v
		}
	}
}

// WithBaseDir sets the directory relative paths resolve against.
func WithBaseDir(dir string) OptionsOption {
	return func(o *Options) {
		o.baseDir = dir
	}
}

// NewOptions creates an option map from values.
func NewOptions(values map[string]string, opts ...OptionsOption) *Options {
	o := &Options{
		values: make(map[string]string, len(values)),
		vars:   NewVariables(nil),
	}
	for k, v := range values {
		o.values[strings.ToLower(k)] = v
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Set stores an option value.
func (o *Options) Set(option, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[strings.ToLower(option)] = value
}

// Lookup returns the raw value of option.
func (o *Options) Lookup(option string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[strings.ToLower(option)]
	return v, ok
}

// Variables returns the substitution table.
func (o *Options) Variables() *Variables {
	return o.vars
}

// ReadString returns option or defValue when it is missing or empty. With
// substitute set, #Var# references are replaced. The value is always
// present, matching hosts that fall back to the default.
func (o *Options) ReadString(option, defValue string, substitute bool) (string, bool) {
	v, ok := o.Lookup(option)
	if !ok || v == "" {
		v = defValue
	}
	if substitute {
		v = o.vars.Substitute(v)
	}
	return v, true
}

// ReadPath reads option with substitution and resolves it against the base
// directory. An empty result stays empty.
func (o *Options) ReadPath(option, defValue string) (string, bool) {
	v, _ := o.ReadString(option, defValue, true)
	if v == "" {
		return "", true
	}
	if !filepath.IsAbs(v) && o.baseDir != "" {
		v = filepath.Join(o.baseDir, v)
	}
	return filepath.Clean(v), true
}

// ReadDouble parses option as a float, returning defValue on failure.
func (o *Options) ReadDouble(option string, defValue float64) float64 {
	v, _ := o.ReadString(option, "", true)
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return defValue
	}
	return f
}

// ReadInt parses option as an integer. Fractional values truncate.
func (o *Options) ReadInt(option string, defValue int) int {
	v, _ := o.ReadString(option, "", true)
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return defValue
}

// Require returns a non-empty option or a ConfigError naming it.
func (o *Options) Require(option string) (string, error) {
	v, ok := o.Lookup(option)
	if !ok || strings.TrimSpace(v) == "" {
		return "", &errors.ConfigError{
			Field: option,
			Err:   fmt.Errorf("required option '%s' is missing", option),
		}
	}
	return v, nil
}

// Snapshot returns a copy of the raw values keyed by lowercased name.
func (o *Options) Snapshot() map[string]string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return maps.Clone(o.values)
}

// Variables is a case-insensitive #Var# table shared by the measures of
// one skin.
type Variables struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewVariables creates a table from initial values.
func NewVariables(initial map[string]string) *Variables {
	v := &Variables{values: make(map[string]string, len(initial))}
	for k, val := range initial {
		v.values[strings.ToLower(k)] = val
	}
	return v
}

// Set stores a variable.
func (v *Variables) Set(name, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[strings.ToLower(name)] = value
}

// Get returns a variable.
func (v *Variables) Get(name string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.values[strings.ToLower(name)]
	return val, ok
}

// Substitute replaces #Name# references with their values in one pass.
// Unknown names are left untouched.
func (v *Variables) Substitute(s string) string {
	if !strings.Contains(s, "#") {
		return s
	}
	var b strings.Builder
	rest := s
	for {
		start := strings.IndexByte(rest, '#')
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start+1:], '#')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start + 1
		name := rest[start+1 : end]
		if val, ok := v.Get(name); ok && name != "" {
			b.WriteString(rest[:start])
			b.WriteString(val)
			rest = rest[end+1:]
			continue
		}
		// keep the first '#' and rescan from the second one
		b.WriteString(rest[:end])
		rest = rest[end:]
	}
	return b.String()
}
