// Package errors provides domain-specific error types for the measure bridge.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
)

// Sentinel errors shared by engines and the lifecycle controller.
var (
	// ErrSymbolNotFound is returned by a namespace lookup that finds nothing.
	ErrSymbolNotFound = stdErrors.New("symbol not found")

	// ErrMethodNotFound is returned when a script object lacks a method.
	ErrMethodNotFound = stdErrors.New("method not found")

	// ErrUnknownHandle is returned for handles that were never issued or were destroyed.
	ErrUnknownHandle = stdErrors.New("unknown measure handle")

	// ErrRuntimeNotStarted is returned when a context is requested before start.
	ErrRuntimeNotStarted = stdErrors.New("script runtime not started")
)

// DetailedError is an interface for error types that can convert themselves
// to a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to a structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// LoadErrorKind classifies a failed script load.
type LoadErrorKind int

const (
	// ScriptOpenError means the script file could not be opened or read.
	ScriptOpenError LoadErrorKind = iota + 1
	// ScriptExecutionError means the script source failed to run.
	ScriptExecutionError
	// ClassNotFound means the class symbol is absent from the script namespace.
	ClassNotFound
	// InstantiationError means constructing the class raised.
	InstantiationError
)

// Diagnostic returns the fixed text shown in place of the measure's string.
func (k LoadErrorKind) Diagnostic() string {
	switch k {
	case ScriptOpenError:
		return "Error opening script"
	case ScriptExecutionError:
		return "Error loading script"
	case ClassNotFound:
		return "Script class not found"
	case InstantiationError:
		return "Error instantiating script class"
	default:
		return "Error loading script"
	}
}

// Code returns a machine-readable code for the kind.
func (k LoadErrorKind) Code() string {
	switch k {
	case ScriptOpenError:
		return "script_open"
	case ScriptExecutionError:
		return "script_execution"
	case ClassNotFound:
		return "class_not_found"
	case InstantiationError:
		return "instantiation"
	default:
		return "load"
	}
}

func (k LoadErrorKind) String() string {
	return k.Code()
}

// LoadError is a failed attempt to build a script object.
type LoadError struct {
	Err   error
	Path  string
	Class string
	Kind  LoadErrorKind
}

func (e *LoadError) Error() string {
	subject := e.Path
	if e.Kind == ClassNotFound || e.Kind == InstantiationError {
		subject = fmt.Sprintf("%s (class %s)", e.Path, e.Class)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Diagnostic(), subject, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Diagnostic(), subject)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the display text for the failure.
func (e *LoadError) Diagnostic() string {
	return e.Kind.Diagnostic()
}

// ToErrorDetail implements DetailedError.
func (e *LoadError) ToErrorDetail() *entities.ErrorDetail {
	detail := &entities.ErrorDetail{
		Message: e.Kind.Diagnostic(),
		Type:    "load",
		Code:    e.Kind.Code(),
		Details: map[string]any{"path": e.Path},
	}
	if e.Class != "" {
		detail.Details["class"] = e.Class
	}
	if e.Err != nil {
		detail.Wrapped = ToErrorDetail(e.Err)
	}
	return detail
}

// NewLoadError creates a LoadError of the given kind.
func NewLoadError(kind LoadErrorKind, path, class string, err error) *LoadError {
	return &LoadError{Kind: kind, Path: path, Class: class, Err: err}
}

// IsLoadKind reports whether err is a LoadError of the given kind.
func IsLoadKind(err error, kind LoadErrorKind) bool {
	var le *LoadError
	return stdErrors.As(err, &le) && le.Kind == kind
}

// RuntimeCallError is an error raised by a script method after a successful load.
type RuntimeCallError struct {
	Err    error
	Method string
}

func (e *RuntimeCallError) Error() string {
	return fmt.Sprintf("script method %s failed: %v", e.Method, e.Err)
}

func (e *RuntimeCallError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *RuntimeCallError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "runtime", Code: e.Method}
}

// InitError is a failure to start the scripting engine. It is fatal: the
// engine is not started again and every later measure creation fails with
// the same error.
type InitError struct {
	Err    error
	Engine string
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to start %s runtime: %v", e.Engine, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *InitError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "init", Code: e.Engine}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}

// MemoryError represents a string buffer allocation failure.
type MemoryError struct {
	Requested int // Requested allocation size in bytes
	Current   int // Current total allocated
	Limit     int // Maximum allowed
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("memory allocation failed: requested %d bytes, current %d bytes, limit %d bytes",
		e.Requested, e.Current, e.Limit)
}

// ToErrorDetail implements DetailedError.
func (e *MemoryError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "internal", Code: "memory_limit"}
}
