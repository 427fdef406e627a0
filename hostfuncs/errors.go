package hostfuncs

import (
	"encoding/json"
	"fmt"
)

// Error type identifiers carried in ErrorResponse.Error.
const (
	ErrTypeValidation = "VALIDATION_ERROR"
	ErrTypeNotFound   = "NOT_FOUND"
	ErrTypeInternal   = "INTERNAL_ERROR"
)

// ErrorResponse represents a structured error returned as JSON by a handler.
// Engines surface it to the script instead of trapping.
type ErrorResponse struct {
	// Error is a machine-readable error type identifier (e.g., "VALIDATION_ERROR", "INTERNAL_ERROR").
	Error string `json:"error"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Code is a numeric error code (e.g., 400, 500).
	Code int `json:"code"`
}

// ToJSON serializes the ErrorResponse to JSON bytes.
// Returns nil if serialization fails (which should never happen for this simple type).
func (e ErrorResponse) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

// Err converts the response into a Go error.
func (e ErrorResponse) Err() error {
	return &CallError{Type: e.Error, Message: e.Message, Code: e.Code}
}

// CallError is the Go form of an ErrorResponse.
type CallError struct {
	Type    string
	Message string
	Code    int
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Type, e.Code, e.Message)
}

// DecodeErrorResponse reports whether data is an ErrorResponse. Successful
// handler responses never carry a top-level string "error" field.
func DecodeErrorResponse(data []byte) (ErrorResponse, bool) {
	var shape struct {
		Error   *string `json:"error"`
		Message string  `json:"message"`
		Code    int     `json:"code"`
	}
	if err := json.Unmarshal(data, &shape); err != nil || shape.Error == nil || *shape.Error == "" {
		return ErrorResponse{}, false
	}
	return ErrorResponse{Error: *shape.Error, Message: shape.Message, Code: shape.Code}, true
}

// NewValidationError creates an error response for bad input (e.g., malformed JSON).
func NewValidationError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrTypeValidation,
		Message: message,
		Code:    400,
	}
}

// NewNotFoundError creates an error response for unknown handler names.
func NewNotFoundError(name string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrTypeNotFound,
		Message: "unknown host function: " + name,
		Code:    404,
	}
}

// NewNoAccessorError is returned by accessor handlers called outside a
// measure callback.
func NewNoAccessorError(name string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrTypeNotFound,
		Message: "no host accessor bound for " + name,
		Code:    404,
	}
}

// NewInternalError creates an error response for unexpected failures.
func NewInternalError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrTypeInternal,
		Message: message,
		Code:    500,
	}
}

// NewPanicError creates an error response for recovered panics.
func NewPanicError(panicValue any) ErrorResponse {
	var msg string
	if err, ok := panicValue.(error); ok {
		msg = err.Error()
	} else if s, ok := panicValue.(string); ok {
		msg = s
	} else {
		msg = "panic recovered"
	}
	return ErrorResponse{
		Error:   ErrTypeInternal,
		Message: "panic: " + msg,
		Code:    500,
	}
}
