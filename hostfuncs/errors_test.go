package hostfuncs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		got      ErrorResponse
		wantType string
		wantMsg  string
		wantCode int
	}{
		{"validation", NewValidationError("option must be a string"), ErrTypeValidation, "option must be a string", 400},
		{"not found", NewNotFoundError("read_registry"), ErrTypeNotFound, "unknown host function: read_registry", 404},
		{"no accessor", NewNoAccessorError("execute"), ErrTypeNotFound, "no host accessor bound for execute", 404},
		{"internal", NewInternalError("box missing"), ErrTypeInternal, "box missing", 500},
		{"string panic", NewPanicError("oops"), ErrTypeInternal, "panic: oops", 500},
		{"error panic", NewPanicError(errors.New("closed")), ErrTypeInternal, "panic: closed", 500},
		{"other panic", NewPanicError(42), ErrTypeInternal, "panic: panic recovered", 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.got.Error)
			assert.Equal(t, tt.wantMsg, tt.got.Message)
			assert.Equal(t, tt.wantCode, tt.got.Code)

			decoded, ok := DecodeErrorResponse(tt.got.ToJSON())
			require.True(t, ok)
			assert.Equal(t, tt.got, decoded)
		})
	}
}

func TestErrorResponse_ToJSON(t *testing.T) {
	assert.JSONEq(t,
		`{"error":"VALIDATION_ERROR","message":"bad level","code":400}`,
		string(NewValidationError("bad level").ToJSON()))
}

func TestDecodeErrorResponse(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		wantOK bool
	}{
		{name: "error response", data: `{"error":"NOT_FOUND","message":"x","code":404}`, wantOK: true},
		{name: "success payload", data: `{"value":"x","ok":true}`},
		{name: "empty error", data: `{"error":""}`},
		{name: "exec style nested error", data: `{"error":{"code":"DENIED"}}`},
		{name: "not json", data: `nope`},
		{name: "empty", data: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := DecodeErrorResponse([]byte(tt.data))
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestErrorResponse_Err(t *testing.T) {
	err := NewNoAccessorError("log").Err()
	assert.EqualError(t, err, "NOT_FOUND (404): no host accessor bound for log")
}
