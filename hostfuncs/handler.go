package hostfuncs

import (
	"context"
	"encoding/json"
	"fmt"
)

// HostFunc is a generic function signature for host functions.
// It accepts a context and a typed request, and returns a typed response.
type HostFunc[Req any, Resp any] func(context.Context, Req) Resp

// ByteHandler is a function that accepts raw bytes (JSON) and returns raw bytes (JSON).
// This is the form every engine binding calls.
type ByteHandler func(context.Context, []byte) ([]byte, error)

// NewJSONHandler wraps a typed HostFunc into a ByteHandler.
// A payload that does not decode yields a VALIDATION_ERROR response.
func NewJSONHandler[Req any, Resp any](fn HostFunc[Req, Resp]) ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Req
		if err := decodePayload(payload, &req); err != nil {
			return NewValidationError(err.Error()).ToJSON(), nil
		}

		resp := fn(ctx, req)

		respBytes, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}

		return respBytes, nil
	}
}

// Call encodes req, invokes the named handler and decodes the response.
// Structured error responses are returned as *CallError.
func Call[Req any, Resp any](ctx context.Context, r *HandlerRegistry, name string, req Req) (Resp, error) {
	var resp Resp

	payload, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("failed to marshal %s request: %w", name, err)
	}

	out, err := r.Invoke(ctx, name, payload)
	if err != nil {
		return resp, fmt.Errorf("host function %s: %w", name, err)
	}
	if errResp, ok := DecodeErrorResponse(out); ok {
		return resp, errResp.Err()
	}
	if len(out) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return resp, fmt.Errorf("failed to unmarshal %s response: %w", name, err)
	}
	return resp, nil
}

// decodePayload treats an empty payload as an empty JSON object so that
// argument-less calls need not send "{}".
func decodePayload(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return nil
}
