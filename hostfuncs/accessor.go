package hostfuncs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
)

// Accessor is the object a script receives in Reload. It forwards to the
// host API of one measure and adds argument checking.
type Accessor struct {
	api ports.HostAPI
}

// NewAccessor wraps api.
func NewAccessor(api ports.HostAPI) *Accessor {
	return &Accessor{api: api}
}

// Binding implements ports.Accessor.
func (a *Accessor) Binding() ports.HostAPI {
	return a.api
}

// ReadString reads option, substituting variables when substitute is set.
func (a *Accessor) ReadString(option, defValue string, substitute bool) (string, bool) {
	return a.api.ReadString(option, defValue, substitute)
}

// ReadPath reads option as a host-resolved path.
func (a *Accessor) ReadPath(option, defValue string) (string, bool) {
	return a.api.ReadPath(option, defValue)
}

// ReadDouble reads option as a number.
func (a *Accessor) ReadDouble(option string, defValue float64) float64 {
	return a.api.ReadDouble(option, defValue)
}

// ReadInt reads option as an integer.
func (a *Accessor) ReadInt(option string, defValue int) int {
	return a.api.ReadInt(option, defValue)
}

// MeasureName returns the measure's name.
func (a *Accessor) MeasureName() string {
	return a.api.MeasureName()
}

// Execute runs a host command.
func (a *Accessor) Execute(command string) {
	a.api.Execute(command)
}

// Log writes message to the host log. Levels outside LogError..LogDebug
// are rejected.
func (a *Accessor) Log(level entities.LogLevel, message string) error {
	if !level.Valid() {
		return fmt.Errorf("invalid log level %d", int(level))
	}
	a.api.Log(level, message)
	return nil
}

// Names of the accessor host functions.
const (
	FuncReadString     = "read_string"
	FuncReadPath       = "read_path"
	FuncReadDouble     = "read_double"
	FuncReadInt        = "read_int"
	FuncGetMeasureName = "get_measure_name"
	FuncExecute        = "execute"
	FuncLog            = "log"
	FuncSetMaxValue    = "set_max_value"
)

// ReadStringRequest asks for a string option.
type ReadStringRequest struct {
	Option  string `json:"option"`
	Default string `json:"default"`
	Replace bool   `json:"replace"`
}

// ReadPathRequest asks for a path option.
type ReadPathRequest struct {
	Option  string `json:"option"`
	Default string `json:"default"`
}

// StringResponse carries a string result. OK is false when the host had no
// value, which scripts see as null.
type StringResponse struct {
	Value string `json:"value"`
	OK    bool   `json:"ok"`
}

// ReadDoubleRequest asks for a numeric option.
type ReadDoubleRequest struct {
	Option  string  `json:"option"`
	Default float64 `json:"default"`
}

// ReadDoubleResponse carries a numeric option.
type ReadDoubleResponse struct {
	Value float64 `json:"value"`
}

// ReadIntRequest asks for an integer option.
type ReadIntRequest struct {
	Option  string `json:"option"`
	Default int    `json:"default"`
}

// ReadIntResponse carries an integer option.
type ReadIntResponse struct {
	Value int `json:"value"`
}

// ExecuteRequest carries a host command.
type ExecuteRequest struct {
	Command string `json:"command"`
}

// LogRequest carries a host log line.
type LogRequest struct {
	Message string            `json:"message"`
	Level   entities.LogLevel `json:"level"`
}

// SetMaxValueRequest stores a new maximum in the Reload box.
type SetMaxValueRequest struct {
	Value float64 `json:"value"`
}

// Empty is the response of calls with no result.
type Empty struct{}

// AccessorBundle returns the host functions backing the script accessor:
// read_string, read_path, read_double, read_int, get_measure_name, execute,
// log and set_max_value.
func AccessorBundle() HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			FuncReadString: accessorHandler(FuncReadString, func(_ context.Context, a *Accessor, req ReadStringRequest) (StringResponse, *ErrorResponse) {
				if req.Option == "" {
					return StringResponse{}, validationErr("option is required")
				}
				v, ok := a.ReadString(req.Option, req.Default, req.Replace)
				return StringResponse{Value: v, OK: ok}, nil
			}),
			FuncReadPath: accessorHandler(FuncReadPath, func(_ context.Context, a *Accessor, req ReadPathRequest) (StringResponse, *ErrorResponse) {
				if req.Option == "" {
					return StringResponse{}, validationErr("option is required")
				}
				v, ok := a.ReadPath(req.Option, req.Default)
				return StringResponse{Value: v, OK: ok}, nil
			}),
			FuncReadDouble: accessorHandler(FuncReadDouble, func(_ context.Context, a *Accessor, req ReadDoubleRequest) (ReadDoubleResponse, *ErrorResponse) {
				if req.Option == "" {
					return ReadDoubleResponse{}, validationErr("option is required")
				}
				return ReadDoubleResponse{Value: a.ReadDouble(req.Option, req.Default)}, nil
			}),
			FuncReadInt: accessorHandler(FuncReadInt, func(_ context.Context, a *Accessor, req ReadIntRequest) (ReadIntResponse, *ErrorResponse) {
				if req.Option == "" {
					return ReadIntResponse{}, validationErr("option is required")
				}
				return ReadIntResponse{Value: a.ReadInt(req.Option, req.Default)}, nil
			}),
			FuncGetMeasureName: accessorHandler(FuncGetMeasureName, func(_ context.Context, a *Accessor, _ Empty) (StringResponse, *ErrorResponse) {
				return StringResponse{Value: a.MeasureName(), OK: true}, nil
			}),
			FuncExecute: accessorHandler(FuncExecute, func(_ context.Context, a *Accessor, req ExecuteRequest) (Empty, *ErrorResponse) {
				a.Execute(req.Command)
				return Empty{}, nil
			}),
			FuncLog: accessorHandler(FuncLog, func(_ context.Context, a *Accessor, req LogRequest) (Empty, *ErrorResponse) {
				if err := a.Log(req.Level, req.Message); err != nil {
					return Empty{}, validationErr(err.Error())
				}
				return Empty{}, nil
			}),
			FuncSetMaxValue: func(ctx context.Context, payload []byte) ([]byte, error) {
				var req SetMaxValueRequest
				if err := decodePayload(payload, &req); err != nil {
					return NewValidationError(err.Error()).ToJSON(), nil
				}
				box, ok := MaxValueFrom(ctx)
				if !ok {
					return NewNotFoundError("max value box outside Reload").ToJSON(), nil
				}
				box.Store(req.Value)
				return []byte("{}"), nil
			},
		},
	}
}

// NewAccessorRegistry builds the registry every engine dispatches accessor
// calls through. Extra options (middleware, handlers) are appended.
func NewAccessorRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	base := []RegistryOption{
		WithMiddleware(PanicRecoveryMiddleware()),
		WithBundle(AccessorBundle()),
	}
	return NewRegistry(append(base, opts...)...)
}

func validationErr(msg string) *ErrorResponse {
	e := NewValidationError(msg)
	return &e
}

// accessorHandler decodes the request, resolves the accessor bound to ctx
// and encodes either the response or the error.
func accessorHandler[Req any, Resp any](name string, fn func(context.Context, *Accessor, Req) (Resp, *ErrorResponse)) ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Req
		if err := decodePayload(payload, &req); err != nil {
			return NewValidationError(err.Error()).ToJSON(), nil
		}
		a, ok := AccessorFrom(ctx)
		if !ok {
			return NewNoAccessorError(name).ToJSON(), nil
		}
		resp, errResp := fn(ctx, a, req)
		if errResp != nil {
			return errResp.ToJSON(), nil
		}
		out, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s response: %w", name, err)
		}
		return out, nil
	}
}
