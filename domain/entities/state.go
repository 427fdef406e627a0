package entities

// State is the lifecycle state of a measure.
type State int

const (
	// StateUninitialized is the state after Create and before the first Reload.
	StateUninitialized State = iota
	// StateLoading is held while the script loader runs.
	StateLoading
	// StateReady means the script object exists. It is never left again.
	StateReady
	// StateFailed means the last load attempt failed. The next Reload retries.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RuntimeState is a snapshot of the process-wide runtime bookkeeping.
type RuntimeState struct {
	// Engine is the name of the scripting engine.
	Engine string `json:"engine"`

	// LiveInstances counts contexts handed out and not yet destroyed.
	LiveInstances int `json:"live_instances"`

	// Initialized is true while the engine is started.
	Initialized bool `json:"initialized"`

	// Shared is true when all measures run in the base context.
	Shared bool `json:"shared"`
}

// MeasureSnapshot describes a measure for diagnostics and the demo host.
type MeasureSnapshot struct {
	LoadError *ErrorDetail `json:"load_error,omitempty"`
	Name      string       `json:"name"`
	State     string       `json:"state"`
	Text      string       `json:"text,omitempty"`
	Value     float64      `json:"value"`
	MaxValue  float64      `json:"max_value,omitempty"`
	HasText   bool         `json:"has_text"`
}
