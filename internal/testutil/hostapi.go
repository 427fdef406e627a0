package testutil

import (
	"sync"

	"github.com/reglet-dev/scriptmeasure/config"
	"github.com/reglet-dev/scriptmeasure/domain/entities"
)

// LogEntry is one line written through HostAPI.Log.
type LogEntry struct {
	Message string
	Level   entities.LogLevel
}

// FakeHostAPI is an in-memory ports.HostAPI backed by config.Options. It
// records log lines and executed commands.
type FakeHostAPI struct {
	// ExecuteFunc, when set, is called for every Execute.
	ExecuteFunc func(command string)

	Options  *config.Options
	Name     string
	logs     []LogEntry
	commands []string
	mu       sync.Mutex
}

// NewFakeHostAPI creates a host for measure name with the given options.
func NewFakeHostAPI(name string, options map[string]string, opts ...config.OptionsOption) *FakeHostAPI {
	return &FakeHostAPI{
		Name:    name,
		Options: config.NewOptions(options, opts...),
	}
}

func (h *FakeHostAPI) ReadString(option, defValue string, substitute bool) (string, bool) {
	return h.Options.ReadString(option, defValue, substitute)
}

func (h *FakeHostAPI) ReadPath(option, defValue string) (string, bool) {
	return h.Options.ReadPath(option, defValue)
}

func (h *FakeHostAPI) ReadDouble(option string, defValue float64) float64 {
	return h.Options.ReadDouble(option, defValue)
}

func (h *FakeHostAPI) ReadInt(option string, defValue int) int {
	return h.Options.ReadInt(option, defValue)
}

func (h *FakeHostAPI) MeasureName() string {
	return h.Name
}

func (h *FakeHostAPI) Execute(command string) {
	h.mu.Lock()
	h.commands = append(h.commands, command)
	fn := h.ExecuteFunc
	h.mu.Unlock()
	if fn != nil {
		fn(command)
	}
}

func (h *FakeHostAPI) Log(level entities.LogLevel, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = append(h.logs, LogEntry{Level: level, Message: message})
}

// Logs returns a copy of the recorded log lines.
func (h *FakeHostAPI) Logs() []LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]LogEntry(nil), h.logs...)
}

// Commands returns a copy of the executed commands.
func (h *FakeHostAPI) Commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.commands...)
}

// LogMessages returns the messages logged at level.
func (h *FakeHostAPI) LogMessages(level entities.LogLevel) []string {
	var out []string
	for _, e := range h.Logs() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}
