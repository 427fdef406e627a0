// Package measuretest provides a test harness for measure scripts.
package measuretest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/reglet-dev/scriptmeasure"
	"github.com/reglet-dev/scriptmeasure/config"
	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/internal/testutil"
)

// Result is what one measure produced over a Reload, Updates and GetString.
type Result struct {
	Snapshot scriptmeasure.Snapshot
	Text     string
	Commands []string
	Values   []float64
	MaxValue float64
	HasText  bool
}

// Value returns the last updated value.
func (r *Result) Value() float64 {
	if len(r.Values) == 0 {
		return 0
	}
	return r.Values[len(r.Values)-1]
}

// TestCase defines one measure run. Script is written to ScriptName (or
// "measure.js") in a temporary directory, which also resolves relative
// option paths.
type TestCase struct {
	Options    map[string]string
	Validate   func(t *testing.T, r *Result)
	Name       string
	ScriptName string
	Script     string
	Bangs      []string
	Updates    int
}

// RunMeasureTests creates one measure per test case on p, runs it and
// destroys it.
func RunMeasureTests(t *testing.T, p *scriptmeasure.Plugin, tests []TestCase) {
	t.Helper()

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			name := tc.ScriptName
			if name == "" {
				name = "measure.js"
			}
			if tc.Script != "" {
				if err := os.WriteFile(filepath.Join(dir, name), []byte(tc.Script), 0o600); err != nil {
					t.Fatalf("failed to write script: %v", err)
				}
			}

			options := map[string]string{entities.OptionScriptPath: name}
			for k, v := range tc.Options {
				options[k] = v
			}
			api := testutil.NewFakeHostAPI(tc.Name, options, config.WithBaseDir(dir))

			h, err := p.Create(ctx, api)
			if err != nil {
				t.Fatalf("create failed: %v", err)
			}
			defer func() {
				if err := p.Destroy(ctx, h); err != nil {
					t.Errorf("destroy failed: %v", err)
				}
			}()

			r := &Result{MaxValue: 1}
			p.Reload(ctx, h, api, &r.MaxValue)
			updates := tc.Updates
			if updates == 0 {
				updates = 1
			}
			for i := 0; i < updates; i++ {
				r.Values = append(r.Values, p.Update(ctx, h))
			}
			for _, b := range tc.Bangs {
				p.Command(ctx, h, b)
			}
			r.Text, r.HasText = p.StringifyText(ctx, h)
			r.Snapshot, _ = p.Snapshot(h)
			r.Commands = api.Commands()

			if tc.Validate != nil {
				tc.Validate(t, r)
			}
		})
	}
}

// AssertReady asserts the measure loaded its script.
func AssertReady(t *testing.T, r *Result) {
	t.Helper()
	if r.Snapshot.LoadError != nil {
		t.Errorf("expected a loaded measure, got %s: %s", r.Snapshot.State, r.Snapshot.LoadError.Message)
	}
}

// AssertLoadError asserts the measure failed to load with a message
// containing want.
func AssertLoadError(t *testing.T, r *Result, want string) {
	t.Helper()
	if r.Snapshot.LoadError == nil {
		t.Errorf("expected a load error, measure is %s", r.Snapshot.State)
		return
	}
	if want != "" && !strings.Contains(r.Snapshot.LoadError.Message, want) {
		t.Errorf("load error %q does not contain %q", r.Snapshot.LoadError.Message, want)
	}
}

// AssertText asserts the last GetString result.
func AssertText(t *testing.T, r *Result, expected string) {
	t.Helper()
	if !r.HasText {
		t.Errorf("expected text %q, measure returned none", expected)
		return
	}
	if r.Text != expected {
		t.Errorf("text: expected %q, got %q", expected, r.Text)
	}
}

// AssertValue asserts the last Update result.
func AssertValue(t *testing.T, r *Result, expected float64) {
	t.Helper()
	if got := r.Value(); got != expected {
		t.Errorf("value: expected %v, got %v", expected, got)
	}
}

// MockCommandRunner records requests and answers with RunFunc.
type MockCommandRunner struct {
	RunFunc  func(ctx context.Context, req ports.CommandRequest) (*ports.CommandResult, error)
	requests []ports.CommandRequest
	mu       sync.Mutex
}

// Run implements ports.CommandRunner.
func (m *MockCommandRunner) Run(ctx context.Context, req ports.CommandRequest) (*ports.CommandResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.RunFunc != nil {
		return m.RunFunc(ctx, req)
	}
	return &ports.CommandResult{}, nil
}

// Requests returns every request seen so far.
func (m *MockCommandRunner) Requests() []ports.CommandRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.CommandRequest(nil), m.requests...)
}

var _ ports.CommandRunner = (*MockCommandRunner)(nil)
