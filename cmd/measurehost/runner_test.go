package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/scriptmeasure/domain/ports"
	measuretest "github.com/reglet-dev/scriptmeasure/testing"
)

const counterScript = `
class Counter {
	Reload(rm, maxValue) {
		this.rm = rm;
		this.step = rm.RmReadDouble("Step", 1);
		this.n = 0;
		maxValue.value = 10;
	}
	Update() {
		this.n += this.step;
		if (this.n >= 3) {
			this.rm.RmExecute("[!SetVariable Hit yes][!CommandMeasure Echo ping pong]");
		}
		return this.n;
	}
	ExecuteBang(args) { this.n = 0; }
}
`

const echoScript = `
class Echo {
	Reload(rm) { this.text = rm.RmReadString("Text", "none"); }
	GetString() { return this.text; }
	ExecuteBang(args) { this.text = args; }
}
`

const demoSkin = `
name: demo
update_interval: 100ms
variables:
  Greeting: hello
bridge:
  engine: goja
measures:
  - name: Counter
    options:
      ScriptPath: counter.js
      ClassName: Counter
      Step: "2"
  - name: Echo
    options:
      ScriptPath: echo.js
      ClassName: Echo
      Text: "#Greeting#"
`

func newTestRunner(t *testing.T, skin string, opts ...RunnerOption) (*Runner, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "counter.js", counterScript)
	writeFile(t, dir, "echo.js", echoScript)
	path := writeFile(t, dir, "skin.yaml", skin)

	out := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]RunnerOption{WithOutput(out), WithRunnerLogger(logger)}, opts...)
	r, err := NewRunner(context.Background(), path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r, out, dir
}

func TestRunner_Poll(t *testing.T) {
	ctx := context.Background()
	r, out, _ := newTestRunner(t, demoSkin)

	readings := r.Poll(ctx)
	require.Len(t, readings, 2)
	assert.Equal(t, "Counter", readings[0].Name)
	assert.Equal(t, 2.0, readings[0].Value)
	assert.Equal(t, 10.0, readings[0].MaxValue)
	assert.False(t, readings[0].HasText)
	assert.Equal(t, "hello", readings[1].Text)
	assert.Equal(t, "Counter: 2\nEcho: hello\n", out.String())
	assert.Equal(t, "100ms", r.Interval().String())
}

func TestRunner_BangsFromScripts(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRunner(t, demoSkin)

	r.Poll(ctx)
	_, ok := r.Variable("Hit")
	assert.False(t, ok)

	// Second update reaches 4 and queues two bangs; Echo sees the command
	// before it is polled.
	readings := r.Poll(ctx)
	v, ok := r.Variable("Hit")
	require.True(t, ok)
	assert.Equal(t, "yes", v)
	assert.Equal(t, "ping pong", readings[1].Text)
}

func TestRunner_Command(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRunner(t, demoSkin)

	r.Poll(ctx)
	require.NoError(t, r.Command(ctx, "counter", "reset"))
	readings := r.Poll(ctx)
	assert.Equal(t, 2.0, readings[0].Value)

	assert.ErrorContains(t, r.Command(ctx, "nope", "x"), `no measure named "nope"`)
}

func TestRunner_RunBang(t *testing.T) {
	ctx := context.Background()
	mock := &measuretest.MockCommandRunner{
		RunFunc: func(_ context.Context, req ports.CommandRequest) (*ports.CommandResult, error) {
			return &ports.CommandResult{Stdout: "ok\n"}, nil
		},
	}
	r, _, dir := newTestRunner(t, demoSkin, WithCommandRunner(mock))

	r.queue.push("test", `[!Run echo "a b"][!Frobnicate][!SetVariable Only]`)
	r.runBangs(ctx)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "echo", reqs[0].Command)
	assert.Equal(t, []string{"a b"}, reqs[0].Args)
	assert.Equal(t, dir, reqs[0].Dir)
	assert.Equal(t, runTimeout, reqs[0].Timeout)
	_, ok := r.Variable("Only")
	assert.False(t, ok)
}

func TestRunner_BangChainIsBounded(t *testing.T) {
	ctx := context.Background()
	skin := `
name: loop
measures:
  - name: Loop
    options:
      ScriptPath: loop.js
`
	dir := t.TempDir()
	writeFile(t, dir, "loop.js", `
class Measure {
	Reload(rm) { this.rm = rm; }
	ExecuteBang(args) { this.rm.RmExecute("!CommandMeasure Loop again"); }
}`)
	path := writeFile(t, dir, "skin.yaml", skin)
	r, err := NewRunner(ctx, path, WithOutput(io.Discard),
		WithRunnerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer func() { _ = r.Close(ctx) }()

	require.NoError(t, r.Command(ctx, "Loop", "start"))
	assert.Empty(t, r.queue.drain())
}

func TestRunner_ReloadSkin(t *testing.T) {
	ctx := context.Background()
	r, _, dir := newTestRunner(t, demoSkin)
	before := r.Snapshots()
	require.Len(t, before, 2)

	writeFile(t, dir, "skin.yaml", `
name: demo
variables:
  Greeting: bye
measures:
  - name: Echo
    options:
      ScriptPath: echo.js
      ClassName: Echo
      Text: "#Greeting# now"
  - name: Second
    options:
      ScriptPath: echo.js
      ClassName: Echo
`)
	require.NoError(t, r.ReloadSkin(ctx))

	readings := r.Poll(ctx)
	require.Len(t, readings, 2)
	assert.Equal(t, "bye now", readings[0].Text)
	assert.Equal(t, "none", readings[1].Text)
	assert.Len(t, r.plugin.Handles(), 2)
	assert.Equal(t, "1s", r.Interval().String())
}

func TestRunner_Recreate(t *testing.T) {
	ctx := context.Background()
	r, _, dir := newTestRunner(t, demoSkin)
	handles := r.plugin.Handles()

	writeFile(t, dir, "echo.js", `
class Echo {
	GetString() { return "v2"; }
}`)
	require.NoError(t, r.Recreate(ctx, filepath.Join(dir, "echo.js")))

	readings := r.Poll(ctx)
	assert.Equal(t, "v2", readings[1].Text)
	after := r.plugin.Handles()
	assert.Equal(t, handles[0], after[0], "other measures keep their handle")
	assert.NotEqual(t, handles[1], after[1])
}

func TestRunner_ScriptPaths(t *testing.T) {
	r, _, dir := newTestRunner(t, demoSkin)
	assert.Equal(t, []string{
		filepath.Join(dir, "counter.js"),
		filepath.Join(dir, "echo.js"),
	}, r.ScriptPaths())
}

func TestRunner_LoadFailureIsAMeasureState(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRunner(t, `
name: broken
measures:
  - name: Missing
    options:
      ScriptPath: missing.js
`)
	readings := r.Poll(ctx)
	require.Len(t, readings, 1)
	assert.Equal(t, "Error opening script", readings[0].Text)

	snaps := r.Snapshots()
	require.Len(t, snaps, 1)
	require.NotNil(t, snaps[0].LoadError)
}

func TestNewRunner_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := NewRunner(ctx, filepath.Join(dir, "none.yaml"))
	assert.Error(t, err)

	path := writeFile(t, dir, "bad.yaml", `
name: x
bridge:
  call_error_level: loud
measures:
  - name: A
`)
	_, err = NewRunner(ctx, path)
	assert.Error(t, err)
}

func TestRunner_Close(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRunner(t, demoSkin)
	require.NoError(t, r.Close(ctx))
	assert.Empty(t, r.plugin.Handles())
	for _, rt := range r.plugin.Runtimes() {
		assert.False(t, rt.Initialized)
	}
}
