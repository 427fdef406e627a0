package hostfuncs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/reglet-dev/scriptmeasure/domain/ports"
)

// ExecCommandRequest contains parameters for a command execution.
type ExecCommandRequest struct {
	// Command is the command to execute.
	Command string `json:"command"`

	// Args contains command arguments.
	Args []string `json:"args"`

	// Dir is the working directory.
	Dir string `json:"dir,omitempty"`

	// Env contains environment variables (KEY=VALUE).
	Env []string `json:"env,omitempty"`

	// Timeout is the execution timeout in milliseconds. Default is 30000 (30s).
	Timeout int `json:"timeout_ms,omitempty"`
}

// ExecCommandResponse contains the result of a command execution.
type ExecCommandResponse struct {
	// Error contains error information if execution failed to start.
	Error *ExecError `json:"error,omitempty"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// DurationMs is the execution duration in milliseconds.
	DurationMs int64 `json:"duration_ms,omitempty"`

	ExitCode int `json:"exit_code"`

	// IsTimeout indicates if the command timed out.
	IsTimeout bool `json:"is_timeout,omitempty"`

	// Truncated is set when stdout or stderr exceeded the output limit.
	Truncated bool `json:"truncated,omitempty"`
}

// ExecError represents an execution error.
type ExecError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	return e.Message
}

// ExecOption is a functional option for configuring execution behavior.
type ExecOption func(*execConfig)

type execConfig struct {
	timeout           time.Duration
	maxOutput         int
	allowInterpreters bool
}

func defaultExecConfig() execConfig {
	return execConfig{
		timeout:   30 * time.Second,
		maxOutput: DefaultMaxOutputSize,
	}
}

// WithExecTimeout sets the execution timeout.
func WithExecTimeout(d time.Duration) ExecOption {
	return func(c *execConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxOutput caps stdout and stderr separately.
func WithMaxOutput(n int) ExecOption {
	return func(c *execConfig) {
		if n > 0 {
			c.maxOutput = n
		}
	}
}

// WithAllowInterpreters permits shell and interpreter code execution
// (sh -c, python -c and the like), which is refused by default.
func WithAllowInterpreters(allow bool) ExecOption {
	return func(c *execConfig) {
		c.allowInterpreters = allow
	}
}

// PerformExecCommand executes a command on the host.
func PerformExecCommand(ctx context.Context, req ExecCommandRequest, opts ...ExecOption) ExecCommandResponse {
	cfg := defaultExecConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if req.Timeout > 0 {
		cfg.timeout = time.Duration(req.Timeout) * time.Millisecond
	}

	if req.Command == "" {
		return ExecCommandResponse{
			Error: &ExecError{
				Code:    "INVALID_REQUEST",
				Message: "command is required",
			},
		}
	}

	if !cfg.allowInterpreters && IsDangerousExecution(req.Command, req.Args) {
		return ExecCommandResponse{
			Error: &ExecError{
				Code:    "DENIED",
				Message: fmt.Sprintf("%s denied: %s", DetectExecutionType(req.Command, req.Args), req.Command),
			},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	//nolint:gosec // G204: Command execution is the purpose of this function
	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	if req.Dir != "" {
		cmd.Dir = req.Dir
	}
	if len(req.Env) > 0 {
		cmd.Env = SanitizeEnv(req.Env)
	}

	stdout := NewBoundedBuffer(cfg.maxOutput)
	stderr := NewBoundedBuffer(cfg.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	resp := ExecCommandResponse{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: duration.Milliseconds(),
		Truncated:  stdout.Truncated || stderr.Truncated,
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			resp.IsTimeout = true
			resp.ExitCode = -1
			return resp
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			resp.ExitCode = exitErr.ExitCode()
			return resp
		}

		resp.Error = &ExecError{
			Code:    "EXECUTION_FAILED",
			Message: err.Error(),
		}
		return resp
	}

	return resp
}

// CommandRunner implements ports.CommandRunner on top of PerformExecCommand.
type CommandRunner struct {
	opts []ExecOption
}

// NewCommandRunner creates a runner applying opts to every command.
func NewCommandRunner(opts ...ExecOption) *CommandRunner {
	return &CommandRunner{opts: opts}
}

// Run executes req. Start failures and denials are returned as errors; a
// non-zero exit code is not an error.
func (r *CommandRunner) Run(ctx context.Context, req ports.CommandRequest) (*ports.CommandResult, error) {
	resp := PerformExecCommand(ctx, ExecCommandRequest{
		Command: req.Command,
		Args:    req.Args,
		Dir:     req.Dir,
		Env:     req.Env,
		Timeout: req.Timeout,
	}, r.opts...)
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &ports.CommandResult{
		Stdout:     resp.Stdout,
		Stderr:     resp.Stderr,
		ExitCode:   resp.ExitCode,
		DurationMs: resp.DurationMs,
		IsTimeout:  resp.IsTimeout,
		Truncated:  resp.Truncated,
	}, nil
}
