package main

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/reglet-dev/scriptmeasure"
	"github.com/reglet-dev/scriptmeasure/config"
	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/hostfuncs"
)

// maxBangRounds bounds chains of bangs that trigger further bangs.
const maxBangRounds = 16

// runTimeout applies to !Run commands, in milliseconds.
const runTimeout = 10_000

type runnerConfig struct {
	out        io.Writer
	logger     *slog.Logger
	commands   ports.CommandRunner
	pluginOpts []scriptmeasure.Option
}

func defaultRunnerConfig() runnerConfig {
	return runnerConfig{
		out:    os.Stdout,
		logger: slog.Default(),
	}
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerConfig)

// WithOutput sets where poll results and REPL output are written.
func WithOutput(w io.Writer) RunnerOption {
	return func(c *runnerConfig) {
		c.out = w
	}
}

// WithRunnerLogger sets the logger for the host and its measures.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(c *runnerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCommandRunner sets the runner used by !Run.
func WithCommandRunner(r ports.CommandRunner) RunnerOption {
	return func(c *runnerConfig) {
		c.commands = r
	}
}

// WithPluginOptions adds options to the bridge plugin.
func WithPluginOptions(opts ...scriptmeasure.Option) RunnerOption {
	return func(c *runnerConfig) {
		c.pluginOpts = append(c.pluginOpts, opts...)
	}
}

// hostMeasure is one skin measure as the host sees it.
type hostMeasure struct {
	api      *hostAPI
	name     string
	handle   scriptmeasure.Handle
	maxValue float64
}

// Reading is the result of polling one measure.
type Reading struct {
	Name     string
	Text     string
	Value    float64
	MaxValue float64
	HasText  bool
}

// Runner drives the measures of one skin. It is not safe for concurrent
// use: the main loop owns it.
type Runner struct {
	config   runnerConfig
	plugin   *scriptmeasure.Plugin
	skin     *entities.Skin
	vars     *config.Variables
	queue    *bangQueue
	path     string
	dir      string
	measures []*hostMeasure
}

// NewRunner loads the skin at path and creates its measures.
func NewRunner(ctx context.Context, path string, opts ...RunnerOption) (*Runner, error) {
	cfg := defaultRunnerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.commands == nil {
		cfg.commands = hostfuncs.NewCommandRunner()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	skin, err := loadSkin(abs)
	if err != nil {
		return nil, err
	}
	bridge, err := bridgeOptions(skin.Bridge)
	if err != nil {
		return nil, err
	}

	pluginOpts := append([]scriptmeasure.Option{
		scriptmeasure.WithBridgeOptions(bridge...),
		scriptmeasure.WithBridgeOptions(entities.WithScriptRoot(filepath.Dir(abs))),
	}, cfg.pluginOpts...)
	plugin, err := scriptmeasure.New(pluginOpts...)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		config: cfg,
		plugin: plugin,
		vars:   config.NewVariables(nil),
		queue:  &bangQueue{},
		path:   abs,
		dir:    filepath.Dir(abs),
	}
	if err := r.apply(ctx, skin); err != nil {
		_ = plugin.Close(ctx)
		return nil, err
	}
	return r, nil
}

// Interval returns the skin's polling period.
func (r *Runner) Interval() time.Duration {
	return r.skin.UpdateInterval.Std()
}

// Path returns the absolute skin path.
func (r *Runner) Path() string {
	return r.path
}

func (r *Runner) options(sm entities.SkinMeasure) *config.Options {
	return config.NewOptions(sm.Options, config.WithVariables(r.vars), config.WithBaseDir(r.dir))
}

// apply reconciles the live measures with skin: removed measures are
// destroyed, new ones created, and every measure reloaded.
func (r *Runner) apply(ctx context.Context, skin *entities.Skin) error {
	if r.skin != nil && r.skin.Bridge != skin.Bridge {
		r.config.logger.Warn("bridge settings changed; restart to apply them")
	}
	for k, v := range skin.Variables {
		r.vars.Set(k, v)
	}

	existing := make(map[string]*hostMeasure, len(r.measures))
	for _, m := range r.measures {
		existing[m.name] = m
	}

	var errs []error
	next := make([]*hostMeasure, 0, len(skin.Measures))
	for _, sm := range skin.Measures {
		if m, ok := existing[sm.Name]; ok {
			m.api.setOptions(r.options(sm))
			delete(existing, sm.Name)
			next = append(next, m)
			continue
		}
		m, err := r.create(ctx, sm)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		next = append(next, m)
	}
	for _, m := range r.measures {
		if _, removed := existing[m.name]; removed {
			if err := r.plugin.Destroy(ctx, m.handle); err != nil {
				errs = append(errs, err)
			}
		}
	}

	r.measures = next
	r.skin = skin
	for _, m := range r.measures {
		r.plugin.Reload(ctx, m.handle, m.api, &m.maxValue)
	}
	r.runBangs(ctx)
	return stdErrors.Join(errs...)
}

func (r *Runner) create(ctx context.Context, sm entities.SkinMeasure) (*hostMeasure, error) {
	api := newHostAPI(sm.Name, r.options(sm), r.queue, r.config.logger)
	if err := scriptmeasure.ValidateOptions(scriptmeasure.ReadMeasureOptions(api)); err != nil {
		r.config.logger.Warn("measure options look wrong", "measure", sm.Name, "error", err)
	}
	h, err := r.plugin.Create(ctx, api)
	if err != nil {
		return nil, fmt.Errorf("measure %s: %w", sm.Name, err)
	}
	return &hostMeasure{api: api, name: sm.Name, handle: h, maxValue: 1}, nil
}

// ReloadSkin re-reads the skin file and applies it.
func (r *Runner) ReloadSkin(ctx context.Context) error {
	skin, err := loadSkin(r.path)
	if err != nil {
		return err
	}
	return r.apply(ctx, skin)
}

// Recreate destroys and recreates the measures whose script is path, so a
// changed script is loaded again.
func (r *Runner) Recreate(ctx context.Context, path string) error {
	var errs []error
	for i, m := range r.measures {
		opts := scriptmeasure.ReadMeasureOptions(m.api)
		if filepath.Clean(opts.ScriptPath) != filepath.Clean(path) {
			continue
		}
		if err := r.plugin.Destroy(ctx, m.handle); err != nil {
			errs = append(errs, err)
		}
		h, err := r.plugin.Create(ctx, m.api)
		if err != nil {
			errs = append(errs, fmt.Errorf("measure %s: %w", m.name, err))
			continue
		}
		fresh := &hostMeasure{api: m.api, name: m.name, handle: h, maxValue: 1}
		r.plugin.Reload(ctx, fresh.handle, fresh.api, &fresh.maxValue)
		r.measures[i] = fresh
	}
	r.runBangs(ctx)
	return stdErrors.Join(errs...)
}

// ScriptPaths lists the resolved script path of every measure.
func (r *Runner) ScriptPaths() []string {
	out := make([]string, 0, len(r.measures))
	for _, m := range r.measures {
		out = append(out, scriptmeasure.ReadMeasureOptions(m.api).ScriptPath)
	}
	return out
}

// Poll updates every measure in skin order and prints one line each.
func (r *Runner) Poll(ctx context.Context) []Reading {
	readings := make([]Reading, 0, len(r.measures))
	for _, m := range r.measures {
		rd := Reading{Name: m.name, MaxValue: m.maxValue}
		rd.Value = r.plugin.Update(ctx, m.handle)
		rd.Text, rd.HasText = r.plugin.StringifyText(ctx, m.handle)
		readings = append(readings, rd)
		r.runBangs(ctx)
	}
	for _, rd := range readings {
		text := strconv.FormatFloat(rd.Value, 'f', -1, 64)
		if rd.HasText {
			text = rd.Text
		}
		_, _ = fmt.Fprintf(r.config.out, "%s: %s\n", rd.Name, text)
	}
	return readings
}

// Command sends args to a measure's ExecuteBang.
func (r *Runner) Command(ctx context.Context, measure, args string) error {
	m := r.find(measure)
	if m == nil {
		return fmt.Errorf("no measure named %q", measure)
	}
	r.plugin.Command(ctx, m.handle, args)
	r.runBangs(ctx)
	return nil
}

// SetVariable sets a skin variable. It takes effect on the next option read.
func (r *Runner) SetVariable(name, value string) {
	r.vars.Set(name, value)
}

// Variable returns a skin variable.
func (r *Runner) Variable(name string) (string, bool) {
	return r.vars.Get(name)
}

// Snapshots describes every measure.
func (r *Runner) Snapshots() []scriptmeasure.Snapshot {
	out := make([]scriptmeasure.Snapshot, 0, len(r.measures))
	for _, m := range r.measures {
		if s, ok := r.plugin.Snapshot(m.handle); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *Runner) find(name string) *hostMeasure {
	for _, m := range r.measures {
		if strings.EqualFold(m.name, name) {
			return m
		}
	}
	return nil
}

// runBangs executes queued commands until the queue stays empty.
func (r *Runner) runBangs(ctx context.Context) {
	for round := 0; round < maxBangRounds; round++ {
		pending := r.queue.drain()
		if len(pending) == 0 {
			return
		}
		for _, b := range pending {
			if err := r.execute(ctx, b); err != nil {
				r.config.logger.Warn("bang failed", "measure", b.measure, "bang", b.String(), "error", err)
			}
		}
	}
	r.config.logger.Warn("bang chain too long, dropping the rest", "dropped", len(r.queue.drain()))
}

func (r *Runner) execute(ctx context.Context, b bang) error {
	switch b.name {
	case "log":
		r.config.logger.Info(strings.Join(b.args, " "), "source", b.measure)
		return nil
	case "setvariable":
		if len(b.args) != 2 {
			return fmt.Errorf("want !SetVariable NAME VALUE")
		}
		r.vars.Set(b.args[0], b.args[1])
		return nil
	case "commandmeasure":
		if len(b.args) < 2 {
			return fmt.Errorf("want !CommandMeasure MEASURE ARGS")
		}
		m := r.find(b.args[0])
		if m == nil {
			return fmt.Errorf("no measure named %q", b.args[0])
		}
		r.plugin.Command(ctx, m.handle, strings.Join(b.args[1:], " "))
		return nil
	case "run":
		if len(b.args) == 0 {
			return fmt.Errorf("want !Run PROGRAM [ARGS]")
		}
		res, err := r.config.commands.Run(ctx, ports.CommandRequest{
			Command: b.args[0],
			Args:    b.args[1:],
			Dir:     r.dir,
			Timeout: runTimeout,
		})
		if err != nil {
			return err
		}
		r.config.logger.Info("command finished", "source", b.measure, "command", b.args[0],
			"exit_code", res.ExitCode, "stdout", strings.TrimSpace(res.Stdout), "timeout", res.IsTimeout)
		return nil
	default:
		return fmt.Errorf("unsupported bang !%s", b.name)
	}
}

// Close destroys the measures in reverse order and stops the engines.
func (r *Runner) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.measures) - 1; i >= 0; i-- {
		if err := r.plugin.Destroy(ctx, r.measures[i].handle); err != nil {
			errs = append(errs, err)
		}
	}
	r.measures = nil
	errs = append(errs, r.plugin.Close(ctx))
	return stdErrors.Join(errs...)
}
