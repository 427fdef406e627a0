package host

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"unicode/utf8"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/errors"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/hostfuncs"
	"github.com/reglet-dev/scriptmeasure/internal/abi"
	hostlog "github.com/reglet-dev/scriptmeasure/log"
)

// Script methods called by the lifecycle controller.
const (
	methodReload      = string(entities.OpReload)
	methodUpdate      = string(entities.OpUpdate)
	methodGetString   = string(entities.OpGetString)
	methodExecuteBang = string(entities.OpExecuteBang)
	methodFinalize    = string(entities.OpFinalize)
)

// MeasureOption configures a Measure.
type MeasureOption func(*measureConfig)

type measureConfig struct {
	loader *Loader
	alloc  abi.Allocator
	logger *slog.Logger
	bridge entities.BridgeConfig
}

func defaultMeasureConfig() measureConfig {
	return measureConfig{
		bridge: entities.DefaultBridgeConfig(),
	}
}

// WithLoader sets the script loader. The default resolves relative paths
// against the bridge config's script root.
func WithLoader(l *Loader) MeasureOption {
	return func(c *measureConfig) {
		c.loader = l
	}
}

// WithAllocator sets the allocator for string buffers handed to the host.
func WithAllocator(a abi.Allocator) MeasureOption {
	return func(c *measureConfig) {
		c.alloc = a
	}
}

// WithLogger sets the measure logger. The default writes to the host log.
func WithLogger(logger *slog.Logger) MeasureOption {
	return func(c *measureConfig) {
		c.logger = logger
	}
}

// WithBridgeConfig applies process-wide bridge settings.
func WithBridgeConfig(cfg entities.BridgeConfig) MeasureOption {
	return func(c *measureConfig) {
		c.bridge = cfg
	}
}

// Measure is one host measure bound to a script object. All fields below
// the config are touched only with the execution lock held.
type Measure struct {
	mgr    *Manager
	loader *Loader
	alloc  abi.Allocator
	logger *slog.Logger
	cfg    entities.BridgeConfig
	name   string

	sc      ports.ScriptContext
	obj     ports.ScriptObject
	loadErr *errors.LoadError
	state   entities.State

	text     *abi.WideString
	lastText string
	diag     *abi.WideString

	value     float64
	maxValue  float64
	destroyed bool
}

// NewMeasure starts the runtime if needed and gives the measure its own
// context. No script is loaded until the first Reload.
func NewMeasure(ctx context.Context, mgr *Manager, api ports.HostAPI, opts ...MeasureOption) (*Measure, error) {
	cfg := defaultMeasureConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = hostlog.NewLogger(api, hostlog.WithLevel(slog.LevelDebug))
	}
	if cfg.loader == nil {
		cfg.loader = NewLoader(WithScriptRoot(cfg.bridge.ScriptRoot), WithLoaderLogger(cfg.logger))
	}
	if cfg.alloc == nil {
		cfg.alloc = abi.NewHeapAllocator()
	}

	m := &Measure{
		mgr:    mgr,
		loader: cfg.loader,
		alloc:  cfg.alloc,
		logger: cfg.logger,
		cfg:    cfg.bridge,
		name:   api.MeasureName(),
		state:  entities.StateUninitialized,
	}

	home, _ := api.ReadString(entities.OptionRuntimeHome, "", false)
	if home == "" {
		home, _ = api.ReadString(entities.OptionRuntimeHomeAlias, "", false)
	}

	err := mgr.Do(nil, func(s *Session) error {
		if err := mgr.ensureStarted(ctx, s, home); err != nil {
			return err
		}
		sc, err := mgr.CreateIsolatedContext(ctx, s)
		if err != nil {
			return err
		}
		m.sc = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Name returns the measure name reported by the host at creation.
func (m *Measure) Name() string {
	return m.name
}

// Reload loads the script on first use (or after a failed load) and calls
// its Reload method with the host accessor and the max-value box. A value
// stored in the box is copied back to maxValue.
func (m *Measure) Reload(ctx context.Context, api ports.HostAPI, maxValue *float64) {
	_ = m.mgr.Do(m.sc, func(s *Session) error {
		if m.destroyed {
			return nil
		}
		acc := hostfuncs.NewAccessor(api)

		if m.obj == nil {
			m.load(ctx, s, acc)
		}
		if m.obj == nil {
			return nil
		}

		box := &ports.MaxValue{}
		if maxValue != nil {
			box.Value = *maxValue
		}
		callCtx := hostfuncs.WithMaxValue(hostfuncs.WithAccessor(ctx, acc), box)
		_, err := m.obj.Call(callCtx, methodReload, acc, box)
		m.callFailed(ctx, entities.OpReload, err)

		if box.Set {
			m.maxValue = box.Value
			if maxValue != nil {
				*maxValue = box.Value
			}
		}
		return nil
	})
}

func (m *Measure) load(ctx context.Context, s *Session, acc *hostfuncs.Accessor) {
	m.state = entities.StateLoading
	path, _ := acc.ReadPath(entities.OptionScriptPath, entities.DefaultScriptPath)
	if path == "" {
		path = entities.DefaultScriptPath
	}
	class, _ := acc.ReadString(entities.OptionClassName, entities.DefaultClassName, false)
	if class == "" {
		class = entities.DefaultClassName
	}

	res := m.loader.Load(ctx, s, path, class)
	if !res.OK() {
		m.state = entities.StateFailed
		m.loadErr = res.Err
		m.setDiagnostic(ctx, res.Err)
		return
	}

	m.obj = res.Object
	m.loadErr = nil
	m.state = entities.StateReady
	m.diag.Free()
	m.diag = nil
}

// setDiagnostic shows the load failure as the measure string in isolated
// mode and logs it in shared mode.
func (m *Measure) setDiagnostic(ctx context.Context, le *errors.LoadError) {
	m.diag.Free()
	m.diag = nil
	if m.cfg.SharedContext {
		m.logger.ErrorContext(ctx, le.Diagnostic(), "path", le.Path, "class", le.Class, "error", le.Err)
		return
	}
	m.logger.DebugContext(ctx, "script load failed", "error", le)
	diag, err := abi.NewWideString(m.alloc, le.Diagnostic())
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to allocate diagnostic", "error", err)
		return
	}
	m.diag = diag
}

// Update calls the script's Update. Only numeric results count; anything
// else, including a raised error, yields 0.
func (m *Measure) Update(ctx context.Context) float64 {
	var v float64
	_ = m.mgr.Do(m.sc, func(_ *Session) error {
		if m.destroyed || m.state != entities.StateReady {
			return nil
		}
		res, err := m.obj.Call(ctx, methodUpdate)
		if err != nil {
			m.callFailed(ctx, entities.OpUpdate, err)
			return nil
		}
		if f, ok := res.Float(); ok {
			v = f
		}
		m.value = v
		return nil
	})
	return v
}

// Stringify calls the script's GetString and returns the buffer the host
// may read until the next Stringify or Destroy. A nil result means no
// string. Before a successful load the diagnostic buffer is returned.
func (m *Measure) Stringify(ctx context.Context) *abi.WideString {
	var out *abi.WideString
	_ = m.mgr.Do(m.sc, func(_ *Session) error {
		if m.destroyed {
			return nil
		}
		if m.state != entities.StateReady {
			out = m.diag
			return nil
		}

		prev := m.text
		m.text = nil
		res, err := m.obj.Call(ctx, methodGetString)
		switch {
		case err != nil:
			m.callFailed(ctx, entities.OpGetString, err)
			if prev != nil {
				m.text = m.newText(ctx, m.lastText)
			}
		case res.IsAbsent(), res.Kind() == ports.KindString && res.String() == "":
			m.lastText = ""
		default:
			m.lastText = m.truncate(res.String())
			m.text = m.newText(ctx, m.lastText)
		}
		// The replacement is allocated before the old buffer goes back, so
		// the host never sees the same address twice in a row.
		prev.Free()
		if m.text == nil {
			m.lastText = ""
		}
		out = m.text
		return nil
	})
	return out
}

func (m *Measure) newText(ctx context.Context, s string) *abi.WideString {
	w, err := abi.NewWideString(m.alloc, s)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to allocate string buffer", "error", err)
		return nil
	}
	return w
}

func (m *Measure) truncate(s string) string {
	limit := m.cfg.MaxStringBytes
	if limit <= 0 || len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Command forwards a host command to the script's ExecuteBang.
func (m *Measure) Command(ctx context.Context, args string) {
	_ = m.mgr.Do(m.sc, func(_ *Session) error {
		if m.destroyed || m.state != entities.StateReady {
			return nil
		}
		_, err := m.obj.Call(ctx, methodExecuteBang, args)
		m.callFailed(ctx, entities.OpExecuteBang, err)
		return nil
	})
}

// Destroy calls the script's Finalize, frees every buffer and hands the
// context back to the manager. Later calls on the measure are no-ops.
func (m *Measure) Destroy(ctx context.Context) error {
	return m.mgr.Do(m.sc, func(s *Session) error {
		if m.destroyed {
			return nil
		}
		m.destroyed = true

		if m.state == entities.StateReady {
			_, err := m.obj.Call(ctx, methodFinalize)
			m.callFailed(ctx, entities.OpFinalize, err)
		}
		m.text.Free()
		m.text = nil
		m.diag.Free()
		m.diag = nil
		m.obj = nil
		m.state = entities.StateUninitialized

		err := m.mgr.DestroyContext(ctx, s, m.sc)
		m.sc = nil
		if stdErrors.Is(err, errors.ErrRuntimeNotStarted) {
			// the manager was closed underneath us
			return nil
		}
		return err
	})
}

// Snapshot describes the measure for diagnostics.
func (m *Measure) Snapshot() entities.MeasureSnapshot {
	var snap entities.MeasureSnapshot
	_ = m.mgr.Do(m.sc, func(_ *Session) error {
		snap = entities.MeasureSnapshot{
			Name:     m.name,
			State:    m.state.String(),
			Value:    m.value,
			MaxValue: m.maxValue,
			Text:     m.lastText,
			HasText:  m.text != nil,
		}
		if m.loadErr != nil {
			snap.LoadError = m.loadErr.ToErrorDetail()
			if !m.cfg.SharedContext {
				snap.Text = m.loadErr.Diagnostic()
				snap.HasText = true
			}
		}
		return nil
	})
	return snap
}

// State returns the lifecycle state.
func (m *Measure) State() entities.State {
	var st entities.State
	_ = m.mgr.Do(m.sc, func(_ *Session) error {
		st = m.state
		return nil
	})
	return st
}

// LoadError returns the last load failure, or nil.
func (m *Measure) LoadError() *errors.LoadError {
	var le *errors.LoadError
	_ = m.mgr.Do(m.sc, func(_ *Session) error {
		le = m.loadErr
		return nil
	})
	return le
}

// callFailed logs a script method error at the level configured for op.
// A missing optional method is not an error.
func (m *Measure) callFailed(ctx context.Context, op entities.Operation, err error) {
	if err == nil {
		return
	}
	if stdErrors.Is(err, errors.ErrMethodNotFound) {
		m.logger.DebugContext(ctx, "script method not defined", "method", string(op))
		return
	}
	level := m.cfg.CallErrorLevel(op)
	if level == entities.LevelDiscard {
		return
	}
	callErr := &errors.RuntimeCallError{Method: string(op), Err: err}
	m.logger.Log(ctx, level, callErr.Error())
}
