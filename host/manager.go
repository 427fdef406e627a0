package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/errors"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
)

// Manager is the execution context manager shared by all measures of one
// engine. The zero value is not usable; call NewManager.
type Manager struct {
	engine ports.Engine
	logger *slog.Logger

	// execMu is the execution lock. Counters and contexts below change
	// only while it is held. Managers of different engines in one process
	// share it through WithExecLock.
	execMu *sync.Mutex

	// stateMu guards reads from State without taking the execution lock.
	stateMu     sync.Mutex
	initialized bool
	live        int
	base        ports.ScriptContext
	current     ports.ScriptContext
	shared      bool
	// initErr is the first start failure. It is returned from every later
	// start attempt.
	initErr error
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	logger *slog.Logger
	execMu *sync.Mutex
	shared bool
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		logger: slog.Default(),
	}
}

// WithExecLock makes the manager serialize script calls on mu instead of a
// lock of its own. Pass the same mutex to every manager in the process.
func WithExecLock(mu *sync.Mutex) ManagerOption {
	return func(c *managerConfig) {
		if mu != nil {
			c.execMu = mu
		}
	}
}

// WithShared runs every measure in the base context.
func WithShared(enabled bool) ManagerOption {
	return func(c *managerConfig) {
		c.shared = enabled
	}
}

// WithManagerLogger sets the logger for runtime start and shutdown events.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(c *managerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewManager creates a manager for engine. The engine is not started until
// the first measure is created.
func NewManager(engine ports.Engine, opts ...ManagerOption) *Manager {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.execMu == nil {
		cfg.execMu = new(sync.Mutex)
	}
	return &Manager{
		engine: engine,
		logger: cfg.logger,
		execMu: cfg.execMu,
		shared: cfg.shared,
	}
}

// Engine returns the managed engine.
func (m *Manager) Engine() ports.Engine {
	return m.engine
}

// Session is a held execution lock. Obtain one with Acquire and release it
// exactly once; further Release calls are no-ops.
type Session struct {
	m        *Manager
	released atomic.Bool
}

// Acquire blocks until the execution lock is free, then makes ec the
// current context. ec may be nil when no context exists yet.
func (m *Manager) Acquire(ec ports.ScriptContext) *Session {
	m.execMu.Lock()
	m.setCurrent(ec)
	return &Session{m: m}
}

// Release clears the current context and frees the execution lock.
func (s *Session) Release() {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	s.m.setCurrent(nil)
	s.m.execMu.Unlock()
}

// Context returns the context current inside this session.
func (s *Session) Context() ports.ScriptContext {
	s.m.stateMu.Lock()
	defer s.m.stateMu.Unlock()
	return s.m.current
}

func (s *Session) valid(m *Manager) error {
	if s == nil || s.m != m {
		return fmt.Errorf("session does not belong to this manager")
	}
	if s.released.Load() {
		return fmt.Errorf("session already released")
	}
	return nil
}

// Do runs fn with the execution lock held and ec current. The lock is
// released on every exit path, including panics.
func (m *Manager) Do(ec ports.ScriptContext, fn func(s *Session) error) error {
	s := m.Acquire(ec)
	defer s.Release()
	return fn(s)
}

// EnsureRuntimeStarted starts the engine if it is not running. home is
// applied only when this call performs the start. A failed start is final:
// the same InitError comes back from every later call. On return no context
// is current.
func (m *Manager) EnsureRuntimeStarted(ctx context.Context, home string) (entities.RuntimeState, error) {
	err := m.Do(nil, func(s *Session) error {
		return m.ensureStarted(ctx, s, home)
	})
	return m.State(), err
}

func (m *Manager) ensureStarted(ctx context.Context, s *Session, home string) error {
	m.stateMu.Lock()
	initialized, initErr := m.initialized, m.initErr
	m.stateMu.Unlock()
	if initialized {
		return nil
	}
	if initErr != nil {
		return initErr
	}

	if err := m.engine.Start(ctx, ports.StartOptions{Home: home}); err != nil {
		return m.failStart(ctx, err)
	}
	base, err := m.engine.NewContext(ctx)
	if err != nil {
		_ = m.engine.Shutdown(ctx)
		return m.failStart(ctx, fmt.Errorf("base context: %w", err))
	}

	m.stateMu.Lock()
	m.initialized = true
	m.base = base
	m.stateMu.Unlock()

	m.logger.DebugContext(ctx, "script runtime started", "engine", m.engine.Name(), "home", home)
	m.setCurrent(nil)
	return nil
}

func (m *Manager) failStart(ctx context.Context, err error) error {
	initErr := &errors.InitError{Engine: m.engine.Name(), Err: err}
	m.stateMu.Lock()
	m.initErr = initErr
	m.stateMu.Unlock()
	m.logger.ErrorContext(ctx, "script runtime failed to start", "engine", m.engine.Name(), "error", err)
	return initErr
}

// CreateIsolatedContext hands out the context for a new measure and makes
// it current. Isolated mode creates a fresh engine context; shared mode
// returns the base context. The caller must hold s.
func (m *Manager) CreateIsolatedContext(ctx context.Context, s *Session) (ports.ScriptContext, error) {
	if err := s.valid(m); err != nil {
		return nil, err
	}
	if !m.isInitialized() {
		return nil, errors.ErrRuntimeNotStarted
	}

	var ec ports.ScriptContext
	if m.shared {
		ec = m.base
	} else {
		var err error
		ec, err = m.engine.NewContext(ctx)
		if err != nil {
			err = fmt.Errorf("failed to create script context: %w", err)
			m.stateMu.Lock()
			idle := m.live == 0
			m.stateMu.Unlock()
			// Nothing else keeps the runtime alive.
			if idle {
				err = stdErrors.Join(err, m.shutdown(ctx))
			}
			return nil, err
		}
	}

	m.stateMu.Lock()
	m.live++
	m.current = ec
	m.stateMu.Unlock()
	return ec, nil
}

// DestroyContext closes ec and drops the live count. When the count reaches
// zero in isolated mode the base context becomes current, and the engine is
// shut down. The caller must hold s.
func (m *Manager) DestroyContext(ctx context.Context, s *Session, ec ports.ScriptContext) error {
	if err := s.valid(m); err != nil {
		return err
	}
	if !m.isInitialized() {
		return errors.ErrRuntimeNotStarted
	}

	var errs []error
	if ec != nil && ec != m.base {
		if err := ec.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
	}

	m.stateMu.Lock()
	if m.live > 0 {
		m.live--
	}
	last := m.live == 0 && !m.shared
	m.stateMu.Unlock()

	if last {
		m.setCurrent(m.base)
		errs = append(errs, m.shutdown(ctx))
	} else {
		m.setCurrent(nil)
	}
	return stdErrors.Join(errs...)
}

// Close shuts the engine down regardless of live contexts. Measures still
// alive afterwards fail every call with ErrRuntimeNotStarted.
func (m *Manager) Close(ctx context.Context) error {
	return m.Do(nil, func(_ *Session) error {
		if !m.isInitialized() {
			return nil
		}
		m.stateMu.Lock()
		m.live = 0
		m.stateMu.Unlock()
		return m.shutdown(ctx)
	})
}

// shutdown closes the base context and the engine. Requires the lock.
func (m *Manager) shutdown(ctx context.Context) error {
	var errs []error
	if m.base != nil {
		if err := m.base.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close base context: %w", err))
		}
	}
	if err := m.engine.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown %s: %w", m.engine.Name(), err))
	}

	m.stateMu.Lock()
	m.initialized = false
	m.base = nil
	m.current = nil
	m.stateMu.Unlock()

	m.logger.DebugContext(ctx, "script runtime stopped", "engine", m.engine.Name())
	return stdErrors.Join(errs...)
}

// State returns a snapshot of the runtime bookkeeping.
func (m *Manager) State() entities.RuntimeState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return entities.RuntimeState{
		Engine:        m.engine.Name(),
		LiveInstances: m.live,
		Initialized:   m.initialized,
		Shared:        m.shared,
	}
}

func (m *Manager) isInitialized() bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.initialized
}

func (m *Manager) setCurrent(ec ports.ScriptContext) {
	m.stateMu.Lock()
	m.current = ec
	m.stateMu.Unlock()
}
