package scriptmeasure

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"unsafe"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/host"
	"github.com/reglet-dev/scriptmeasure/host/registry"
	gojaengine "github.com/reglet-dev/scriptmeasure/infrastructure/goja"
	wazeroengine "github.com/reglet-dev/scriptmeasure/infrastructure/wazero"
	"github.com/reglet-dev/scriptmeasure/internal/abi"
)

type pluginConfig struct {
	logger    *slog.Logger
	allocator abi.Allocator
	registry  *registry.Registry
	bridge    entities.BridgeConfig
}

func defaultPluginConfig() pluginConfig {
	return pluginConfig{
		bridge: entities.DefaultBridgeConfig(),
	}
}

// Option configures a Plugin.
type Option func(*pluginConfig)

// WithBridgeConfig replaces the bridge configuration.
func WithBridgeConfig(cfg BridgeConfig) Option {
	return func(c *pluginConfig) {
		c.bridge = cfg
	}
}

// WithBridgeOptions applies bridge options on top of the current configuration.
func WithBridgeOptions(opts ...BridgeOption) Option {
	return func(c *pluginConfig) {
		for _, opt := range opts {
			opt(&c.bridge)
		}
	}
}

// WithLogger sets the logger for engines and measures. Without it, each
// measure logs to its host and engines log to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *pluginConfig) {
		c.logger = logger
	}
}

// WithAllocator sets the allocator for string buffers returned by Stringify.
func WithAllocator(a abi.Allocator) Option {
	return func(c *pluginConfig) {
		c.allocator = a
	}
}

// WithRegistry replaces the engine registry.
func WithRegistry(r *registry.Registry) Option {
	return func(c *pluginConfig) {
		c.registry = r
	}
}

// Plugin is the host boundary: every entry point takes a Handle issued by
// Create. Calls on unknown handles are ignored.
type Plugin struct {
	config   pluginConfig
	registry *registry.Registry
	measures map[Handle]*host.Measure
	next     Handle
	mu       sync.RWMutex
}

// New creates a Plugin. The bridge configuration is validated here.
func New(opts ...Option) (*Plugin, error) {
	cfg := defaultPluginConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := ValidateConfig(cfg.bridge); err != nil {
		return nil, err
	}

	reg := cfg.registry
	if reg == nil {
		var err error
		reg, err = DefaultRegistry(cfg.bridge, cfg.logger)
		if err != nil {
			return nil, err
		}
	}
	return &Plugin{
		config:   cfg,
		registry: reg,
		measures: make(map[Handle]*host.Measure),
	}, nil
}

// DefaultRegistry registers the goja engine for .js scripts (and as the
// fallback) and the wazero engine for .wasm modules.
func DefaultRegistry(bridge BridgeConfig, logger *slog.Logger) (*registry.Registry, error) {
	engineLogger := logger
	if engineLogger == nil {
		engineLogger = slog.Default()
	}
	reg := registry.NewRegistry(
		registry.WithFallback(entities.EngineGoja),
		registry.WithManagerOptions(
			host.WithShared(bridge.SharedContext),
			host.WithManagerLogger(engineLogger),
		),
	)

	err := reg.Register(entities.EngineGoja, func() (ports.Engine, error) {
		e, err := gojaengine.NewEngine(gojaengine.WithLogger(engineLogger))
		if err != nil {
			return nil, err
		}
		return e, nil
	}, ".js", ".cjs")
	if err != nil {
		return nil, err
	}

	err = reg.Register(entities.EngineWazero, func() (ports.Engine, error) {
		e, err := wazeroengine.NewEngine(wazeroengine.WithLogger(engineLogger))
		if err != nil {
			return nil, err
		}
		return e, nil
	}, ".wasm")
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Create makes a measure for api and returns its handle. The engine is
// chosen from the bridge config and the measure's ScriptPath; the script
// itself is loaded on the first Reload.
func (p *Plugin) Create(ctx context.Context, api HostAPI) (Handle, error) {
	scriptPath, _ := api.ReadPath(entities.OptionScriptPath, entities.DefaultScriptPath)
	engine, err := p.registry.Resolve(p.config.bridge.Engine, scriptPath)
	if err != nil {
		return 0, err
	}
	mgr, err := p.registry.Manager(engine)
	if err != nil {
		return 0, err
	}

	opts := []host.MeasureOption{host.WithBridgeConfig(p.config.bridge)}
	if p.config.allocator != nil {
		opts = append(opts, host.WithAllocator(p.config.allocator))
	}
	if p.config.logger != nil {
		opts = append(opts, host.WithLogger(p.config.logger.With("measure", api.MeasureName())))
	}

	m, err := host.NewMeasure(ctx, mgr, api, opts...)
	if err != nil {
		return 0, fmt.Errorf("create measure %s: %w", api.MeasureName(), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	h := p.next
	p.measures[h] = m
	return h, nil
}

func (p *Plugin) lookup(h Handle) (*host.Measure, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.measures[h]
	return m, ok
}

// Reload loads the script on first use and calls its Reload. A max value
// set by the script is written to maxValue.
func (p *Plugin) Reload(ctx context.Context, h Handle, api HostAPI, maxValue *float64) {
	if m, ok := p.lookup(h); ok {
		m.Reload(ctx, api, maxValue)
	}
}

// Update returns the measure's numeric value.
func (p *Plugin) Update(ctx context.Context, h Handle) float64 {
	m, ok := p.lookup(h)
	if !ok {
		return 0
	}
	return m.Update(ctx)
}

// Stringify returns a NUL-terminated UTF-16 string owned by the measure,
// valid until the next Stringify or Destroy on h, or nil for no string.
func (p *Plugin) Stringify(ctx context.Context, h Handle) unsafe.Pointer {
	m, ok := p.lookup(h)
	if !ok {
		return nil
	}
	return m.Stringify(ctx).Ptr()
}

// StringifyText is Stringify decoded to a Go string.
func (p *Plugin) StringifyText(ctx context.Context, h Handle) (string, bool) {
	m, ok := p.lookup(h)
	if !ok {
		return "", false
	}
	w := m.Stringify(ctx)
	if w == nil {
		return "", false
	}
	return w.String(), true
}

// Command forwards args to the script's ExecuteBang.
func (p *Plugin) Command(ctx context.Context, h Handle, args string) {
	if m, ok := p.lookup(h); ok {
		m.Command(ctx, args)
	}
}

// Destroy finalizes the measure and invalidates h.
func (p *Plugin) Destroy(ctx context.Context, h Handle) error {
	p.mu.Lock()
	m, ok := p.measures[h]
	delete(p.measures, h)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("destroy %d: %w", h, ErrUnknownHandle)
	}
	return m.Destroy(ctx)
}

// Snapshot describes the measure behind h.
func (p *Plugin) Snapshot(h Handle) (Snapshot, bool) {
	m, ok := p.lookup(h)
	if !ok {
		return Snapshot{}, false
	}
	return m.Snapshot(), true
}

// Handles lists the live handles in creation order.
func (p *Plugin) Handles() []Handle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Handle, 0, len(p.measures))
	for h := range p.measures {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// Runtimes reports the state of every engine used so far.
func (p *Plugin) Runtimes() []entities.RuntimeState {
	var out []entities.RuntimeState
	for _, m := range p.registry.Managers() {
		out = append(out, m.State())
	}
	return out
}

// Close destroys every live measure and shuts all engines down.
func (p *Plugin) Close(ctx context.Context) error {
	var errs []error
	for _, h := range p.Handles() {
		if err := p.Destroy(ctx, h); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range p.registry.Managers() {
		if err := m.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stdErrors.Join(errs...)
}
