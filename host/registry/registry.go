// Package registry maps engine names and script extensions to scripting
// engines, and owns the one Manager per engine that all measures share.
// Every Manager of a registry serializes on the same execution lock.
package registry

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
	"github.com/reglet-dev/scriptmeasure/host"
)

// Factory creates an engine. It is called at most once per registry.
type Factory func() (ports.Engine, error)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	managerOpts []host.ManagerOption
	fallback    string
	strictMode  bool // Fail on duplicate registrations
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		fallback:   entities.EngineGoja,
		strictMode: true,
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (fail on duplicates).
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// WithManagerOptions applies opts to every Manager the registry creates.
func WithManagerOptions(opts ...host.ManagerOption) RegistryOption {
	return func(c *registryConfig) {
		c.managerOpts = append(c.managerOpts, opts...)
	}
}

// WithFallback sets the engine "auto" picks when no extension matches.
func WithFallback(name string) RegistryOption {
	return func(c *registryConfig) {
		c.fallback = name
	}
}

type entry struct {
	factory Factory
	exts    []string
}

// Registry resolves engines by name or script extension.
type Registry struct {
	config   registryConfig
	entries  sync.Map // map[string]entry
	managers sync.Map // map[string]*host.Manager
	mu       sync.Mutex
	// exec is the execution lock shared by every Manager of the registry.
	exec sync.Mutex
}

// NewRegistry creates a new Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{config: cfg}
}

// Register adds an engine factory. exts lists the script extensions (with
// the leading dot) that "auto" resolves to this engine.
func (r *Registry) Register(name string, factory Factory, exts ...string) error {
	if name == "" || name == entities.EngineAuto {
		return fmt.Errorf("invalid engine name %q", name)
	}
	if factory == nil {
		return fmt.Errorf("engine %q: nil factory", name)
	}
	if r.config.strictMode {
		if _, exists := r.entries.Load(name); exists {
			return fmt.Errorf("engine %q already registered", name)
		}
	}
	lowered := make([]string, len(exts))
	for i, e := range exts {
		lowered[i] = strings.ToLower(e)
	}
	r.entries.Store(name, entry{factory: factory, exts: lowered})
	return nil
}

// Resolve returns the engine name for a configured name and script path.
// "auto" (or empty) picks by extension, then the fallback.
func (r *Registry) Resolve(name, scriptPath string) (string, error) {
	if name != "" && name != entities.EngineAuto {
		if _, ok := r.entries.Load(name); !ok {
			return "", fmt.Errorf("unknown engine %q", name)
		}
		return name, nil
	}
	ext := strings.ToLower(filepath.Ext(scriptPath))
	resolved := ""
	r.entries.Range(func(k, v any) bool {
		if ext != "" && slices.Contains(v.(entry).exts, ext) {
			resolved = k.(string)
			return false
		}
		return true
	})
	if resolved != "" {
		return resolved, nil
	}
	if _, ok := r.entries.Load(r.config.fallback); !ok {
		return "", fmt.Errorf("no engine for %q and fallback %q is not registered", scriptPath, r.config.fallback)
	}
	return r.config.fallback, nil
}

// Manager returns the shared Manager for an engine, creating the engine on
// first use.
func (r *Registry) Manager(name string) (*host.Manager, error) {
	if m, ok := r.managers.Load(name); ok {
		return m.(*host.Manager), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers.Load(name); ok {
		return m.(*host.Manager), nil
	}

	v, ok := r.entries.Load(name)
	if !ok {
		return nil, fmt.Errorf("unknown engine %q", name)
	}
	engine, err := v.(entry).factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s engine: %w", name, err)
	}
	opts := append(slices.Clone(r.config.managerOpts), host.WithExecLock(&r.exec))
	m := host.NewManager(engine, opts...)
	r.managers.Store(name, m)
	return m, nil
}

// Managers returns every Manager created so far, sorted by engine name.
func (r *Registry) Managers() []*host.Manager {
	var names []string
	r.managers.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	slices.Sort(names)
	out := make([]*host.Manager, 0, len(names))
	for _, n := range names {
		m, _ := r.managers.Load(n)
		out = append(out, m.(*host.Manager))
	}
	return out
}

// List returns all registered engine names, sorted.
func (r *Registry) List() []string {
	var keys []string
	r.entries.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	slices.Sort(keys)
	return keys
}
