package host

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/errors"
	"github.com/reglet-dev/scriptmeasure/domain/ports"
)

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	readFile   func(name string) ([]byte, error)
	logger     *slog.Logger
	scriptRoot string
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		readFile: os.ReadFile,
		logger:   slog.Default(),
	}
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithScriptRoot resolves relative script paths against dir.
func WithScriptRoot(dir string) LoaderOption {
	return func(c *loaderConfig) {
		c.scriptRoot = dir
	}
}

// WithReadFile replaces the function used to read script sources.
func WithReadFile(fn func(name string) ([]byte, error)) LoaderOption {
	return func(c *loaderConfig) {
		if fn != nil {
			c.readFile = fn
		}
	}
}

// WithLoaderLogger sets the logger for load diagnostics.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(c *loaderConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Loader builds script objects inside the current context of a session.
type Loader struct {
	config loaderConfig
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{config: cfg}
}

// LoadResult is the outcome of one load: exactly one of Object and Err is set.
type LoadResult struct {
	Object ports.ScriptObject
	Err    *errors.LoadError
}

// OK reports whether the load produced an object.
func (r LoadResult) OK() bool {
	return r.Err == nil && r.Object != nil
}

// Resolve returns scriptPath made absolute against the script root.
func (l *Loader) Resolve(scriptPath string) string {
	if scriptPath == "" || filepath.IsAbs(scriptPath) || l.config.scriptRoot == "" {
		return scriptPath
	}
	return filepath.Join(l.config.scriptRoot, scriptPath)
}

// Load runs the script at scriptPath in the session's current context and
// instantiates className with no arguments. The script's directory is
// added to the context search path the first time it is seen.
func (l *Loader) Load(ctx context.Context, s *Session, scriptPath, className string) LoadResult {
	path := l.Resolve(scriptPath)
	fail := func(kind errors.LoadErrorKind, err error) LoadResult {
		le := errors.NewLoadError(kind, path, className, err)
		l.config.logger.DebugContext(ctx, "script load failed", "kind", kind.Code(), "error", le)
		return LoadResult{Err: le}
	}

	sc := s.Context()
	if sc == nil {
		return fail(errors.ScriptExecutionError, errors.ErrRuntimeNotStarted)
	}

	opts := entities.MeasureOptions{ScriptPath: path, ClassName: className}
	dir, base, ext := opts.ScriptParts()
	if sc.AddSearchPath(dir) {
		l.config.logger.DebugContext(ctx, "search path extended", "dir", dir)
	}

	src, err := l.config.readFile(path)
	if err != nil {
		return fail(errors.ScriptOpenError, err)
	}

	ns, err := sc.RunSource(ctx, base+ext, src)
	if err != nil {
		return fail(errors.ScriptExecutionError, err)
	}

	sym, ok := ns.Lookup(ctx, className)
	if !ok {
		return fail(errors.ClassNotFound, errors.ErrSymbolNotFound)
	}

	obj, err := sym.Instantiate(ctx)
	if err != nil {
		return fail(errors.InstantiationError, err)
	}
	return LoadResult{Object: obj}
}
