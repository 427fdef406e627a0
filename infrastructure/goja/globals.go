package goja

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

// searchRoot is the global module folder handed to the require registry.
// Paths below it are resolved against the context search path in order.
const searchRoot = "/$searchpath"

// installGlobals enables require and console, then defines print,
// __searchPath and the LOG_* constants on the global object.
func (c *Context) installGlobals() error {
	vm := c.vm
	g := vm.GlobalObject()

	reg := require.NewRegistry(
		require.WithLoader(c.loadModule),
		require.WithGlobalFolders(searchRoot),
	)
	reg.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(&slogPrinter{ctx: c}))
	reg.Enable(vm)
	console.Enable(vm)

	if err := vm.Set("print", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		c.emit(slog.LevelInfo, strings.Join(parts, " "))
		return goja.Undefined()
	}); err != nil {
		return err
	}

	getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		items := make([]any, len(c.paths))
		for i, p := range c.paths {
			items[i] = p
		}
		return vm.NewArray(items...)
	})
	if err := g.DefineAccessorProperty("__searchPath", getter, nil, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		return err
	}

	return setLogLevels(vm, g)
}

func (c *Context) emit(level slog.Level, msg string) {
	c.engine.config.logger.Log(context.Background(), level, msg, "engine", EngineName, "context", c.id)
}

// loadModule is the require source loader. Absolute paths are read as is;
// relative paths and paths under searchRoot are tried against each search
// directory in order.
func (c *Context) loadModule(name string) ([]byte, error) {
	rel, global := strings.CutPrefix(name, searchRoot+"/")
	if !global && filepath.IsAbs(filepath.FromSlash(name)) {
		return c.readModule(filepath.FromSlash(name))
	}
	if !global {
		rel = name
	}
	for _, dir := range c.paths {
		src, err := c.readModule(filepath.Join(dir, filepath.FromSlash(rel)))
		if stdErrors.Is(err, require.ModuleFileDoesNotExistError) {
			continue
		}
		return src, err
	}
	return nil, require.ModuleFileDoesNotExistError
}

func (c *Context) readModule(path string) ([]byte, error) {
	src, err := c.engine.config.readFile(path)
	switch {
	case err == nil:
		return src, nil
	case stdErrors.Is(err, fs.ErrNotExist), stdErrors.Is(err, syscall.EISDIR):
		return nil, require.ModuleFileDoesNotExistError
	default:
		return nil, fmt.Errorf("read module %s: %w", path, err)
	}
}

// slogPrinter sends console output to the engine logger.
type slogPrinter struct {
	ctx *Context
}

func (p *slogPrinter) Log(s string)   { p.ctx.emit(slog.LevelInfo, s) }
func (p *slogPrinter) Info(s string)  { p.ctx.emit(slog.LevelInfo, s) }
func (p *slogPrinter) Debug(s string) { p.ctx.emit(slog.LevelDebug, s) }
func (p *slogPrinter) Warn(s string)  { p.ctx.emit(slog.LevelWarn, s) }
func (p *slogPrinter) Error(s string) { p.ctx.emit(slog.LevelError, s) }
