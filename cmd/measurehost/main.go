// Command measurehost is a small polling host for scriptmeasure. It loads a
// skin file, creates its measures and prints their values every update
// interval, much like a desktop widget host would.
package main

import (
	"context"
	stdErrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reglet-dev/scriptmeasure/application/schema"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "measurehost: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	skin     string
	logLevel string
	polls    int
	schema   bool
	watch    bool
	repl     bool
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("measurehost", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.skin, "skin", "", "Path to the skin file (.yaml, .yml or .toml)")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.IntVar(&f.polls, "polls", 0, "Stop after this many polls (0 runs until interrupted)")
	fs.BoolVar(&f.schema, "schema", false, "Print the skin JSON schema and exit")
	fs.BoolVar(&f.watch, "watch", false, "Reload the skin and scripts when they change")
	fs.BoolVar(&f.repl, "repl", false, "Read commands from the terminal")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if !f.schema && f.skin == "" {
		return f, fmt.Errorf("-skin is required")
	}
	return f, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if f.schema {
		return printSchema(stdout)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return fmt.Errorf("invalid -log-level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := NewRunner(ctx, f.skin, WithOutput(stdout), WithRunnerLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(context.Background()); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}()
	return loop(ctx, r, f, stdout, logger)
}

func loop(ctx context.Context, r *Runner, f flags, stdout io.Writer, logger *slog.Logger) error {
	var changes <-chan change
	if f.watch {
		c, err := startWatcher(ctx, r.Path(), r.ScriptPaths(), logger)
		if err != nil {
			return err
		}
		changes = c
	}
	var lines <-chan string
	if f.repl {
		l, err := startREPL(ctx)
		if err != nil {
			return err
		}
		lines = l
	}

	ticker := time.NewTicker(r.Interval())
	defer ticker.Stop()

	polls := 0
	poll := func() bool {
		r.Poll(ctx)
		polls++
		return f.polls > 0 && polls >= f.polls
	}
	if poll() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if poll() {
				return nil
			}

		case c := <-changes:
			if c.skin {
				if err := r.ReloadSkin(ctx); err != nil {
					logger.Warn("skin reload failed", "error", err)
				}
				ticker.Reset(r.Interval())
			}
			for _, s := range c.scripts {
				if err := r.Recreate(ctx, s); err != nil {
					logger.Warn("script reload failed", "script", s, "error", err)
				}
			}

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := handleLine(ctx, r, stdout, line)
			if stdErrors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				_, _ = fmt.Fprintln(stdout, "error:", err)
			}
		}
	}
}

func printSchema(w io.Writer) error {
	s, err := schema.SkinSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", s)
	return err
}
