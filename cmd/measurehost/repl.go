package main

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

const replHelp = `commands:
  poll                     update every measure now
  bang MEASURE ARGS        send ARGS to the measure's ExecuteBang
  run [!Bang ...]          queue host bangs as if a script issued them
  set NAME VALUE           set a skin variable
  get NAME                 print a skin variable
  show                     list measures and engine state
  reload                   re-read the skin file
  help                     this text
  quit                     stop the host`

// errQuit ends the main loop.
var errQuit = stdErrors.New("quit")

// startREPL reads lines on a goroutine. The channel closes on EOF.
func startREPL(ctx context.Context) (<-chan string, error) {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".measurehost_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "measure> ",
		HistoryFile:     historyFile,
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start readline: %w", err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		defer func() { _ = rl.Close() }()
		for {
			line, err := rl.Readline()
			if stdErrors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					_, _ = fmt.Fprintln(rl.Stdout(), "use 'quit' to exit")
				}
				continue
			}
			if stdErrors.Is(err, io.EOF) || err != nil {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines, nil
}

// handleLine runs one REPL command against r.
func handleLine(ctx context.Context, r *Runner, w io.Writer, line string) error {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(cmd) {
	case "poll":
		r.Poll(ctx)
	case "bang":
		measure, args, _ := strings.Cut(rest, " ")
		if measure == "" {
			return fmt.Errorf("usage: bang MEASURE ARGS")
		}
		return r.Command(ctx, measure, strings.TrimSpace(args))
	case "run":
		if rest == "" {
			return fmt.Errorf("usage: run [!Bang ...]")
		}
		r.queue.push("repl", rest)
		r.runBangs(ctx)
	case "set":
		name, value, ok := strings.Cut(rest, " ")
		if !ok || name == "" {
			return fmt.Errorf("usage: set NAME VALUE")
		}
		r.SetVariable(name, strings.TrimSpace(value))
	case "get":
		v, ok := r.Variable(rest)
		if !ok {
			return fmt.Errorf("variable %q is not set", rest)
		}
		_, _ = fmt.Fprintln(w, v)
	case "show":
		for _, s := range r.Snapshots() {
			_, _ = fmt.Fprintf(w, "%-16s %-12s value=%g max=%g", s.Name, s.State, s.Value, s.MaxValue)
			if s.LoadError != nil {
				_, _ = fmt.Fprintf(w, " error=%q", s.LoadError.Message)
			}
			_, _ = fmt.Fprintln(w)
		}
		for _, rt := range r.plugin.Runtimes() {
			_, _ = fmt.Fprintf(w, "engine %-7s initialized=%t shared=%t live=%d\n",
				rt.Engine, rt.Initialized, rt.Shared, rt.LiveInstances)
		}
	case "reload":
		return r.ReloadSkin(ctx)
	case "help", "?":
		_, _ = fmt.Fprintln(w, replHelp)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}
