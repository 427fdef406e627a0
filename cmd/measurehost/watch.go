package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 500 * time.Millisecond

// change is a debounced batch of file events.
type change struct {
	scripts []string
	skin    bool
}

// watcher reports edits to the skin file and the scripts it uses.
type watcher struct {
	fs      *fsnotify.Watcher
	logger  *slog.Logger
	changes chan change
	pending map[string]struct{}
	timer   *time.Timer
	skin    string
	mu      sync.Mutex
}

// startWatcher watches the directories of the skin and every script. The
// returned channel receives one change per quiet period.
func startWatcher(ctx context.Context, skin string, scripts []string, logger *slog.Logger) (<-chan change, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirs := map[string]struct{}{filepath.Dir(skin): {}}
	for _, s := range scripts {
		if s != "" {
			dirs[filepath.Dir(s)] = struct{}{}
		}
	}
	for d := range dirs {
		if err := fs.Add(d); err != nil {
			_ = fs.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", d, err)
		}
	}

	w := &watcher{
		fs:      fs,
		logger:  logger,
		changes: make(chan change, 1),
		pending: make(map[string]struct{}),
		skin:    filepath.Clean(skin),
	}
	go w.loop(ctx)
	return w.changes, nil
}

func (w *watcher) loop(ctx context.Context) {
	defer func() { _ = w.fs.Close() }()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.note(ctx, filepath.Clean(event.Name))

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *watcher) note(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, func() { w.flush(ctx) })
}

func (w *watcher) flush(ctx context.Context) {
	w.mu.Lock()
	var c change
	for p := range w.pending {
		if p == w.skin {
			c.skin = true
			continue
		}
		c.scripts = append(c.scripts, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(c.scripts)
	select {
	case w.changes <- c:
	case <-ctx.Done():
	}
}
