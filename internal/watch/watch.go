// Package watch re-runs a callback whenever the documents of a project
// directory settle after a change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config configures a Watcher.
type Config struct {
	// Dir is the project directory to watch (not recursive).
	Dir string
	// Debounce is how long to wait for more changes before firing.
	Debounce time.Duration
	// Extensions lists the file extensions that trigger a run, lower-case
	// with the leading dot. Empty means every file.
	Extensions []string
	Logger     *slog.Logger
}

// Handler receives the sorted, de-duplicated base names that changed.
type Handler func(ctx context.Context, changed []string)

// Watcher watches one directory and debounces its events.
type Watcher struct {
	config  Config
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	exts    map[string]bool
}

// New creates a Watcher for cfg.Dir.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", cfg.Dir, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Watcher{config: cfg, watcher: fsw, logger: logger, exts: exts}, nil
}

// Run blocks until ctx is done, calling fn once per settled burst of
// changes. fn runs on the watcher goroutine; events arriving meanwhile are
// collected into the next burst.
func (w *Watcher) Run(ctx context.Context, fn Handler) error {
	defer w.watcher.Close()

	w.logger.Info("File watcher started", "dir", w.config.Dir, "debounce", w.config.Debounce)

	timer := time.NewTimer(w.config.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("File event", "path", event.Name, "op", event.Op.String())
			pending[filepath.Base(event.Name)] = true
			timer.Reset(w.config.Debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			sort.Strings(changed)
			clear(pending)
			fn(ctx, changed)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	// Editor swap and backup files.
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(base))]
}
