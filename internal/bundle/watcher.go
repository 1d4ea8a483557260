// ABOUTME: Directory watcher that reloads character bundles when their files change
// ABOUTME: Debounces bursts of fsnotify events per file before invoking the handler
package bundle

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must be quiet before it is reloaded
const DefaultDebounce = 300 * time.Millisecond

const tickInterval = 50 * time.Millisecond

// Handler receives each reloaded bundle, or the error loading it
type Handler func(loaded Loaded)

// Watcher reloads bundles from one directory
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a watcher for dir; a non-positive debounce uses the default
func NewWatcher(dir string, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{dir: dir, debounce: debounce, logger: logger}
}

// Run watches until ctx is cancelled, calling handle for every created or written
// bundle file once its events settle
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching for bundles", zap.String("dir", w.dir))

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if _, err := FormatOf(event.Name); err != nil {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case now := <-ticker.C:
			for path, changed := range pending {
				if now.Sub(changed) < w.debounce {
					continue
				}
				delete(pending, path)
				b, err := Load(path)
				if err != nil {
					w.logger.Warn("failed to reload bundle", zap.String("path", path), zap.Error(err))
				}
				handle(Loaded{Path: path, Bundle: b, Err: err})
			}
		}
	}
}
