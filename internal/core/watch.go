package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long a content file must stay quiet before a
// reload is triggered.
const DefaultWatchDebounce = 250 * time.Millisecond

// WatchOption configures a ContentWatcher.
type WatchOption func(*ContentWatcher)

// WithWatchDebounce overrides DefaultWatchDebounce.
func WithWatchDebounce(d time.Duration) WatchOption {
	return func(w *ContentWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(logger Logger) WatchOption {
	return func(w *ContentWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithReloadHook is called after every watcher-triggered reload.
func WithReloadHook(fn func(*Dataset, error)) WatchOption {
	return func(w *ContentWatcher) {
		w.onReload = fn
	}
}

// ContentWatcher reloads a Service whenever one of its content files changes.
// Parent directories are watched so editors that replace a file by rename are
// noticed too.
type ContentWatcher struct {
	service  *Service
	paths    []string
	debounce time.Duration
	logger   Logger
	onReload func(*Dataset, error)
}

// NewContentWatcher returns a watcher for the files at paths.
func NewContentWatcher(service *Service, paths []string, opts ...WatchOption) *ContentWatcher {
	w := &ContentWatcher{
		service:  service,
		paths:    paths,
		debounce: DefaultWatchDebounce,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run watches until ctx is cancelled. Failed reloads are logged and leave the
// served dataset in place.
func (w *ContentWatcher) Run(ctx context.Context) error {
	if len(w.paths) == 0 {
		return errors.New("watch: no content files")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch content: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	files := make(map[string]struct{}, len(w.paths))
	dirs := make(map[string]struct{}, len(w.paths))
	for _, p := range w.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		files[abs] = struct{}{}
		w.logger.Info("watching content file", "path", abs)
		dir := filepath.Dir(abs)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		dirs[dir] = struct{}{}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, ok := files[filepath.Clean(ev.Name)]; !ok || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("content watcher error", "error", err)
		case <-fire:
			fire = nil
			ds, err := w.service.Reload(ctx)
			if err != nil {
				w.logger.Warn("content reload after change failed", "source", w.service.Source().Name(), "error", err)
			}
			if w.onReload != nil {
				w.onReload(ds, err)
			}
		}
	}
}
