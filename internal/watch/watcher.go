// Package watch triggers re-sync when a local source directory
// changes. Rapid event bursts are debounced so one editor save or
// checkout does not fire a sync per file.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow coalesces event bursts before firing.
const DefaultDebounceWindow = 500 * time.Millisecond

// Watcher observes a directory tree and invokes a callback after the
// event stream has been quiet for one debounce window.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	window   time.Duration
	onChange func(ctx context.Context)
	logger   *slog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// New creates a watcher over root and all its subdirectories.
// window <= 0 selects the default.
func New(root string, window time.Duration, onChange func(ctx context.Context), logger *slog.Logger) (*Watcher, error) {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		root:     root,
		window:   window,
		onChange: onChange,
		logger:   logger,
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers root and every subdirectory with the watcher.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Run consumes events until the context is cancelled or the watcher is
// closed. It blocks; run it in its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	// Chmod-only events carry no content change.
	if event.Op == fsnotify.Chmod {
		return
	}

	// New directories must be registered for recursive coverage.
	if event.Op.Has(fsnotify.Create) {
		if err := w.addTree(event.Name); err == nil {
			w.logger.Debug("watch_directory_added", slog.String("path", event.Name))
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, func() {
		w.logger.Debug("watch_change_detected", slog.String("root", w.root))
		w.onChange(ctx)
	})
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	return w.fsw.Close()
}
