// Package watch implements the debounced filesystem watcher described in
// spec.md §4.2: a 20ms debounce window armed per event, and a 50ms grace
// period armed on the first event of an otherwise-idle period, coalescing
// bursts of filesystem events into deduplicated batches of absolute paths.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/bookpreview/internal/logfields"
)

const (
	// DebounceWindow is armed (reset) on every event within a burst.
	DebounceWindow = 20 * time.Millisecond
	// Grace is armed once, on the first event after an idle period, and
	// guarantees a batch flushes no later than Grace after that event
	// even if events keep arriving within DebounceWindow of each other.
	Grace = 50 * time.Millisecond
)

// Watcher coalesces raw fsnotify events into batches of absolute paths and
// delivers them on Batches. It watches the source directory and theme
// directory recursively, the configuration file non-recursively, and any
// extra-watch directories recursively.
type Watcher struct {
	fsw     *fsnotify.Watcher
	Batches chan []string

	mu        sync.Mutex
	pending   map[string]struct{}
	debounce  *time.Timer
	grace     *time.Timer
}

// Config describes what a Watcher instance should watch.
type Config struct {
	SourceDir       string
	ThemeDir        string // optional; absence is not fatal
	ConfigFile      string
	ExtraWatchDirs  []string
}

// New constructs and arms a Watcher per cfg. A failure to watch the
// source directory, configuration file, or any extra-watch directory is
// fatal (spec.md §4.2/§7 WatcherSetup); a missing theme directory is not.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		Batches: make(chan []string, 1),
		pending: make(map[string]struct{}),
	}

	if err := addRecursive(fsw, cfg.SourceDir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if cfg.ThemeDir != "" {
		if err := addRecursive(fsw, cfg.ThemeDir); err != nil {
			slog.Warn("theme directory not watched", logfields.Path(cfg.ThemeDir), logfields.Error(err))
		}
	}
	if cfg.ConfigFile != "" {
		if err := fsw.Add(filepath.Dir(cfg.ConfigFile)); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	for _, d := range cfg.ExtraWatchDirs {
		if err := addRecursive(fsw, d); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Run drives the watcher's event loop until ctx is cancelled or the
// underlying fsnotify watcher errors out unrecoverably. Event stream
// errors are logged and elided, per spec.md's failure semantics.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.Batches)
	defer func() { _ = w.fsw.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.record(ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher event stream error", logfields.Error(err))
		}
	}
}

func (w *Watcher) record(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(DebounceWindow, w.flush)

	if w.grace == nil {
		w.grace = time.AfterFunc(Grace, w.flush)
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := make([]string, 0, len(w.pending))
	for p := range w.pending {
		batch = append(batch, p)
	}
	w.pending = make(map[string]struct{})
	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}
	if w.grace != nil {
		w.grace.Stop()
		w.grace = nil
	}
	w.mu.Unlock()

	select {
	case w.Batches <- batch:
	default:
		// A previous batch hasn't been drained yet; hand this batch to a
		// goroutine that delivers it separately once there is room, rather
		// than dropping paths.
		go func() {
			w.Batches <- batch
		}()
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}
