package config

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/promptslot/internal/clock"
	"github.com/dshills/promptslot/internal/logging"
)

// DefaultWatchDebounce coalesces the burst of events editors produce when
// saving a file.
const DefaultWatchDebounce = 100 * time.Millisecond

// ReloadFunc receives a reloaded configuration, or the error that prevented
// loading it.
type ReloadFunc func(cfg *Config, err error)

// Watcher reloads a configuration file when it changes.
type Watcher struct {
	path     string
	loader   *Loader
	logger   *logging.Logger
	onReload ReloadFunc

	fsw      *fsnotify.Watcher
	debounce *clock.Debouncer
	done     chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	reloads   atomic.Uint64
}

type watchOptions struct {
	clock    clock.Clock
	debounce time.Duration
	logger   *logging.Logger
	loader   *Loader
}

// WatchOption configures a Watcher.
type WatchOption func(*watchOptions)

// WithWatchClock sets the clock driving the debounce timer.
func WithWatchClock(c clock.Clock) WatchOption {
	return func(o *watchOptions) { o.clock = c }
}

// WithWatchDebounce sets the debounce duration for rapid changes.
func WithWatchDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(l *logging.Logger) WatchOption {
	return func(o *watchOptions) { o.logger = l }
}

// WithWatchLoader sets the loader used for reloads.
func WithWatchLoader(l *Loader) WatchOption {
	return func(o *watchOptions) { o.loader = l }
}

// NewWatcher watches the file at path and calls onReload after it settles.
// The parent directory is watched so files replaced by rename are seen.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatchOption) (*Watcher, error) {
	o := watchOptions{debounce: DefaultWatchDebounce}
	for _, opt := range opts {
		opt(&o)
	}
	if o.loader == nil {
		o.loader = NewLoader()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		loader:   o.loader,
		logger:   logging.OrNop(o.logger).WithComponent("config").With("path", abs),
		onReload: onReload,
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	w.debounce = clock.NewDebouncer(clock.OrReal(o.clock), o.debounce, w.reload)

	go w.loop()
	return w, nil
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string { return w.path }

// Reloads returns the number of reloads delivered so far.
func (w *Watcher) Reloads() uint64 { return w.reloads.Load() }

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	w.logger.Debug("config file changed", "op", ev.Op.String())
	w.debounce.Call()
}

func (w *Watcher) reload() {
	if w.closed.Load() {
		return
	}
	cfg, err := w.loader.Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", "error", err)
	} else {
		w.logger.Info("config reloaded")
	}
	w.reloads.Add(1)
	if w.onReload != nil {
		w.onReload(cfg, err)
	}
}

// Close stops watching. Pending reloads are dropped.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		w.debounce.Cancel()
		w.closeErr = w.fsw.Close()
		<-w.done
	})
	return w.closeErr
}
