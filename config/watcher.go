package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/lifemesh/logging"
)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce collapses bursts of filesystem events into one reload.
	Debounce time.Duration
	Logger   logging.Logger
}

// Watcher re-runs a preparation function when any watched file changes and
// swaps the result into a Store. A failing reload is logged and the
// previous configuration stays active.
type Watcher struct {
	store   *Store
	reload  func() (*Prepared, error)
	paths   map[string]struct{}
	watcher *fsnotify.Watcher
	opts    WatcherOptions

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the given files. Directories containing
// the files are watched so that editors replacing files are observed.
func NewWatcher(store *Store, reload func() (*Prepared, error), paths []string, optFns ...func(o *WatcherOptions)) (*Watcher, error) {
	opts := WatcherOptions{
		Debounce: 200 * time.Millisecond,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		store:   store,
		reload:  reload,
		paths:   make(map[string]struct{}, len(paths)),
		watcher: fw,
		opts:    opts,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	dirs := map[string]struct{}{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fw.Close()
			return nil, err
		}
		w.paths[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Start begins watching in a background goroutine. It is a no-op if the
// watcher is already running.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop stops the watcher and waits for the loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

// Reload runs the preparation function once and swaps the result in.
func (w *Watcher) Reload() error {
	p, err := w.reload()
	if err != nil {
		w.opts.Logger.Warn("config reload failed; keeping previous configuration", "error", err)
		return err
	}
	w.store.Swap(p)
	w.opts.Logger.Info("config reloaded")
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

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
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Error("config watcher error", "error", err)
		case <-fire:
			fire = nil
			_ = w.Reload()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	_, ok := w.paths[abs]
	return ok
}
