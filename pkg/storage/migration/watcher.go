package migration

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/datastore/pkg/storage"
	"mercator-hq/datastore/pkg/storage/cache"
)

// DefaultDebounceInterval is the quiet period after the last write to
// storage-new.yml before a live migration starts.
const DefaultDebounceInterval = 2 * time.Second

// Watcher starts a live migration when storage-new.yml appears next to
// the active storage file. The migration runs through cache.Replace, so
// flushing pauses while data is copied and callers keep reading and
// writing the cache.
type Watcher struct {
	coordinator *Coordinator
	cache       *cache.Cache
	watcher     *fsnotify.Watcher
	logger      *slog.Logger
	debounce    *Debouncer
	interval    time.Duration

	// OnMigrate, when set, is called after every live migration attempt.
	OnMigrate func(res *Result, err error)

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher. A non-positive debounce uses
// DefaultDebounceInterval.
func NewWatcher(coord *Coordinator, c *cache.Cache, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		coordinator: coord,
		cache:       c,
		watcher:     fsw,
		logger:      logger.With("component", "storage.migration.watcher"),
		debounce:    NewDebouncer(debounce),
		interval:    debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	files := w.coordinator.Files()
	if err := w.watcher.Add(files.Dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", files.Dir, err)
	}

	w.logger.Info("watching for new storage file",
		"path", files.New,
		"debounce_ms", w.interval.Milliseconds(),
	)

	// a file dropped in before the watch started
	if w.coordinator.Pending() {
		w.debounce.Trigger(func() { w.migrate(ctx) })
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("storage file watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("storage file watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcessEvent(event) {
				continue
			}

			w.logger.Debug("new storage file event", "op", event.Op.String())
			w.debounce.Trigger(func() { w.migrate(ctx) })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("storage file watcher error", "error", err)
		}
	}
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != filepath.Base(w.coordinator.Files().New) {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write) != 0
}

func (w *Watcher) migrate(ctx context.Context) {
	if ctx.Err() != nil || !w.coordinator.Pending() {
		return
	}

	var (
		res        *Result
		cutoverErr error
	)
	err := w.cache.Replace(ctx, func(ctx context.Context, current *storage.Manager) (*storage.Manager, error) {
		next, r, err := w.coordinator.Migrate(ctx, current)
		res = r
		if next != current {
			// data was copied and current closed, switch even when the
			// file rotation failed
			cutoverErr = err
			return next, nil
		}
		return nil, err
	})

	if err != nil {
		w.logger.Error("live migration failed, keeping current storage", "error", err)
	} else {
		err = cutoverErr
	}

	if w.OnMigrate != nil {
		w.OnMigrate(res, err)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Debouncer collects rapid events and runs the last callback once the
// events have stopped for the configured interval.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Trigger (re)starts the quiet period with callback as the pending call.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.stopCh:
		return
	default:
	}

	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, func() {
		select {
		case <-d.stopCh:
			return
		default:
			d.mu.Lock()
			cb := d.callback
			d.callback = nil
			d.mu.Unlock()

			if cb != nil {
				cb()
			}
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
