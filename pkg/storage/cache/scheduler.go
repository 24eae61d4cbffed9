package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler flushes a Cache on a fixed interval. A flush that is still
// running when the next one is due causes that run to be skipped.
type Scheduler struct {
	cache    *Cache
	interval time.Duration
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
	entry    cron.EntryID

	// stop is closed by Stop; watching is closed when the goroutine
	// watching the Start context exits.
	stop     chan struct{}
	watching chan struct{}
}

// NewScheduler creates a scheduler for c. Intervals are rounded to whole
// seconds with a minimum of one second.
func NewScheduler(c *Cache, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage.cache.scheduler")

	cl := cronLogger{logger: logger}
	return &Scheduler{
		cache:    c,
		interval: interval,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Start schedules the flush job. When ctx is cancelled the scheduler
// stops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.interval <= 0 {
		return fmt.Errorf("invalid flush interval %s", s.interval)
	}

	s.entry = s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.runFlush(ctx)
	}))
	s.cron.Start()
	s.running = true

	s.logger.Info("cache flush scheduler started", "interval", s.interval)

	s.stop = make(chan struct{})
	s.watching = make(chan struct{})
	go func(stop, watching chan struct{}) {
		defer close(watching)
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stop:
		}
	}(s.stop, s.watching)

	return nil
}

func (s *Scheduler) runFlush(ctx context.Context) {
	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Error("scheduled cache flush failed", "error", err)
	}
}

// Stop stops the scheduler and waits for a running flush to complete.
// The caller is expected to run a final Flush afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.cron.Remove(s.entry)
		close(s.stop)
		s.running = false
		s.logger.Info("cache flush scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled flush time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
