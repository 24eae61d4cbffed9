// Package cache provides the write-coalescing layer between callers and a
// storage backend.
//
// Writes are visible to reads as soon as they are made and reach the
// backend when the cache is flushed. Several writes to the same cell
// between two flushes cost one backend write, carrying the last value.
// A Scheduler flushes on the interval from storage.yml; the owner stops
// it, flushes once more and closes the backend on shutdown:
//
//	sched := cache.NewScheduler(c, cfg.Cache.Interval, logger)
//	sched.Start(ctx)
//	...
//	sched.Stop()
//	c.Flush(ctx)
//	c.Close()
package cache
