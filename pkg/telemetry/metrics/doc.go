// Package metrics exposes Prometheus metrics for the data store.
//
// A single Collector registers three groups on its own registry:
//
//   - storage: backend operation counts and latency per method
//   - cache: hits, misses, dirty values and flush outcomes
//   - migration: runs and records moved between backends
//
// The storage, cache and migration packages depend only on small recorder
// interfaces; *Collector satisfies all of them and tolerates being nil.
package metrics
