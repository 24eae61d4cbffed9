package metrics

import (
	"sync"
	"time"

	"mercator-hq/datastore/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every Prometheus metric of the data store. All recorder
// methods are safe to call on a nil *Collector, so components can be built
// without metrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	storageMetrics   *StorageMetrics
	cacheMetrics     *CacheMetrics
	migrationMetrics *MigrationMetrics

	// Table names are caller-defined, so cap the label values.
	tableLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil a fresh
// registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}

	return &Collector{
		config:           cfg,
		registry:         registry,
		storageMetrics:   NewStorageMetrics(cfg, registry),
		cacheMetrics:     NewCacheMetrics(cfg, registry),
		migrationMetrics: NewMigrationMetrics(cfg, registry),
		tableLimiter:     NewCardinalityLimiter(1000),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordOperation records one backend operation.
//
// Parameters:
//   - method: storage method ("sqlite", "mysql", ...)
//   - operation: dialect operation ("get_value", "set_values", ...)
//   - result: "success" or "error"
//   - duration: time spent in the backend
func (c *Collector) RecordOperation(method, operation, result string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.storageMetrics.RecordOperation(method, operation, result, duration)
}

// RecordCacheHit records a read served from the cache.
func (c *Collector) RecordCacheHit(table string) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.RecordHit(c.tableLabel(table))
}

// RecordCacheMiss records a read that went through to the backend.
func (c *Collector) RecordCacheMiss(table string) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.RecordMiss(c.tableLabel(table))
}

// SetDirtyCells sets the number of cached values awaiting a flush.
func (c *Collector) SetDirtyCells(n int) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.SetDirty(n)
}

// RecordFlush records one cache flush.
func (c *Collector) RecordFlush(duration time.Duration, flushed, failed int) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.RecordFlush(duration, flushed, failed)
}

// RecordMigration records one migration run.
//
// Parameters:
//   - result: "success", "skipped" or "failed"
//   - migrated, failed: record counts of the load phase
func (c *Collector) RecordMigration(result string, duration time.Duration, migrated, failed int) {
	if !c.enabled() {
		return
	}
	c.migrationMetrics.RecordRun(result, duration, migrated, failed)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) tableLabel(table string) string {
	if !c.tableLimiter.Allow(table) {
		return "other"
	}
	return table
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether a label value may be used. Values already seen are
// always allowed; new ones only until the limit is reached.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
