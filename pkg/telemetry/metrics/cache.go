package metrics

import (
	"time"

	"mercator-hq/datastore/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks the write-coalescing cache.
//
// Metrics:
//   - datastore_storage_cache_hits_total: reads served from memory, by table
//   - datastore_storage_cache_misses_total: reads that went to the backend, by table
//   - datastore_storage_cache_dirty_cells: values waiting for the next flush
//   - datastore_storage_cache_flush_duration_seconds: flush latency
//   - datastore_storage_cache_flushed_records_total: records written by flushes, by result
type CacheMetrics struct {
	hitsTotal      *prometheus.CounterVec
	missesTotal    *prometheus.CounterVec
	dirtyCells     prometheus.Gauge
	flushDuration  prometheus.Histogram
	flushedRecords *prometheus.CounterVec
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"table"},
		),

		missesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"table"},
		),

		dirtyCells: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_dirty_cells",
				Help:      "Number of cached values not yet written to the backend",
			},
		),

		flushDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_flush_duration_seconds",
				Help:      "Cache flush latency in seconds",
				Buckets:   cfg.DurationBuckets,
			},
		),

		flushedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_flushed_records_total",
				Help:      "Total number of records written by cache flushes",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		cm.hitsTotal,
		cm.missesTotal,
		cm.dirtyCells,
		cm.flushDuration,
		cm.flushedRecords,
	)

	return cm
}

// RecordHit records a cache hit.
func (cm *CacheMetrics) RecordHit(table string) {
	cm.hitsTotal.WithLabelValues(table).Inc()
}

// RecordMiss records a cache miss.
func (cm *CacheMetrics) RecordMiss(table string) {
	cm.missesTotal.WithLabelValues(table).Inc()
}

// SetDirty sets the dirty cell gauge.
func (cm *CacheMetrics) SetDirty(n int) {
	cm.dirtyCells.Set(float64(n))
}

// RecordFlush records one flush and its per-record outcome.
func (cm *CacheMetrics) RecordFlush(duration time.Duration, flushed, failed int) {
	cm.flushDuration.Observe(duration.Seconds())
	cm.flushedRecords.WithLabelValues("success").Add(float64(flushed))
	cm.flushedRecords.WithLabelValues("error").Add(float64(failed))
}
