package metrics

import (
	"time"

	"mercator-hq/datastore/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// MigrationMetrics tracks backend migrations.
//
// Metrics:
//   - datastore_storage_migrations_total: migration runs by result
//   - datastore_storage_migration_records_total: records loaded into the target, by result
//   - datastore_storage_migration_duration_seconds: end-to-end migration latency
type MigrationMetrics struct {
	runsTotal    *prometheus.CounterVec
	recordsTotal *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewMigrationMetrics creates and registers migration metrics with the provided registry.
func NewMigrationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *MigrationMetrics {
	mm := &MigrationMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "migrations_total",
				Help:      "Total number of migration runs",
			},
			[]string{"result"},
		),

		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "migration_records_total",
				Help:      "Total number of records loaded by migrations",
			},
			[]string{"result"},
		),

		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "migration_duration_seconds",
				Help:      "Migration latency in seconds",
				// Migrations copy whole backends, so they need wider buckets.
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
	}

	registry.MustRegister(mm.runsTotal, mm.recordsTotal, mm.duration)

	return mm
}

// RecordRun records one migration run.
func (mm *MigrationMetrics) RecordRun(result string, duration time.Duration, migrated, failed int) {
	mm.runsTotal.WithLabelValues(result).Inc()
	mm.recordsTotal.WithLabelValues("success").Add(float64(migrated))
	mm.recordsTotal.WithLabelValues("error").Add(float64(failed))
	mm.duration.Observe(duration.Seconds())
}
