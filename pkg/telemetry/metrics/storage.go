package metrics

import (
	"time"

	"mercator-hq/datastore/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics tracks backend operations.
//
// Metrics:
//   - datastore_storage_operations_total: operations by method, operation and result
//   - datastore_storage_operation_duration_seconds: backend latency by method and operation
type StorageMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewStorageMetrics creates and registers storage metrics with the provided registry.
func NewStorageMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StorageMetrics {
	sm := &StorageMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "operations_total",
				Help:      "Total number of backend operations",
			},
			[]string{"method", "operation", "result"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Backend operation latency in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"method", "operation"},
		),
	}

	registry.MustRegister(sm.operationsTotal, sm.operationDuration)

	return sm
}

// RecordOperation records a single backend operation.
func (sm *StorageMetrics) RecordOperation(method, operation, result string, duration time.Duration) {
	sm.operationsTotal.WithLabelValues(method, operation, result).Inc()
	sm.operationDuration.WithLabelValues(method, operation).Observe(duration.Seconds())
}
