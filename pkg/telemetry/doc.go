// Package telemetry groups the observability packages of the data store.
//
// # Components
//
//   - logging: slog construction, context attributes and credential redaction
//   - metrics: Prometheus collectors for backend operations, the cache and migrations
//   - health: liveness and readiness endpoints with storage checks
//
// Metrics and health endpoints share one HTTP listener configured under
// telemetry.metrics. Every metrics recorder is safe to call on a nil
// collector, so storage components can be built without telemetry.
package telemetry
