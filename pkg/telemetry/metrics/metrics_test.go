package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/datastore/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:         true,
		Namespace:       "test",
		Subsystem:       "storage",
		DurationBuckets: []float64{0.01, 0.1, 1},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector == nil {
		t.Fatal("Expected non-nil collector")
	}
	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
}

func TestCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	NewCollector(cfg, nil)

	if cfg.Namespace != config.DefaultMetricsNamespace || cfg.Subsystem != config.DefaultMetricsSubsystem {
		t.Errorf("expected default namespace/subsystem, got %q/%q", cfg.Namespace, cfg.Subsystem)
	}
	if len(cfg.DurationBuckets) == 0 {
		t.Error("expected default duration buckets")
	}
}

func TestCollector_RecordOperation(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordOperation("sqlite", "set_values", "success", 2*time.Millisecond)
	collector.RecordOperation("sqlite", "set_values", "success", 3*time.Millisecond)
	collector.RecordOperation("sqlite", "get_value", "error", time.Millisecond)

	ops := collector.storageMetrics.operationsTotal
	if got := testutil.ToFloat64(ops.WithLabelValues("sqlite", "set_values", "success")); got != 2 {
		t.Errorf("expected 2 successful set_values, got %v", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("sqlite", "get_value", "error")); got != 1 {
		t.Errorf("expected 1 failed get_value, got %v", got)
	}
}

func TestCollector_CacheMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordCacheHit("players")
	collector.RecordCacheHit("players")
	collector.RecordCacheMiss("players")
	collector.SetDirtyCells(7)
	collector.RecordFlush(5*time.Millisecond, 3, 1)

	cm := collector.cacheMetrics
	if got := testutil.ToFloat64(cm.hitsTotal.WithLabelValues("players")); got != 2 {
		t.Errorf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(cm.missesTotal.WithLabelValues("players")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(cm.dirtyCells); got != 7 {
		t.Errorf("expected 7 dirty cells, got %v", got)
	}
	if got := testutil.ToFloat64(cm.flushedRecords.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed record, got %v", got)
	}
}

func TestCollector_MigrationMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordMigration("success", time.Second, 10, 2)

	mm := collector.migrationMetrics
	if got := testutil.ToFloat64(mm.runsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 run, got %v", got)
	}
	if got := testutil.ToFloat64(mm.recordsTotal.WithLabelValues("success")); got != 10 {
		t.Errorf("expected 10 migrated records, got %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordCacheHit("players")

	if got := testutil.ToFloat64(collector.cacheMetrics.hitsTotal.WithLabelValues("players")); got != 0 {
		t.Errorf("disabled collector should not record, got %v", got)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var collector *Collector

	collector.RecordOperation("sqlite", "get_value", "success", time.Millisecond)
	collector.RecordCacheHit("players")
	collector.RecordCacheMiss("players")
	collector.SetDirtyCells(1)
	collector.RecordFlush(time.Millisecond, 1, 0)
	collector.RecordMigration("success", time.Second, 1, 0)
}

func TestCollector_TableCardinality(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.tableLimiter = NewCardinalityLimiter(1)

	collector.RecordCacheHit("players")
	collector.RecordCacheHit("guilds")

	if got := testutil.ToFloat64(collector.cacheMetrics.hitsTotal.WithLabelValues("other")); got != 1 {
		t.Errorf("expected overflow table to be aggregated as other, got %v", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("expected first two values to be allowed")
	}
	if cl.Allow("c") {
		t.Error("expected third value to be rejected")
	}
	if !cl.Allow("a") {
		t.Error("expected known value to stay allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("expected count 2, got %d", cl.Count())
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordOperation("yaml", "get_all_values", "success", time.Millisecond)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "test_storage_operations_total") {
		t.Errorf("expected operations metric in output, got:\n%s", body)
	}
}
