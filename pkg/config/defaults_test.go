package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.PluginName != DefaultPluginName {
		t.Errorf("expected plugin name %q, got %q", DefaultPluginName, cfg.PluginName)
	}
	if cfg.Data.StorageFile != DefaultStorageFile {
		t.Errorf("expected storage file %q, got %q", DefaultStorageFile, cfg.Data.StorageFile)
	}
	if _, ok := cfg.Data.Tables[DefaultEntitiesTable]; !ok {
		t.Error("expected entities table")
	}
	if cfg.Telemetry.Metrics.Namespace != DefaultMetricsNamespace {
		t.Errorf("expected namespace %q, got %q", DefaultMetricsNamespace, cfg.Telemetry.Metrics.Namespace)
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) != len(DefaultDurationBuckets) {
		t.Errorf("expected default buckets, got %v", cfg.Telemetry.Metrics.DurationBuckets)
	}

	// Idempotent
	ApplyDefaults(cfg)
	if len(cfg.Data.Tables) != 1 {
		t.Errorf("expected one declared table, got %d", len(cfg.Data.Tables))
	}
}

func TestApplyDefaults_KeepsEntitiesColumns(t *testing.T) {
	cfg := &Config{Data: DataConfig{Tables: map[string][]string{"entities": {"home"}}}}
	ApplyDefaults(cfg)

	if got := cfg.Data.Tables["entities"]; len(got) != 1 || got[0] != "home" {
		t.Errorf("expected declared entities columns to survive, got %v", got)
	}
}

func TestApplyStorageDefaults(t *testing.T) {
	cfg := &StorageConfig{}
	ApplyStorageDefaults(cfg, "Annoying API")

	if cfg.Method != DefaultStorageMethod {
		t.Errorf("expected method %q, got %q", DefaultStorageMethod, cfg.Method)
	}
	if cfg.Cache.Interval != DefaultCacheInterval {
		t.Errorf("expected interval %v, got %v", DefaultCacheInterval, cfg.Cache.Interval)
	}
	if cfg.RemoteConnection.TablePrefix != "annoyingapi_" {
		t.Errorf("expected prefix annoyingapi_, got %q", cfg.RemoteConnection.TablePrefix)
	}
	if cfg.RemoteConnection.ConnectTimeout != 10*time.Second {
		t.Errorf("expected connect timeout 10s, got %v", cfg.RemoteConnection.ConnectTimeout)
	}
	if cfg.RemoteConnection.Port != 0 {
		t.Errorf("port should stay unresolved, got %d", cfg.RemoteConnection.Port)
	}
}

func TestDefaultTablePrefix(t *testing.T) {
	tests := []struct {
		name   string
		plugin string
		want   string
	}{
		{"simple", "Economy", "economy_"},
		{"strips punctuation", "My-Plugin_2!", "myplugin2_"},
		{"empty", "", DefaultTablePrefixFallback},
		{"only symbols", "@@@", DefaultTablePrefixFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultTablePrefix(tt.plugin); got != tt.want {
				t.Errorf("DefaultTablePrefix(%q) = %q, want %q", tt.plugin, got, tt.want)
			}
		})
	}
}

func TestCacheConfig_SavesOn(t *testing.T) {
	all := CacheConfig{}
	for _, trigger := range []string{SaveOnReload, SaveOnDisable, SaveOnInterval} {
		if !all.SavesOn(trigger) {
			t.Errorf("empty save_on should include %q", trigger)
		}
	}

	some := CacheConfig{SaveOn: []string{SaveOnReload}}
	if !some.SavesOn(SaveOnReload) || some.SavesOn(SaveOnDisable) {
		t.Errorf("unexpected SavesOn result for %v", some.SaveOn)
	}
}
