package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate_DefaultConfig(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("expected default config to be valid, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Data.StorageFile = ""
	cfg.Telemetry.Logging.Level = "verbose"
	cfg.Telemetry.Metrics.Path = "metrics"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation to fail")
	}

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(validationErr.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(validationErr.Errors), validationErr.Errors)
	}
	if !strings.Contains(validationErr.Error(), "validation failed with 3 errors") {
		t.Errorf("unexpected message: %s", validationErr.Error())
	}
}

func TestValidate_Tables(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Data.Tables["players"] = []string{"coins", " "}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected empty column name to be rejected")
	}
	if !strings.Contains(err.Error(), "data.tables.players[1]") {
		t.Errorf("expected field path in error, got: %v", err)
	}
}

func TestValidate_DurationBuckets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telemetry.Metrics.DurationBuckets = []float64{0.5, 0.1}

	if err := Validate(cfg); err == nil {
		t.Fatal("expected decreasing buckets to be rejected")
	}
}

func TestValidateStorage(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*StorageConfig)
		wantField string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*StorageConfig) {},
		},
		{
			name:      "unknown save_on trigger",
			mutate:    func(c *StorageConfig) { c.Cache.SaveOn = []string{"restart"} },
			wantField: "cache.save_on[0]",
		},
		{
			name:      "non-positive interval",
			mutate:    func(c *StorageConfig) { c.Cache.Interval = -time.Second },
			wantField: "cache.interval",
		},
		{
			name: "interval ignored when not saving on interval",
			mutate: func(c *StorageConfig) {
				c.Cache.SaveOn = []string{SaveOnDisable}
				c.Cache.Interval = -time.Second
			},
		},
		{
			name:      "port out of range",
			mutate:    func(c *StorageConfig) { c.RemoteConnection.Port = 70000 },
			wantField: "remote_connection.port",
		},
		{
			name:      "prefix with quote",
			mutate:    func(c *StorageConfig) { c.RemoteConnection.TablePrefix = `bad"prefix` },
			wantField: "remote_connection.table_prefix",
		},
		{
			name:      "negative retries",
			mutate:    func(c *StorageConfig) { c.RemoteConnection.ConnectRetries = -1 },
			wantField: "remote_connection.connect_retries",
		},
		{
			name:   "unknown method is not a validation error",
			mutate: func(c *StorageConfig) { c.Method = "h2" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultStorageConfig("test")
			tt.mutate(cfg)

			err := ValidateStorage(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error on %s", tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("expected error on %s, got: %v", tt.wantField, err)
			}
		})
	}
}
