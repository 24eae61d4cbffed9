package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeFile(t, tmpDir, "config.yaml", `
plugin_name: "Annoying-Plugin"
data:
  enabled: true
  tables:
    players: [coins, Rank]
telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !cfg.Data.Enabled {
		t.Error("expected data to be enabled")
	}
	if !cfg.Data.UseCacheDefault {
		t.Error("expected use_cache_default to keep its default when absent")
	}
	if cfg.Data.StorageFile != DefaultStorageFile {
		t.Errorf("expected storage file %q, got %q", DefaultStorageFile, cfg.Data.StorageFile)
	}
	if got := cfg.Data.Tables["players"]; len(got) != 2 {
		t.Errorf("expected 2 player columns, got %v", got)
	}
	if _, ok := cfg.Data.Tables[DefaultEntitiesTable]; !ok {
		t.Error("expected entities table to be declared by default")
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Telemetry.Logging.Level)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read configuration file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "data: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
data:
  enabled: false
telemetry:
  logging:
    level: info
`)

	t.Setenv("DATASTORE_DATA_ENABLED", "true")
	t.Setenv("DATASTORE_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("DATASTORE_PLUGIN_NAME", "Economy")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !cfg.Data.Enabled {
		t.Error("expected env override to enable data")
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.PluginName != "Economy" {
		t.Errorf("expected plugin name Economy, got %q", cfg.PluginName)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "plugin_name: test\n")
	t.Setenv("DATASTORE_TELEMETRY_LOGGING_FORMAT", "xml")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation error after override")
	}
}

func TestLoadStorageConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeFile(t, tmpDir, "storage.yml", `
method: mysql
cache:
  enabled: false
  save_on: [disable]
  interval: 30s
remote_connection:
  host: db.internal
  database: minecraft
  username: root
  password: hunter2
  properties:
    tls: "false"
`)

	cfg, err := LoadStorageConfig(path, "My Plugin!")
	if err != nil {
		t.Fatalf("failed to load storage config: %v", err)
	}

	if cfg.Method != "mysql" {
		t.Errorf("expected method mysql, got %q", cfg.Method)
	}
	if cfg.Cache.Enabled {
		t.Error("expected cache disabled")
	}
	if cfg.Cache.Interval != 30*time.Second {
		t.Errorf("expected interval 30s, got %v", cfg.Cache.Interval)
	}
	if cfg.Cache.SavesOn(SaveOnInterval) {
		t.Error("expected interval saving to be off")
	}
	if !cfg.Cache.SavesOn(SaveOnDisable) {
		t.Error("expected disable saving to be on")
	}
	if cfg.RemoteConnection.TablePrefix != "myplugin_" {
		t.Errorf("expected default prefix myplugin_, got %q", cfg.RemoteConnection.TablePrefix)
	}
	if cfg.RemoteConnection.Properties["tls"] != "false" {
		t.Errorf("expected tls property, got %v", cfg.RemoteConnection.Properties)
	}
	if cfg.DataDir != filepath.Join(tmpDir, DefaultDataDir) {
		t.Errorf("expected data dir resolved next to storage file, got %q", cfg.DataDir)
	}
}

func TestLoadStorageConfig_CacheEnabledByDefault(t *testing.T) {
	path := writeFile(t, t.TempDir(), "storage.yml", "method: json\n")

	cfg, err := LoadStorageConfig(path, "test")
	if err != nil {
		t.Fatalf("failed to load storage config: %v", err)
	}
	if !cfg.Cache.Enabled {
		t.Error("expected cache to default to enabled")
	}
	if cfg.Cache.Interval != DefaultCacheInterval {
		t.Errorf("expected default interval, got %v", cfg.Cache.Interval)
	}
}

func TestLoadStorageConfig_EnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "storage.yml", `
method: postgresql
remote_connection:
  host: localhost
  password: from-file
`)

	t.Setenv("DATASTORE_STORAGE_REMOTE_PASSWORD", "from-env")
	t.Setenv("DATASTORE_STORAGE_CACHE_INTERVAL", "1m")

	cfg, err := LoadStorageConfig(path, "test")
	if err != nil {
		t.Fatalf("failed to load storage config: %v", err)
	}
	if cfg.RemoteConnection.Password != "from-env" {
		t.Errorf("expected password override, got %q", cfg.RemoteConnection.Password)
	}
	if cfg.Cache.Interval != time.Minute {
		t.Errorf("expected interval override, got %v", cfg.Cache.Interval)
	}

	raw, err := LoadStorageConfigWithoutEnv(path, "test")
	if err != nil {
		t.Fatalf("failed to load storage config without env: %v", err)
	}
	if raw.RemoteConnection.Password != "from-file" {
		t.Errorf("expected file password without env, got %q", raw.RemoteConnection.Password)
	}
}

func TestLoadStorageConfig_InvalidSaveOn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "storage.yml", `
cache:
  save_on: [shutdown]
`)
	if _, err := LoadStorageConfig(path, "test"); err == nil {
		t.Fatal("expected validation error for unknown save_on trigger")
	}
}

func TestEnsureStorageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins", "storage.yml")

	created, err := EnsureStorageFile(path, "test")
	if err != nil {
		t.Fatalf("EnsureStorageFile failed: %v", err)
	}
	if !created {
		t.Fatal("expected file to be created")
	}

	cfg, err := LoadStorageConfigWithoutEnv(path, "test")
	if err != nil {
		t.Fatalf("generated file does not load: %v", err)
	}
	if cfg.Method != DefaultStorageMethod {
		t.Errorf("expected default method, got %q", cfg.Method)
	}
	if cfg.Cache.Interval != DefaultCacheInterval {
		t.Errorf("expected default interval, got %v", cfg.Cache.Interval)
	}

	created, err = EnsureStorageFile(path, "test")
	if err != nil {
		t.Fatalf("second EnsureStorageFile failed: %v", err)
	}
	if created {
		t.Error("expected existing file to be left alone")
	}
}

func TestConfig_StoragePath(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.StoragePath("/srv/plugin/config.yaml"); got != "/srv/plugin/storage.yml" {
		t.Errorf("unexpected storage path %q", got)
	}

	cfg.Data.StorageFile = "/etc/storage.yml"
	if got := cfg.StoragePath("/srv/plugin/config.yaml"); got != "/etc/storage.yml" {
		t.Errorf("absolute storage path should be kept, got %q", got)
	}
}
