package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Environment variable prefixes. Application settings use
// DATASTORE_SECTION_FIELD (e.g. DATASTORE_TELEMETRY_LOGGING_LEVEL) and
// storage.yml settings use DATASTORE_STORAGE_SECTION_FIELD
// (e.g. DATASTORE_STORAGE_REMOTE_PASSWORD).
const (
	EnvPrefix        = "DATASTORE_"
	StorageEnvPrefix = "DATASTORE_STORAGE_"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables always take
// precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := parseEnv(cfg, EnvPrefix); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadStorageConfig loads storage.yml, applies defaults for the given
// plugin name, applies DATASTORE_STORAGE_ environment overrides and
// validates the result.
func LoadStorageConfig(path, pluginName string) (*StorageConfig, error) {
	return loadStorageConfig(path, pluginName, true)
}

// LoadStorageConfigWithoutEnv loads a storage file without environment
// overrides. The migration coordinator uses it for storage-new.yml so that
// overrides aimed at the live backend do not leak into the target.
func LoadStorageConfigWithoutEnv(path, pluginName string) (*StorageConfig, error) {
	return loadStorageConfig(path, pluginName, false)
}

func loadStorageConfig(path, pluginName string, withEnv bool) (*StorageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage file %q: %w", path, err)
	}

	cfg := &StorageConfig{Cache: CacheConfig{Enabled: DefaultCacheEnabled}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse storage file %q: %w", path, err)
	}

	ApplyStorageDefaults(cfg, pluginName)

	if withEnv {
		if err := parseEnv(cfg, StorageEnvPrefix); err != nil {
			return nil, err
		}
	}

	cfg.DataDir = resolveRelative(filepath.Dir(path), cfg.DataDir)

	if err := ValidateStorage(cfg); err != nil {
		return nil, fmt.Errorf("storage configuration validation failed: %w", err)
	}

	return cfg, nil
}

// EnsureStorageFile writes a default storage.yml at path when no file
// exists there yet. It reports whether a file was created.
func EnsureStorageFile(path, pluginName string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat storage file %q: %w", path, err)
	}

	cfg := DefaultStorageConfig(pluginName)
	cfg.Cache.SaveOn = []string{SaveOnReload, SaveOnDisable, SaveOnInterval}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("failed to encode default storage file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create storage file directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return false, fmt.Errorf("failed to write storage file %q: %w", path, err)
	}
	return true, nil
}

// StoragePath resolves the storage file of cfg relative to the directory
// holding the application configuration file.
func (c *Config) StoragePath(configPath string) string {
	return resolveRelative(filepath.Dir(configPath), c.Data.StorageFile)
}

func parseEnv(target any, prefix string) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func resolveRelative(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
