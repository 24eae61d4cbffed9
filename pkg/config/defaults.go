package config

import (
	"strings"
	"time"
)

// Default values for configuration fields.
const (
	// Data defaults
	DefaultDataEnabled         = false
	DefaultStorageFile         = "storage.yml"
	DefaultUseCacheDefault     = true
	DefaultEntitiesTable       = "entities"
	DefaultDataWatch           = false
	DefaultPluginName          = "datastore"
	DefaultTablePrefixFallback = "data_"

	// Storage defaults
	DefaultStorageMethod    = "sqlite"
	DefaultDataDir          = "data"
	DefaultCacheEnabled     = true
	DefaultCacheInterval    = 5 * time.Minute
	DefaultMaxOpenConns     = 10
	DefaultMaxIdleConns     = 5
	DefaultConnMaxLifetime  = 30 * time.Minute
	DefaultConnectTimeout   = 10 * time.Second
	DefaultConnectRetries   = 3
	DefaultMySQLPort        = 3306
	DefaultPostgresPort     = 5432
	DefaultStorageFileNew   = "storage-new.yml"
	DefaultStorageFileOld   = "storage-old.yml"
	DefaultMigrationJournal = "storage-migration.json"

	// Telemetry defaults
	DefaultLoggingLevel      = "info"
	DefaultLoggingFormat     = "json"
	DefaultRedactCredentials = true
	DefaultMetricsEnabled    = true
	DefaultMetricsAddress    = "127.0.0.1:9090"
	DefaultPrometheusPath    = "/metrics"
	DefaultMetricsNamespace  = "datastore"
	DefaultMetricsSubsystem  = "storage"
)

// DefaultDurationBuckets are the histogram buckets for operation and
// flush durations, in seconds.
var DefaultDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// DefaultConfig returns a Config populated with every default. The YAML
// loader decodes on top of it so that booleans absent from the file keep
// their default instead of collapsing to false.
func DefaultConfig() *Config {
	cfg := &Config{
		Data: DataConfig{
			Enabled:         DefaultDataEnabled,
			UseCacheDefault: DefaultUseCacheDefault,
			Watch:           DefaultDataWatch,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactCredentials: DefaultRedactCredentials},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	if cfg.PluginName == "" {
		cfg.PluginName = DefaultPluginName
	}

	// Data defaults
	if cfg.Data.StorageFile == "" {
		cfg.Data.StorageFile = DefaultStorageFile
	}
	if cfg.Data.Tables == nil {
		cfg.Data.Tables = make(map[string][]string)
	}
	if _, ok := cfg.Data.Tables[DefaultEntitiesTable]; !ok {
		cfg.Data.Tables[DefaultEntitiesTable] = nil
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Address == "" {
		cfg.Telemetry.Metrics.Address = DefaultMetricsAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
}

// DefaultStorageConfig returns a StorageConfig populated with every
// default for the given plugin name.
func DefaultStorageConfig(pluginName string) *StorageConfig {
	cfg := &StorageConfig{
		Cache: CacheConfig{Enabled: DefaultCacheEnabled},
	}
	ApplyStorageDefaults(cfg, pluginName)
	return cfg
}

// ApplyStorageDefaults applies default values to a StorageConfig.
// The remote port is left at zero; the storage layer resolves it per
// method.
func ApplyStorageDefaults(cfg *StorageConfig, pluginName string) {
	if cfg.Method == "" {
		cfg.Method = DefaultStorageMethod
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.Cache.Interval == 0 {
		cfg.Cache.Interval = DefaultCacheInterval
	}

	rc := &cfg.RemoteConnection
	if rc.TablePrefix == "" {
		rc.TablePrefix = DefaultTablePrefix(pluginName)
	}
	if rc.MaxOpenConns == 0 {
		rc.MaxOpenConns = DefaultMaxOpenConns
	}
	if rc.MaxIdleConns == 0 {
		rc.MaxIdleConns = DefaultMaxIdleConns
	}
	if rc.ConnMaxLifetime == 0 {
		rc.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if rc.ConnectTimeout == 0 {
		rc.ConnectTimeout = DefaultConnectTimeout
	}
	if rc.ConnectRetries == 0 {
		rc.ConnectRetries = DefaultConnectRetries
	}
	if rc.Properties == nil {
		rc.Properties = make(map[string]string)
	}
}

// DefaultTablePrefix derives a table prefix from a plugin name: lowercase,
// ASCII letters and digits only, followed by an underscore.
func DefaultTablePrefix(pluginName string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(pluginName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return DefaultTablePrefixFallback
	}
	sb.WriteByte('_')
	return sb.String()
}
