package config

import "time"

// Config is the root application configuration, loaded from config.yaml.
// It declares which tables and columns the host wants to persist and how
// the process logs and exposes metrics. Backend selection lives in the
// separate StorageConfig so that it can be swapped by dropping a
// storage-new.yml next to storage.yml.
type Config struct {
	// PluginName identifies the deployment. It seeds the default table
	// prefix used on shared remote databases.
	PluginName string `yaml:"plugin_name" env:"PLUGIN_NAME"`

	// Data contains data-storage settings.
	Data DataConfig `yaml:"data" envPrefix:"DATA_"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// DataConfig contains the declared schema and the accessor defaults.
type DataConfig struct {
	// Enabled turns the data layer on. When false every accessor returns
	// a not-enabled error.
	// Default: false
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// StorageFile is the path of storage.yml. Relative paths are resolved
	// against the directory holding config.yaml.
	// Default: "storage.yml"
	StorageFile string `yaml:"storage_file" env:"STORAGE_FILE"`

	// UseCacheDefault is the cache flag given to accessors that do not
	// choose one explicitly.
	// Default: true
	UseCacheDefault bool `yaml:"use_cache_default" env:"USE_CACHE_DEFAULT"`

	// Tables maps table names to the columns that must exist. The
	// "entities" table is always declared.
	Tables map[string][]string `yaml:"tables"`

	// Watch enables the sentinel watcher that starts a live migration as
	// soon as storage-new.yml appears.
	// Default: false
	Watch bool `yaml:"watch" env:"WATCH"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level" env:"LEVEL"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format" env:"FORMAT"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source" env:"ADD_SOURCE"`

	// RedactCredentials scrubs passwords and DSN user info from log
	// attributes.
	// Default: true
	RedactCredentials bool `yaml:"redact_credentials" env:"REDACT_CREDENTIALS"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Address is the listen address of the metrics endpoint.
	// Default: "127.0.0.1:9090"
	Address string `yaml:"address" env:"ADDRESS"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path" env:"PATH"`

	// Namespace is the metric name prefix.
	// Default: "datastore"
	Namespace string `yaml:"namespace" env:"NAMESPACE"`

	// Subsystem is the metric subsystem name.
	// Default: "storage"
	Subsystem string `yaml:"subsystem" env:"SUBSYSTEM"`

	// DurationBuckets defines histogram buckets for backend operation and
	// flush durations (seconds).
	// Default: [0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5]
	DurationBuckets []float64 `yaml:"duration_buckets" env:"DURATION_BUCKETS" envSeparator:","`
}

// StorageConfig is the content of storage.yml. It selects the backend
// method, the cache behaviour and, for remote methods, the server to
// connect to.
type StorageConfig struct {
	// Method is the backend method name.
	// Options: "sqlite", "sqlite3", "mysql", "mariadb", "postgresql", "json", "yaml"
	// Unknown or empty names fall back to "sqlite".
	// Default: "sqlite"
	Method string `yaml:"method" env:"METHOD"`

	// DataDir is the directory embedded and file-based methods write to.
	// Relative paths are resolved against the directory of storage.yml.
	// Default: "data"
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`

	// Cache contains the write-coalescing cache settings.
	Cache CacheConfig `yaml:"cache" envPrefix:"CACHE_"`

	// RemoteConnection is required by the mysql, mariadb and postgresql
	// methods. Without it those methods fall back to "sqlite".
	RemoteConnection RemoteConnectionConfig `yaml:"remote_connection" envPrefix:"REMOTE_"`
}

// Save-on triggers for the cache.
const (
	SaveOnReload   = "reload"
	SaveOnDisable  = "disable"
	SaveOnInterval = "interval"
)

// CacheConfig contains cache settings.
type CacheConfig struct {
	// Enabled turns the in-memory write-coalescing cache on.
	// Default: true
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// SaveOn lists the events that flush the cache to the backend.
	// Options: "reload", "disable", "interval". An empty list means all.
	SaveOn []string `yaml:"save_on" env:"SAVE_ON" envSeparator:","`

	// Interval is the period of the interval flush.
	// Default: 5m
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

// SavesOn reports whether the cache flushes on the given trigger.
func (c CacheConfig) SavesOn(trigger string) bool {
	if len(c.SaveOn) == 0 {
		return true
	}
	for _, t := range c.SaveOn {
		if t == trigger {
			return true
		}
	}
	return false
}

// RemoteConnectionConfig describes a remote SQL server.
type RemoteConnectionConfig struct {
	// Host is the server host name.
	Host string `yaml:"host" env:"HOST"`

	// Port is the server port. Zero selects the method's default port
	// (3306 for mysql and mariadb, 5432 for postgresql).
	Port int `yaml:"port" env:"PORT"`

	// Database is the database (schema) name.
	Database string `yaml:"database" env:"DATABASE"`

	// Username is the login user.
	Username string `yaml:"username" env:"USERNAME"`

	// Password is the login password. It is never logged.
	Password string `yaml:"password" env:"PASSWORD"`

	// TablePrefix is prepended to every physical table name.
	// Default: plugin name, lowercased, non-alphanumerics removed, plus "_"
	TablePrefix string `yaml:"table_prefix" env:"TABLE_PREFIX"`

	// Properties are free-form driver parameters appended to the DSN.
	Properties map[string]string `yaml:"properties" env:"PROPERTIES"`

	// MaxOpenConns caps the connection pool.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`

	// MaxIdleConns caps idle pooled connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`

	// ConnMaxLifetime bounds how long a pooled connection is reused.
	// Default: 30m
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`

	// ConnectTimeout bounds the whole connect-and-ping sequence,
	// retries included.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`

	// ConnectRetries is the number of extra ping attempts after the first.
	// Default: 3
	ConnectRetries int `yaml:"connect_retries" env:"CONNECT_RETRIES"`
}
