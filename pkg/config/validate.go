package config

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "cache.interval").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "text"}
	validSaveOn     = []string{SaveOnReload, SaveOnDisable, SaveOnInterval}

	tablePrefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)
)

// Validate validates the application configuration and returns a
// ValidationError if any rule fails. All errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateData(&cfg.Data)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateData(cfg *DataConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.StorageFile) == "" {
		errs = append(errs, FieldError{
			Field:   "data.storage_file",
			Message: "field is required",
		})
	}

	for table, columns := range cfg.Tables {
		if strings.TrimSpace(table) == "" {
			errs = append(errs, FieldError{
				Field:   "data.tables",
				Message: "table name cannot be empty",
			})
			continue
		}
		for i, column := range columns {
			if strings.TrimSpace(column) == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("data.tables.%s[%d]", table, i),
					Message: "column name cannot be empty",
				})
			}
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if !contains(validLogLevels, strings.ToLower(cfg.Logging.Level)) {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be one of: %s)", cfg.Logging.Level, strings.Join(validLogLevels, ", ")),
		})
	}

	if !contains(validLogFormats, strings.ToLower(cfg.Logging.Format)) {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be one of: %s)", cfg.Logging.Format, strings.Join(validLogFormats, ", ")),
		})
	}

	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "path must start with /",
			})
		}
		if cfg.Metrics.Address == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.address",
				Message: "address is required when metrics are enabled",
			})
		}
	}

	for i, b := range cfg.Metrics.DurationBuckets {
		if b <= 0 || (i > 0 && b <= cfg.Metrics.DurationBuckets[i-1]) {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.duration_buckets",
				Message: "buckets must be positive and strictly increasing",
			})
			break
		}
	}

	return errs
}

// ValidateStorage validates a storage configuration. The method name is
// not checked here: unknown names fall back to the default method when
// the storage layer resolves them.
func ValidateStorage(cfg *StorageConfig) error {
	var errs []FieldError

	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateRemote(&cfg.RemoteConnection)...)

	if strings.TrimSpace(cfg.DataDir) == "" {
		errs = append(errs, FieldError{
			Field:   "data_dir",
			Message: "field is required",
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	for i, trigger := range cfg.SaveOn {
		if !contains(validSaveOn, trigger) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("cache.save_on[%d]", i),
				Message: fmt.Sprintf("invalid trigger %q (must be one of: %s)", trigger, strings.Join(validSaveOn, ", ")),
			})
		}
	}

	if cfg.Enabled && cfg.SavesOn(SaveOnInterval) && cfg.Interval <= 0 {
		errs = append(errs, FieldError{
			Field:   "cache.interval",
			Message: "interval must be positive when interval saving is enabled",
		})
	}

	return errs
}

func validateRemote(cfg *RemoteConnectionConfig) []FieldError {
	var errs []FieldError

	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = append(errs, FieldError{
			Field:   "remote_connection.port",
			Message: "port must be between 0 and 65535",
		})
	}

	if !tablePrefixPattern.MatchString(cfg.TablePrefix) {
		errs = append(errs, FieldError{
			Field:   "remote_connection.table_prefix",
			Message: "table prefix may only contain letters, digits and underscores",
		})
	}

	if cfg.MaxOpenConns < 0 {
		errs = append(errs, FieldError{
			Field:   "remote_connection.max_open_conns",
			Message: "must be non-negative",
		})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{
			Field:   "remote_connection.max_idle_conns",
			Message: "must be non-negative",
		})
	}
	if cfg.ConnectTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "remote_connection.connect_timeout",
			Message: "must be non-negative",
		})
	}
	if cfg.ConnectRetries < 0 {
		errs = append(errs, FieldError{
			Field:   "remote_connection.connect_retries",
			Message: "must be non-negative",
		})
	}

	return errs
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
