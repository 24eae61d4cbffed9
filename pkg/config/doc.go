// Package config provides configuration management for the data store.
//
// Two files are involved. config.yaml holds the application settings: the
// declared tables and columns, accessor defaults and telemetry. storage.yml
// selects the storage backend and its cache; it is kept separate so that
// an operator can stage a backend change by writing storage-new.yml next
// to it.
//
// # Loading
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	storageCfg, err := config.LoadStorageConfig(cfg.StoragePath("config.yaml"), cfg.PluginName)
//
// # Environment Variable Overrides
//
// Environment variables are parsed with github.com/caarlos0/env:
//
//   - DATASTORE_DATA_ENABLED overrides data.enabled
//   - DATASTORE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//   - DATASTORE_STORAGE_METHOD overrides method in storage.yml
//   - DATASTORE_STORAGE_REMOTE_PASSWORD overrides remote_connection.password
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example storage.yml
//
//	method: mysql
//	cache:
//	  enabled: true
//	  save_on: [reload, disable, interval]
//	  interval: 5m
//	remote_connection:
//	  host: db.internal
//	  database: minecraft
//	  username: plugin
//	  password: secret
//	  properties:
//	    tls: "false"
package config
