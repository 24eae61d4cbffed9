package data

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/datastore/pkg/config"
	"mercator-hq/datastore/pkg/storage"
	"mercator-hq/datastore/pkg/storage/cache"
	"mercator-hq/datastore/pkg/storage/dialects"
	"mercator-hq/datastore/pkg/storage/migration"
	"mercator-hq/datastore/pkg/telemetry/metrics"
)

// OpenOptions configures Open.
type OpenOptions struct {
	// Config is the application configuration.
	Config *config.Config

	// ConfigPath is the path Config was loaded from. The storage file is
	// resolved relative to it.
	ConfigPath string

	// Registry opens backends (defaults to dialects.NewRegistry()).
	Registry *storage.Registry

	Logger  *slog.Logger
	Metrics *metrics.Collector

	// Progress reports record counts of a migration run during Open.
	Progress migration.Progress
}

// Open brings up the data store described by the configuration: it
// writes a default storage file when none exists, completes an
// interrupted storage rotation, opens the backend with the declared
// schema and runs a pending migration. A disabled configuration yields a
// disabled Service and no error.
func Open(ctx context.Context, opts OpenOptions) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config

	if !cfg.Data.Enabled {
		logger.Info("data storage disabled")
		return NewService(nil, Options{Logger: logger}), nil
	}

	registry := opts.Registry
	if registry == nil {
		registry = dialects.NewRegistry()
	}

	storagePath := cfg.StoragePath(opts.ConfigPath)
	created, err := config.EnsureStorageFile(storagePath, cfg.PluginName)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("wrote default storage file", "path", storagePath)
	}

	if err := migration.Recover(storagePath, logger); err != nil {
		return nil, fmt.Errorf("recover storage rotation: %w", err)
	}

	storageCfg, err := config.LoadStorageConfig(storagePath, cfg.PluginName)
	if err != nil {
		return nil, err
	}

	schema := storage.NewSchema(cfg.Data.Tables)
	manager, err := storage.NewManager(ctx, storageCfg, schema,
		storage.WithRegistry(registry),
		storage.WithLogger(logger),
		storage.WithMetrics(opts.Metrics),
	)
	if err != nil {
		return nil, err
	}

	coord := migration.NewCoordinator(migration.Options{
		StoragePath: storagePath,
		PluginName:  cfg.PluginName,
		Schema:      schema,
		Registry:    registry,
		Logger:      logger,
		Metrics:     opts.Metrics,
		Progress:    opts.Progress,
	})
	var (
		migrated   *migration.Result
		migrateErr error
	)
	if coord.Pending() {
		// failures are logged by the coordinator; the returned manager is
		// the one to use either way
		manager, migrated, migrateErr = coord.Migrate(ctx, manager)
		storageCfg = manager.Config()
	}

	c := cache.New(manager, cache.Options{Logger: logger, Metrics: opts.Metrics})
	svc := NewService(c, Options{
		Enabled:         true,
		UseCacheDefault: cfg.Data.UseCacheDefault,
		Cache:           storageCfg.Cache,
		Logger:          logger,
	})
	svc.coordinator = coord
	svc.migrated = migrated
	svc.migrateErr = migrateErr
	return svc, nil
}
