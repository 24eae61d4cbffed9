package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/datastore/pkg/cli"
	"mercator-hq/datastore/pkg/config"
	"mercator-hq/datastore/pkg/data"
	"mercator-hq/datastore/pkg/storage/migration"
	"mercator-hq/datastore/pkg/telemetry/logging"
	"mercator-hq/datastore/pkg/telemetry/metrics"
)

// environment holds what every command touching storage needs.
type environment struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector
}

// loadEnvironment loads config.yaml with environment overrides and builds
// the logger and metrics collector from it. Logs go to stderr so that
// command output on stdout stays machine-readable.
func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, cmd.ErrOrStderr()))
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	return &environment{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
	}, nil
}

// open brings up the data service. A disabled data layer is an error for
// commands.
func (e *environment) open(ctx context.Context, progress migration.Progress) (*data.Service, error) {
	svc, err := data.Open(ctx, data.OpenOptions{
		Config:     e.cfg,
		ConfigPath: cfgFile,
		Logger:     e.logger,
		Metrics:    e.metrics,
		Progress:   progress,
	})
	if err != nil {
		return nil, fmt.Errorf("open data store: %w", err)
	}
	if !svc.IsEnabled() {
		return nil, data.ErrNotEnabled
	}
	return svc, nil
}

// withService opens the data service, runs fn and closes the service.
func withService(cmd *cobra.Command, name string, fn func(ctx context.Context, svc *data.Service) error) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, err := env.open(ctx, nil)
	if err != nil {
		return cli.NewCommandError(name, err)
	}

	runErr := fn(ctx, svc)
	if err := svc.Close(ctx); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return cli.NewCommandError(name, runErr)
	}
	return nil
}
