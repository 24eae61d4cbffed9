package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/datastore/pkg/cli"
	"mercator-hq/datastore/pkg/config"
	"mercator-hq/datastore/pkg/data"
	"mercator-hq/datastore/pkg/storage/migration"
	"mercator-hq/datastore/pkg/telemetry/health"
)

var runFlags struct {
	metricsAddress  string
	debounce        time.Duration
	shutdownTimeout time.Duration
	maxDirtyCells   int
	dryRun          bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the data store",
	Long: `Open the configured backend and keep it running until interrupted.

While running, the store:
  - flushes cached writes on the interval configured in storage.yml
  - flushes on SIGHUP when storage.yml saves on reload
  - migrates to storage-new.yml as soon as it appears (data.watch)
  - serves Prometheus metrics and /health, /ready, /version
    on the metrics address (telemetry.metrics)

On SIGINT or SIGTERM cached writes are flushed when storage.yml saves on
disable, then the backend is closed.

Examples:
  # Start with default config
  datastore run

  # Override the metrics listen address
  datastore run --metrics-address 0.0.0.0:9090

  # Open the backend, run pending migrations and exit
  datastore run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runStore,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.metricsAddress, "metrics-address", "", "override metrics listen address")
	runCmd.Flags().DurationVar(&runFlags.debounce, "watch-debounce", migration.DefaultDebounceInterval, "quiet period after storage-new.yml changes before migrating")
	runCmd.Flags().DurationVar(&runFlags.shutdownTimeout, "shutdown-timeout", 30*time.Second, "time allowed for the final flush")
	runCmd.Flags().IntVar(&runFlags.maxDirtyCells, "max-dirty-cells", 10000, "unflushed cached cells before /ready reports degraded (0 disables)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "open the backend and exit")
}

func runStore(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	cfg := env.cfg
	if runFlags.metricsAddress != "" {
		cfg.Telemetry.Metrics.Address = runFlags.metricsAddress
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	printBanner(cfg)

	svc, err := env.open(ctx, nil)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer closeService(svc)

	fmt.Printf("✓ Storage opened (%s)\n", svc.Manager().Method())

	if runFlags.dryRun {
		return nil
	}

	errChan := make(chan error, 1)

	var metricsServer *http.Server
	if cfg.Telemetry.Metrics.Enabled {
		checker := health.New(2 * time.Second)
		checker.RegisterCheck("storage", svc.Ping)
		checker.RegisterCheck("rotation", health.RotationCheck(svc.Coordinator().Files().Journal))
		checker.RegisterCheck("cache", health.BacklogCheck(svc.Cache().DirtyCells, runFlags.maxDirtyCells))

		mux := http.NewServeMux()
		mux.Handle(cfg.Telemetry.Metrics.Path, env.metrics.Handler())
		health.Register(mux, checker, Version, GitCommit, BuildDate)
		metricsServer = &http.Server{
			Addr:              cfg.Telemetry.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			slog.Info("starting metrics server", "address", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Telemetry.Metrics.Address, cfg.Telemetry.Metrics.Path)
	}

	if err := svc.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	if cfg.Data.Watch {
		watcher, err := migration.NewWatcher(svc.Coordinator(), svc.Cache(), runFlags.debounce, env.logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		watcher.OnMigrate = func(res *migration.Result, err error) {
			// the cache section follows whichever storage file is now live
			if m := svc.Manager(); m != nil {
				if aerr := svc.ApplyCacheConfig(ctx, m.Config().Cache); aerr != nil {
					env.logger.Error("failed to apply cache settings", "error", aerr)
				}
			}
			if err != nil {
				fmt.Printf("✗ Migration failed: %v\n", err)
				return
			}
			fmt.Printf("✓ Migrated %d records to %s (%d failed)\n", res.Migrated, res.To, res.Failed)
		}

		go func() {
			if err := watcher.Watch(ctx); err != nil {
				errChan <- fmt.Errorf("storage file watcher error: %w", err)
			}
		}()
		defer watcher.Stop()
		fmt.Printf("✓ Watching for %s\n", svc.Coordinator().Files().New)
	}

	fmt.Println("\nPress Ctrl+C to stop")

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	for {
		select {
		case err := <-errChan:
			return cli.NewCommandError("run", err)

		case <-reload:
			slog.Info("reload requested")
			if err := svc.Reload(ctx); err != nil {
				slog.Error("flush on reload failed", "error", err)
			}

		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			if metricsServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					slog.Warn("metrics server shutdown failed", "error", err)
				}
				cancel()
			}
			return nil
		}
	}
}

// closeService closes svc with a fresh context: the run context is
// already cancelled when shutdown starts.
func closeService(svc *data.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), runFlags.shutdownTimeout)
	defer cancel()

	if err := svc.Close(ctx); err != nil {
		slog.Error("failed to close data store", "error", err)
		return
	}
	fmt.Println("✓ Storage closed")
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Datastore v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	slog.Debug("declared tables", "count", len(cfg.Data.Tables))
	if cfg.Data.Watch {
		slog.Debug("storage file watcher enabled")
	}
}
