package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"mercator-hq/datastore/pkg/config"
	"mercator-hq/datastore/pkg/storage"
	"mercator-hq/datastore/pkg/telemetry/logging"
	"mercator-hq/datastore/pkg/telemetry/metrics"
)

// Migration results reported to metrics.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultCutover = "cutover_failed"
)

// Options configures a Coordinator.
type Options struct {
	// StoragePath is the path of the active storage.yml.
	StoragePath string

	// PluginName derives the default table prefix of the new backend.
	PluginName string

	// Schema is the declared schema, provisioned on the new backend
	// before any data is copied.
	Schema storage.Schema

	// Registry opens the new backend.
	Registry *storage.Registry

	Logger  *slog.Logger
	Metrics *metrics.Collector

	// Progress, when set, is told how many records are being copied.
	Progress Progress
}

// Progress receives record counts while a migration copies data.
type Progress interface {
	Start(total int64)
	Update(current int64)
	Finish()
}

// Coordinator moves all data from the active backend to the one described
// by storage-new.yml and then makes the new file the active one.
type Coordinator struct {
	files    Files
	plugin   string
	schema   storage.Schema
	registry *storage.Registry
	logger   *slog.Logger
	metrics  *metrics.Collector
	progress Progress
}

// Result summarizes one migration run.
type Result struct {
	ID       string
	From     storage.Method
	To       storage.Method
	Tables   []string
	Migrated int
	Failed   int
	Skipped  []string
	Duration time.Duration

	// RecordErrors holds one *storage.RecordError per record that could
	// not be written to the new backend.
	RecordErrors []error
}

// NewCoordinator creates a coordinator.
func NewCoordinator(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	plugin := opts.PluginName
	if plugin == "" {
		plugin = config.DefaultPluginName
	}
	return &Coordinator{
		files:    FilesFor(opts.StoragePath),
		plugin:   plugin,
		schema:   opts.Schema,
		registry: opts.Registry,
		logger:   logger.With("component", "storage.migration"),
		metrics:  opts.Metrics,
		progress: opts.Progress,
	}
}

// Files returns the storage files the coordinator works on.
func (c *Coordinator) Files() Files {
	return c.files
}

// Pending reports whether storage-new.yml exists.
func (c *Coordinator) Pending() bool {
	ok, err := exists(c.files.New)
	if err != nil {
		c.logger.Warn("failed to check for new storage file", "path", c.files.New, "error", err)
	}
	return ok
}

// Migrate copies every record of current into the backend described by
// storage-new.yml and rotates the storage files.
//
// When the new backend cannot be opened or the source tables cannot be
// listed, current is returned unchanged together with the error and no
// file is touched. Otherwise current is closed and the new manager is
// returned. Records that fail to copy are logged, counted in the Result
// and do not stop the run. A failed file rotation returns the new
// manager together with a *storage.CutoverError.
func (c *Coordinator) Migrate(ctx context.Context, current *storage.Manager) (*storage.Manager, *Result, error) {
	start := time.Now()
	res := &Result{ID: uuid.NewString(), From: current.Method()}
	ctx = logging.WithAttrs(ctx, "migration_id", res.ID)

	c.logger.InfoContext(ctx, "found new storage file, migrating data",
		"from", current.Method(),
		"file", c.files.New,
	)

	next, err := c.provision(ctx)
	if err != nil {
		c.finish(ctx, res, start, ResultFailed)
		return current, res, err
	}
	res.To = next.Method()

	data, err := c.extract(ctx, current, res)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to read source backend, keeping current storage", "error", err)
		if cerr := next.Close(); cerr != nil {
			c.logger.WarnContext(ctx, "failed to close new backend", "error", cerr)
		}
		c.finish(ctx, res, start, ResultFailed)
		return current, res, err
	}

	if data.Empty() {
		c.logger.WarnContext(ctx, "found no data to migrate, this may or may not be an error")
	} else {
		if err := next.ApplySchema(ctx, data.Schema()); err != nil {
			c.logger.WarnContext(ctx, "schema provisioning on new backend was incomplete", "error", err)
		}
		c.load(ctx, next, data, res)
	}

	if err := current.Close(); err != nil {
		c.logger.ErrorContext(ctx, "failed to close the old backend, a restart is recommended", "error", err)
	}

	j := journal{
		ID:        res.ID,
		From:      string(res.From),
		To:        string(res.To),
		Migrated:  res.Migrated,
		Failed:    res.Failed,
		CreatedAt: time.Now().UTC(),
	}
	if err := rotate(c.files, j); err != nil {
		logCutoverError(c.logger, err)
		c.finish(ctx, res, start, ResultCutover)
		return next, res, err
	}

	c.finish(ctx, res, start, ResultSuccess)
	return next, res, nil
}

// provision opens the new backend with the declared schema.
func (c *Coordinator) provision(ctx context.Context) (*storage.Manager, error) {
	cfg, err := config.LoadStorageConfigWithoutEnv(c.files.New, c.plugin)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to load new storage file, keeping current storage", "error", err)
		return nil, err
	}

	next, err := storage.NewManager(ctx, cfg, c.schema,
		storage.WithRegistry(c.registry),
		storage.WithLogger(c.logger),
		storage.WithMetrics(c.metrics),
	)
	if err != nil {
		var connErr *storage.ConnectionError
		if errors.As(err, &connErr) {
			c.logger.ErrorContext(ctx, "failed to connect to new backend, keeping current storage",
				"method", connErr.Method,
				"url", connErr.URL,
				"properties", connErr.Properties,
				"error", connErr.Cause,
			)
		} else {
			c.logger.ErrorContext(ctx, "failed to open new backend, keeping current storage", "error", err)
		}
		return nil, err
	}
	return next, nil
}

// extract reads every declared or discovered table of current. Table
// names in the snapshot are logical. Tables without a target column are
// skipped; a table that cannot be read is logged and skipped.
func (c *Coordinator) extract(ctx context.Context, current *storage.Manager, res *Result) (*storage.MigrationData, error) {
	physical, err := current.Dialect().Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source tables: %w", err)
	}

	logical := make(map[string]struct{})
	for _, t := range c.schema.Tables() {
		logical[t] = struct{}{}
	}
	for _, t := range physical {
		if name, ok := current.LogicalName(t); ok {
			logical[name] = struct{}{}
		}
	}

	tables := make([]string, 0, len(logical))
	for t := range logical {
		tables = append(tables, t)
	}
	slices.Sort(tables)

	data := storage.NewMigrationData()
	for _, table := range tables {
		values, err := current.Dialect().GetAllValues(ctx, current.TableName(table))
		if errors.Is(err, storage.ErrNoTargetColumn) {
			c.logger.WarnContext(ctx, "table has no target column, skipping", "table", table)
			res.Skipped = append(res.Skipped, table)
			continue
		}
		if err != nil {
			c.logger.ErrorContext(ctx, "failed to read table, skipping", "table", table, "error", err)
			res.Skipped = append(res.Skipped, table)
			continue
		}
		if len(values) == 0 {
			continue
		}
		data.Add(table, values)
		res.Tables = append(res.Tables, table)
	}

	return data, nil
}

// load writes every record with one SetValues call.
func (c *Coordinator) load(ctx context.Context, next *storage.Manager, data *storage.MigrationData, res *Result) {
	var total, done int64
	for _, td := range data.Data {
		total += int64(len(td))
	}
	if c.progress != nil {
		c.progress.Start(total)
		defer c.progress.Finish()
	}

	for _, table := range slices.Sorted(maps.Keys(data.Data)) {
		td := data.Data[table]
		physical := next.TableName(table)

		for _, target := range slices.Sorted(maps.Keys(td)) {
			record := td[target]
			if err := next.Dialect().SetValues(ctx, physical, target, record); err != nil {
				recErr := &storage.RecordError{
					Table:  table,
					Target: target,
					Values: record.Strings(),
					Cause:  err,
				}
				c.logger.ErrorContext(ctx, "failed to migrate record",
					"table", table,
					"target", target,
					"values", recErr.Values,
					"error", err,
				)
				res.Failed++
				res.RecordErrors = append(res.RecordErrors, recErr)
			} else {
				res.Migrated++
			}

			done++
			if c.progress != nil {
				c.progress.Update(done)
			}
		}
	}
}

func (c *Coordinator) finish(ctx context.Context, res *Result, start time.Time, result string) {
	res.Duration = time.Since(start)
	c.metrics.RecordMigration(result, res.Duration, res.Migrated, res.Failed)

	if result != ResultSuccess {
		return
	}
	if res.Failed > 0 {
		c.logger.WarnContext(ctx, "finished migrating data with failures",
			"from", res.From,
			"to", res.To,
			"migrated", res.Migrated,
			"failed", res.Failed,
			"duration", res.Duration,
		)
		return
	}
	c.logger.InfoContext(ctx, "finished migrating data",
		"from", res.From,
		"to", res.To,
		"tables", len(res.Tables),
		"migrated", res.Migrated,
		"duration", res.Duration,
	)
}
