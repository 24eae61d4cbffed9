package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"mercator-hq/datastore/pkg/config"
	"mercator-hq/datastore/pkg/storage"
	"mercator-hq/datastore/pkg/storage/cache"
	"mercator-hq/datastore/pkg/storage/migration"
)

// ErrNotEnabled is returned by every operation of a disabled Service.
var ErrNotEnabled = errors.New("data storage is not enabled, set data.enabled to true in the configuration")

// EntitiesTable is the table EntityData reads and writes.
const EntitiesTable = config.DefaultEntitiesTable

// Options configures a Service.
type Options struct {
	// Enabled turns the service on. A disabled service holds no backend.
	Enabled bool

	// UseCacheDefault is the cache mode of Get, Set, SetAll and Remove
	// and of new StringData values.
	UseCacheDefault bool

	// Cache is the cache section of storage.yml.
	Cache config.CacheConfig

	Logger *slog.Logger
}

// Service is the key/value surface of the data store. Values are
// addressed by table, target and column; table and column names are
// case-insensitive.
type Service struct {
	cache       *cache.Cache
	opts        Options
	logger      *slog.Logger
	coordinator *migration.Coordinator
	migrated    *migration.Result
	migrateErr  error

	mu        sync.Mutex
	scheduler *cache.Scheduler
	startCtx  context.Context
	closed    bool
}

// NewService creates a service over c. c may be nil when opts.Enabled is
// false.
func NewService(c *cache.Cache, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		opts.Enabled = false
	}
	return &Service{
		cache:  c,
		opts:   opts,
		logger: logger.With("component", "data"),
	}
}

// OpenMigration returns the result and error of the migration Open ran.
// The result is nil when no storage-new.yml was pending.
func (s *Service) OpenMigration() (*migration.Result, error) {
	return s.migrated, s.migrateErr
}

// IsEnabled reports whether the service has a backend.
func (s *Service) IsEnabled() bool {
	return s != nil && s.opts.Enabled
}

// Cache returns the cache in front of the backend, or nil when disabled.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// Coordinator returns the migration coordinator set up by Open, if any.
func (s *Service) Coordinator() *migration.Coordinator {
	return s.coordinator
}

// Manager returns the current backend, or nil when disabled.
func (s *Service) Manager() *storage.Manager {
	if !s.IsEnabled() {
		return nil
	}
	return s.cache.Manager()
}

func (s *Service) cached(useCache bool) bool {
	return useCache && s.cacheConfig().Enabled
}

func (s *Service) cacheConfig() config.CacheConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.Cache
}

// Get returns a value using the default cache mode. Backend failures are
// logged and reported as not found.
func (s *Service) Get(ctx context.Context, table, target, column string) (string, bool, error) {
	return s.get(ctx, table, target, column, s.opts.UseCacheDefault)
}

// Set stores a value using the default cache mode.
func (s *Service) Set(ctx context.Context, table, target, column, value string) error {
	return s.setAll(ctx, table, target, map[string]string{column: value}, s.opts.UseCacheDefault)
}

// SetAll stores several values of one target using the default cache
// mode.
func (s *Service) SetAll(ctx context.Context, table, target string, values map[string]string) error {
	return s.setAll(ctx, table, target, values, s.opts.UseCacheDefault)
}

// Remove makes a value absent using the default cache mode.
func (s *Service) Remove(ctx context.Context, table, target, column string) error {
	return s.remove(ctx, table, target, column, s.opts.UseCacheDefault)
}

func (s *Service) get(ctx context.Context, table, target, column string, useCache bool) (string, bool, error) {
	if !s.IsEnabled() {
		return "", false, ErrNotEnabled
	}

	var v storage.Value
	var err error
	if s.cached(useCache) {
		v, err = s.cache.Get(ctx, table, target, column)
	} else {
		err = s.cache.WithManager(func(m *storage.Manager) error {
			var gerr error
			v, gerr = m.Dialect().GetValue(ctx, m.TableName(table), target, column)
			return gerr
		})
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get value",
			"table", table,
			"target", target,
			"column", column,
			"error", err,
		)
		return "", false, nil
	}
	return v.String, v.Valid, nil
}

func (s *Service) setAll(ctx context.Context, table, target string, values map[string]string, useCache bool) error {
	if !s.IsEnabled() {
		return ErrNotEnabled
	}
	if len(values) == 0 {
		return nil
	}

	if s.cached(useCache) {
		s.cache.SetAll(table, target, values)
		return nil
	}

	err := s.cache.WithManager(func(m *storage.Manager) error {
		return m.Dialect().SetValues(ctx, m.TableName(table), target, storage.RecordOf(values))
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to set values",
			"table", table,
			"target", target,
			"values", values,
			"error", err,
		)
		return err
	}

	columns := make([]string, 0, len(values))
	for c := range values {
		columns = append(columns, c)
	}
	s.cache.Invalidate(table, target, columns...)
	return nil
}

func (s *Service) remove(ctx context.Context, table, target, column string, useCache bool) error {
	if !s.IsEnabled() {
		return ErrNotEnabled
	}

	if s.cached(useCache) {
		s.cache.Remove(table, target, column)
		return nil
	}

	err := s.cache.WithManager(func(m *storage.Manager) error {
		return m.Dialect().RemoveValue(ctx, m.TableName(table), target, column)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to remove value",
			"table", table,
			"target", target,
			"column", column,
			"error", err,
		)
		return err
	}
	s.cache.Invalidate(table, target, column)
	return nil
}

// Dump returns every record of a table as stored in the backend, after
// flushing cached changes.
func (s *Service) Dump(ctx context.Context, table string) (storage.TableData, error) {
	if !s.IsEnabled() {
		return nil, ErrNotEnabled
	}
	if err := s.cache.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush before dump: %w", err)
	}

	var data storage.TableData
	err := s.cache.WithManager(func(m *storage.Manager) error {
		var err error
		data, err = m.Dialect().GetAllValues(ctx, m.TableName(table))
		return err
	})
	return data, err
}

// Tables lists the logical tables of the backend.
func (s *Service) Tables(ctx context.Context) ([]string, error) {
	if !s.IsEnabled() {
		return nil, ErrNotEnabled
	}

	var tables []string
	err := s.cache.WithManager(func(m *storage.Manager) error {
		physical, err := m.Dialect().Tables(ctx)
		if err != nil {
			return err
		}
		for _, t := range physical {
			if name, ok := m.LogicalName(t); ok {
				tables = append(tables, name)
			}
		}
		return nil
	})
	slices.Sort(tables)
	return tables, err
}

// Ping checks that the backend answers.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.Tables(ctx)
	return err
}

// Flush writes every cached change to the backend.
func (s *Service) Flush(ctx context.Context) error {
	if !s.IsEnabled() {
		return ErrNotEnabled
	}
	return s.cache.Flush(ctx)
}

// Start starts interval flushing when the cache saves on interval.
func (s *Service) Start(ctx context.Context) error {
	if !s.IsEnabled() {
		return ErrNotEnabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.startCtx = ctx

	cfg := s.opts.Cache
	if !cfg.Enabled || !cfg.SavesOn(config.SaveOnInterval) {
		return nil
	}
	if s.scheduler == nil {
		s.scheduler = cache.NewScheduler(s.cache, cfg.Interval, s.logger)
	}
	return s.scheduler.Start(ctx)
}

// ApplyCacheConfig replaces the cache settings of a running service. A
// live migration passes the cache section of the promoted storage file.
// Cached changes are flushed when the cache is turned off, and interval
// flushing is restarted with the new settings when Start was called.
func (s *Service) ApplyCacheConfig(ctx context.Context, cfg config.CacheConfig) error {
	if !s.IsEnabled() {
		return ErrNotEnabled
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	prev := s.opts.Cache
	s.opts.Cache = cfg
	scheduler := s.scheduler
	s.scheduler = nil
	startCtx := s.startCtx
	s.mu.Unlock()

	if scheduler != nil {
		scheduler.Stop()
	}

	var errs []error
	if prev.Enabled && !cfg.Enabled {
		if err := s.cache.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush on cache disable: %w", err))
		}
	}
	if startCtx != nil {
		if err := s.Start(startCtx); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.InfoContext(ctx, "applied cache settings",
		"enabled", cfg.Enabled,
		"save_on", cfg.SaveOn,
		"interval", cfg.Interval,
	)
	return errors.Join(errs...)
}

// Reload flushes the cache when it saves on reload.
func (s *Service) Reload(ctx context.Context) error {
	if !s.IsEnabled() {
		return ErrNotEnabled
	}
	if cfg := s.cacheConfig(); !cfg.Enabled || !cfg.SavesOn(config.SaveOnReload) {
		return nil
	}
	if err := s.cache.Flush(ctx); err != nil {
		return fmt.Errorf("flush on reload: %w", err)
	}
	return nil
}

// Close stops interval flushing, flushes the cache when it saves on
// disable and closes the backend. It is safe to call more than once.
func (s *Service) Close(ctx context.Context) error {
	if !s.IsEnabled() {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	scheduler := s.scheduler
	cfg := s.opts.Cache
	s.mu.Unlock()

	if scheduler != nil {
		scheduler.Stop()
	}

	var errs []error
	if cfg.Enabled && cfg.SavesOn(config.SaveOnDisable) {
		if err := s.cache.Flush(ctx); err != nil {
			s.logger.ErrorContext(ctx, "final flush failed, unsaved values are lost", "error", err)
			errs = append(errs, fmt.Errorf("final flush: %w", err))
		}
	}
	if err := s.cache.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
