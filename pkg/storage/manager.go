package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"mercator-hq/datastore/pkg/config"
)

// Manager owns one backend connection: it resolves the configured method,
// opens the dialect through the registry and provisions the declared
// schema. All table names handed to a Manager are logical; TableName maps
// them to physical names.
type Manager struct {
	cfg     *config.StorageConfig
	method  Method
	dialect Dialect
	logger  *slog.Logger

	mu     sync.RWMutex
	schema Schema

	closeOnce sync.Once
	closeErr  error
}

type managerOptions struct {
	registry *Registry
	logger   *slog.Logger
	recorder MetricsRecorder
}

// Option configures NewManager.
type Option func(*managerOptions)

// WithRegistry sets the registry used to open the backend. It is required
// unless the caller only uses methods registered by the caller itself.
func WithRegistry(r *Registry) Option {
	return func(o *managerOptions) { o.registry = r }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *managerOptions) { o.logger = l }
}

// WithMetrics sets the recorder for backend operation metrics.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *managerOptions) { o.recorder = m }
}

// NewManager opens the backend described by cfg and provisions schema on
// it. Failing to open the backend returns a *ConnectionError. Schema
// failures are logged per table and column and do not fail construction;
// use ApplySchema to inspect them.
func NewManager(ctx context.Context, cfg *config.StorageConfig, schema Schema, opts ...Option) (*Manager, error) {
	o := managerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.registry == nil {
		return nil, errors.New("storage: no dialect registry configured")
	}

	logger := o.logger.With("component", "storage.manager")
	method := ResolveMethod(cfg, logger)

	dialect, err := o.registry.Open(ctx, FactoryOptions{
		Method: method,
		Config: cfg,
		Logger: o.logger.With("component", "storage.dialect", "method", string(method)),
	})
	if err != nil {
		var connErr *ConnectionError
		if !errors.As(err, &connErr) {
			connErr = NewConnectionError(method, "", cfg.RemoteConnection.Properties, err)
		}
		logger.Error("failed to open storage backend", "method", method, "error", connErr)
		return nil, connErr
	}

	m := &Manager{
		cfg:     cfg,
		method:  method,
		dialect: Normalize(dialect, o.recorder),
		logger:  logger,
		schema:  make(Schema),
	}

	logger.Info("storage backend opened", "method", method)

	_ = m.ApplySchema(ctx, schema)

	return m, nil
}

// Method returns the method in use after fallbacks.
func (m *Manager) Method() Method {
	return m.method
}

// Config returns the storage configuration the manager was opened with.
func (m *Manager) Config() *config.StorageConfig {
	return m.cfg
}

// Dialect returns the normalized backend.
func (m *Manager) Dialect() Dialect {
	return m.dialect
}

// Schema returns a copy of every table and column provisioned so far.
func (m *Manager) Schema() Schema {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(Schema, len(m.schema))
	out.Merge(m.schema)
	return out
}

// TableName maps a logical table name to its physical name. Remote
// backends share a database with other deployments, so their tables get
// the configured prefix.
func (m *Manager) TableName(logical string) string {
	name := strings.ToLower(logical)
	if m.method.IsRemote() {
		return m.cfg.RemoteConnection.TablePrefix + name
	}
	return name
}

// LogicalName maps a physical table name back to its logical name. It
// reports false for tables that do not carry this deployment's prefix.
func (m *Manager) LogicalName(physical string) (string, bool) {
	name := strings.ToLower(physical)
	if !m.method.IsRemote() {
		return name, true
	}
	prefix := strings.ToLower(m.cfg.RemoteConnection.TablePrefix)
	if prefix == "" {
		return name, true
	}
	if !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(name, prefix), true
}

// ApplySchema creates every table of schema and then every column, in
// sorted order. It is idempotent. Each failure is logged; the joined
// *SchemaError values are returned and the remaining tables and columns
// are still attempted.
func (m *Manager) ApplySchema(ctx context.Context, schema Schema) error {
	var errs []error

	for _, table := range schema.Tables() {
		physical := m.TableName(table)

		if err := m.dialect.CreateTable(ctx, physical); err != nil {
			m.logger.Error("failed to create table", "table", physical, "error", err)
			errs = append(errs, err)
			continue
		}

		var created []string
		for _, column := range schema[table] {
			ok, err := m.dialect.CreateColumn(ctx, physical, column)
			if err != nil {
				m.logger.Error("failed to create column",
					"table", physical,
					"column", column,
					"error", err,
				)
				errs = append(errs, err)
				continue
			}
			if ok {
				created = append(created, column)
			}
		}

		m.mu.Lock()
		m.schema.Add(table, schema[table]...)
		m.mu.Unlock()

		if len(created) > 0 {
			m.logger.Debug("schema provisioned", "table", physical, "columns", created)
		}
	}

	return errors.Join(errs...)
}

// Close closes the backend. It is safe to call more than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		if err := m.dialect.Close(); err != nil {
			m.closeErr = fmt.Errorf("failed to close %s storage: %w", m.method, err)
			m.logger.Error("failed to close storage backend", "error", err)
			return
		}
		m.logger.Info("storage backend closed", "method", m.method)
	})
	return m.closeErr
}
