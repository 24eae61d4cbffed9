// Package storagetest provides an in-memory Dialect for tests of packages
// built on top of storage.
package storagetest

import (
	"context"
	"maps"
	"slices"
	"sync"

	"mercator-hq/datastore/pkg/config"
	"mercator-hq/datastore/pkg/storage"
)

// Memory is an in-memory storage.Dialect. It keeps tables, columns and
// rows like a SQL backend, counts writes, and can be told to fail.
//
// Memory is thread-safe.
type Memory struct {
	method storage.Method

	mu      sync.RWMutex
	tables  map[string]map[string]struct{}       // table -> columns
	rows    map[string]map[string]storage.Record // table -> target -> record
	writes  int
	closed  bool
	failSet func(table, target string, values storage.Record) error
	failGet func(table string) error
}

// NewMemory returns an empty backend reporting the given method.
func NewMemory(method storage.Method) *Memory {
	return &Memory{
		method: method,
		tables: make(map[string]map[string]struct{}),
		rows:   make(map[string]map[string]storage.Record),
	}
}

// Factory returns a storage.Factory that always hands out m.
func (m *Memory) Factory() storage.Factory {
	return func(context.Context, storage.FactoryOptions) (storage.Dialect, error) {
		return m, nil
	}
}

// Registry returns a registry with every built-in method mapped to m.
func (m *Memory) Registry() *storage.Registry {
	r := storage.NewRegistry()
	for _, method := range storage.Methods() {
		r.Register(method, m.Factory())
	}
	return r
}

// Config returns a storage configuration for m's method. Remote methods
// get a host so that they do not fall back to the default method.
func (m *Memory) Config() *config.StorageConfig {
	cfg := config.DefaultStorageConfig("test")
	cfg.Method = string(m.method)
	if m.method.IsRemote() {
		cfg.RemoteConnection.Host = "localhost"
	}
	return cfg
}

// FailSetValues makes SetValues and SetValue fail when fn returns an error.
func (m *Memory) FailSetValues(fn func(table, target string, values storage.Record) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSet = fn
}

// FailGetAllValues makes GetAllValues fail when fn returns an error.
func (m *Memory) FailGetAllValues(fn func(table string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet = fn
}

// Writes returns the number of successful SetValue, SetValues and
// RemoveValue calls.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Columns returns the columns of a table in sorted order.
func (m *Memory) Columns(table string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.tables[table]))
}

// Put stores a record directly, creating the table and columns.
func (m *Memory) Put(table, target string, values map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureTable(table)
	for k := range values {
		m.tables[table][k] = struct{}{}
	}
	m.upsert(table, target, storage.RecordOf(values))
}

// Method implements storage.Dialect.
func (m *Memory) Method() storage.Method {
	return m.method
}

// CreateTable implements storage.Dialect.
func (m *Memory) CreateTable(_ context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureTable(table)
	return nil
}

// CreateColumn implements storage.Dialect.
func (m *Memory) CreateColumn(_ context.Context, table, column string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureTable(table)
	if _, ok := m.tables[table][column]; ok {
		return false, nil
	}
	m.tables[table][column] = struct{}{}
	return true, nil
}

// Tables implements storage.Dialect.
func (m *Memory) Tables(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.tables)), nil
}

// GetValue implements storage.Dialect.
func (m *Memory) GetValue(_ context.Context, table, target, column string) (storage.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows[table][target][column], nil
}

// GetAllValues implements storage.Dialect.
func (m *Memory) GetAllValues(_ context.Context, table string) (storage.TableData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failGet != nil {
		if err := m.failGet(table); err != nil {
			return nil, err
		}
	}
	out := make(storage.TableData, len(m.rows[table]))
	for target, record := range m.rows[table] {
		out[target] = maps.Clone(record)
	}
	return out, nil
}

// SetValue implements storage.Dialect.
func (m *Memory) SetValue(ctx context.Context, table, target, column, value string) error {
	return m.SetValues(ctx, table, target, storage.Record{column: storage.Some(value)})
}

// SetValues implements storage.Dialect.
func (m *Memory) SetValues(_ context.Context, table, target string, values storage.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		if err := m.failSet(table, target, values); err != nil {
			return err
		}
	}
	m.ensureTable(table)
	m.upsert(table, target, values)
	m.writes++
	return nil
}

// RemoveValue implements storage.Dialect.
func (m *Memory) RemoveValue(_ context.Context, table, target, column string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.rows[table][target]; ok {
		record[column] = storage.None()
	}
	m.writes++
	return nil
}

// Close implements storage.Dialect.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) ensureTable(table string) {
	if _, ok := m.tables[table]; !ok {
		m.tables[table] = make(map[string]struct{})
		m.rows[table] = make(map[string]storage.Record)
	}
}

func (m *Memory) upsert(table, target string, values storage.Record) {
	record, ok := m.rows[table][target]
	if !ok {
		record = make(storage.Record, len(values))
		m.rows[table][target] = record
	}
	for k, v := range values {
		m.tables[table][k] = struct{}{}
		record[k] = v
	}
}
