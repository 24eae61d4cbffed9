package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"mercator-hq/datastore/pkg/storage"
	"mercator-hq/datastore/pkg/telemetry/metrics"
)

// Options configures a Cache.
type Options struct {
	// Logger is the base logger (defaults to slog.Default()).
	Logger *slog.Logger

	// Metrics receives hit, miss and flush measurements. May be nil.
	Metrics *metrics.Collector
}

type cellKey struct {
	table, target, column string
}

type rowKey struct {
	table, target string
}

// Cache is a write-coalescing overlay in front of a storage.Manager.
// Writes land in memory immediately and reach the backend on Flush, one
// SetValues call per (table, target). Table names are logical.
//
// Cache is safe for concurrent use.
type Cache struct {
	logger  *slog.Logger
	metrics *metrics.Collector

	// switchMu is held exclusively while the backend is replaced and
	// shared by every operation that reaches the backend.
	switchMu sync.RWMutex

	// flushMu serializes flushes.
	flushMu sync.Mutex

	mu      sync.Mutex
	manager *storage.Manager
	entries map[cellKey]storage.Value
	dirty   map[rowKey]map[string]struct{}
}

// New returns an empty cache over m.
func New(m *storage.Manager, opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		logger:  logger.With("component", "storage.cache"),
		metrics: opts.Metrics,
		manager: m,
		entries: make(map[cellKey]storage.Value),
		dirty:   make(map[rowKey]map[string]struct{}),
	}
}

// Manager returns the backend the cache currently writes to.
func (c *Cache) Manager() *storage.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager
}

func key(table, target, column string) cellKey {
	return cellKey{
		table:  strings.ToLower(table),
		target: target,
		column: storage.NormalizeColumn(column),
	}
}

// Get returns a cell. Cached cells, including cached absence, are served
// from memory; others are read from the backend and cached.
func (c *Cache) Get(ctx context.Context, table, target, column string) (storage.Value, error) {
	k := key(table, target, column)

	c.mu.Lock()
	v, ok := c.entries[k]
	c.mu.Unlock()

	if ok {
		c.metrics.RecordCacheHit(k.table)
		return v, nil
	}
	c.metrics.RecordCacheMiss(k.table)

	// the manager is read under switchMu so a read queued behind Replace
	// goes to the new backend
	c.switchMu.RLock()
	m := c.Manager()
	v, err := m.Dialect().GetValue(ctx, m.TableName(k.table), k.target, k.column)
	c.switchMu.RUnlock()
	if err != nil {
		return storage.None(), err
	}

	c.mu.Lock()
	// a write may have landed while the backend was read
	if current, ok := c.entries[k]; ok {
		v = current
	} else {
		c.entries[k] = v
	}
	c.mu.Unlock()

	return v, nil
}

// Set stores a value and marks it dirty.
func (c *Cache) Set(table, target, column, value string) {
	c.put(table, target, storage.Record{column: storage.Some(value)})
}

// SetAll stores several values of one target and marks them dirty.
func (c *Cache) SetAll(table, target string, values map[string]string) {
	c.put(table, target, storage.RecordOf(values))
}

// Remove makes a value absent and marks it dirty.
func (c *Cache) Remove(table, target, column string) {
	c.put(table, target, storage.Record{column: storage.None()})
}

func (c *Cache) put(table, target string, values storage.Record) {
	if len(values) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for column, v := range values {
		k := key(table, target, column)
		if k.column == "" || k.column == storage.TargetColumn {
			continue
		}
		c.entries[k] = v

		row := rowKey{table: k.table, target: k.target}
		cols, ok := c.dirty[row]
		if !ok {
			cols = make(map[string]struct{})
			c.dirty[row] = cols
		}
		cols[k.column] = struct{}{}
	}
	c.metrics.SetDirtyCells(c.dirtyCellsLocked())
}

// Invalidate drops cached values of one target, dirty or not. Callers
// that write to the backend directly use it so that a later flush does
// not overwrite their write with an older cached value.
func (c *Cache) Invalidate(table, target string, columns ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := rowKey{table: strings.ToLower(table), target: target}
	for _, column := range columns {
		k := key(table, target, column)
		delete(c.entries, k)
		if cols, ok := c.dirty[row]; ok {
			delete(cols, k.column)
			if len(cols) == 0 {
				delete(c.dirty, row)
			}
		}
	}
	c.metrics.SetDirtyCells(c.dirtyCellsLocked())
}

// DirtyCells returns the number of values awaiting a flush.
func (c *Cache) DirtyCells() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirtyCellsLocked()
}

func (c *Cache) dirtyCellsLocked() int {
	n := 0
	for _, cols := range c.dirty {
		n += len(cols)
	}
	return n
}

// WithManager runs fn with the current backend. The backend is not
// replaced while fn runs.
func (c *Cache) WithManager(fn func(m *storage.Manager) error) error {
	c.switchMu.RLock()
	defer c.switchMu.RUnlock()
	return fn(c.Manager())
}

// Flush writes every dirty target to the backend. The dirty set is
// swapped out first, so writes made during the flush are kept for the
// next one. Targets that fail stay dirty unless they were written again
// in the meantime. The failures are returned joined.
func (c *Cache) Flush(ctx context.Context) error {
	c.switchMu.RLock()
	defer c.switchMu.RUnlock()
	return c.flush(ctx, nil)
}

// FlushTarget writes the dirty values of one target.
func (c *Cache) FlushTarget(ctx context.Context, table, target string) error {
	c.switchMu.RLock()
	defer c.switchMu.RUnlock()
	row := rowKey{table: strings.ToLower(table), target: target}
	return c.flush(ctx, &row)
}

type pending struct {
	row    rowKey
	record storage.Record
}

// flush writes the dirty rows, or only row when it is not nil. Callers
// hold switchMu.
func (c *Cache) flush(ctx context.Context, only *rowKey) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	start := time.Now()

	c.mu.Lock()
	m := c.manager
	batch := c.takeDirtyLocked(only)
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var errs []error
	var failed []pending
	for _, p := range batch {
		err := m.Dialect().SetValues(ctx, m.TableName(p.row.table), p.row.target, p.record)
		if err != nil {
			recErr := &storage.RecordError{
				Table:  p.row.table,
				Target: p.row.target,
				Values: p.record.Strings(),
				Cause:  err,
			}
			c.logger.Error("failed to flush record",
				"table", p.row.table,
				"target", p.row.target,
				"values", recErr.Values,
				"error", err,
			)
			errs = append(errs, recErr)
			failed = append(failed, p)
		}
	}

	if len(failed) > 0 {
		c.mu.Lock()
		c.remarkLocked(failed)
		c.mu.Unlock()
	}

	flushed := len(batch) - len(failed)
	c.metrics.RecordFlush(time.Since(start), flushed, len(failed))
	c.metrics.SetDirtyCells(c.DirtyCells())

	c.logger.Debug("cache flushed",
		"records", flushed,
		"failed", len(failed),
		"duration", time.Since(start),
	)

	if len(errs) > 0 {
		return fmt.Errorf("flush failed for %d of %d records: %w", len(failed), len(batch), errors.Join(errs...))
	}
	return nil
}

// takeDirtyLocked removes dirty rows from the dirty set and returns them
// with their current values, in a stable order.
func (c *Cache) takeDirtyLocked(only *rowKey) []pending {
	var rows []rowKey
	if only != nil {
		if _, ok := c.dirty[*only]; ok {
			rows = []rowKey{*only}
		}
	} else {
		rows = make([]rowKey, 0, len(c.dirty))
		for row := range c.dirty {
			rows = append(rows, row)
		}
	}

	slices.SortFunc(rows, func(a, b rowKey) int {
		if n := strings.Compare(a.table, b.table); n != 0 {
			return n
		}
		return strings.Compare(a.target, b.target)
	})

	batch := make([]pending, 0, len(rows))
	for _, row := range rows {
		cols := c.dirty[row]
		delete(c.dirty, row)

		record := make(storage.Record, len(cols))
		for column := range cols {
			record[column] = c.entries[cellKey{table: row.table, target: row.target, column: column}]
		}
		batch = append(batch, pending{row: row, record: record})
	}
	return batch
}

// remarkLocked puts failed cells back into the dirty set. Cells written
// again since they were taken are already dirty with a newer value.
func (c *Cache) remarkLocked(failed []pending) {
	for _, p := range failed {
		cols, ok := c.dirty[p.row]
		if !ok {
			cols = make(map[string]struct{}, len(p.record))
			c.dirty[p.row] = cols
		}
		for column := range p.record {
			cols[column] = struct{}{}
		}
	}
}

// Replace swaps the backend. Flushing is paused, dirty values are flushed
// to the current backend, and the manager returned by fn becomes current.
// When fn fails the current backend is kept. Values that could not be
// flushed to the old backend stay dirty and go to the new one.
func (c *Cache) Replace(ctx context.Context, fn func(ctx context.Context, current *storage.Manager) (*storage.Manager, error)) error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	if err := c.flush(ctx, nil); err != nil {
		c.logger.Warn("flush before backend switch failed, values stay dirty", "error", err)
	}

	current := c.Manager()
	next, err := fn(ctx, current)
	if err != nil {
		return err
	}
	if next == nil || next == current {
		return nil
	}

	c.mu.Lock()
	c.manager = next
	c.mu.Unlock()

	c.logger.Info("cache switched storage backend",
		"from", current.Method(),
		"to", next.Method(),
	)
	return nil
}

// Close closes the current backend without flushing.
func (c *Cache) Close() error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	return c.Manager().Close()
}
