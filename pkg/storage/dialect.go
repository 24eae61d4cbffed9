package storage

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"mercator-hq/datastore/pkg/config"
)

// Dialect is the contract every storage backend implements. Table names
// passed to a Dialect are physical names (prefix already applied).
//
// Implementations must be safe for concurrent use.
type Dialect interface {
	// Method returns the backend method.
	Method() Method

	// CreateTable creates a table with only the target column if it does
	// not exist.
	CreateTable(ctx context.Context, table string) error

	// CreateColumn adds a nullable text column if it does not exist. It
	// reports true when the column was created (or the engine cannot tell
	// because it creates columns natively with IF NOT EXISTS).
	CreateColumn(ctx context.Context, table, column string) (bool, error)

	// Tables lists the physical tables of the backend.
	Tables(ctx context.Context) ([]string, error)

	// GetValue returns the value of one cell. A missing row or an absent
	// value yields None and a nil error.
	GetValue(ctx context.Context, table, target, column string) (Value, error)

	// GetAllValues returns every record of a table. Tables without a
	// target column yield ErrNoTargetColumn.
	GetAllValues(ctx context.Context, table string) (TableData, error)

	// SetValue upserts one cell without touching the other columns of
	// the row.
	SetValue(ctx context.Context, table, target, column, value string) error

	// SetValues upserts several cells of one row atomically. Absent
	// values are stored as absent. An empty record is a no-op.
	SetValues(ctx context.Context, table, target string, values Record) error

	// RemoveValue makes one cell absent. The row is kept.
	RemoveValue(ctx context.Context, table, target, column string) error

	// Close releases the connection.
	Close() error
}

// FactoryOptions are handed to a Factory when a backend is opened.
type FactoryOptions struct {
	// Method is the resolved method. It matters for factories registered
	// under several methods.
	Method Method

	// Config is the storage configuration being opened.
	Config *config.StorageConfig

	// Logger is the component logger of the backend.
	Logger *slog.Logger
}

// Factory opens a backend.
type Factory func(ctx context.Context, opts FactoryOptions) (Dialect, error)

// MetricsRecorder receives per-operation measurements. *metrics.Collector
// implements it.
type MetricsRecorder interface {
	RecordOperation(method, operation, result string, duration time.Duration)
}

// Operation names used in errors and metrics.
const (
	OpCreateTable  = "create_table"
	OpCreateColumn = "create_column"
	OpTables       = "tables"
	OpGetValue     = "get_value"
	OpGetAllValues = "get_all_values"
	OpSetValue     = "set_value"
	OpSetValues    = "set_values"
	OpRemoveValue  = "remove_value"
)

// Normalize wraps a Dialect so that every column name is lower-cased
// before it reaches the backend, failures carry table, target and column
// context, and each call is measured. Operations after Close return
// ErrClosed.
func Normalize(d Dialect, recorder MetricsRecorder) Dialect {
	if n, ok := d.(*normalized); ok {
		return n
	}
	return &normalized{inner: d, recorder: recorder}
}

type normalized struct {
	inner    Dialect
	recorder MetricsRecorder
	closed   atomic.Bool
}

func (n *normalized) Method() Method {
	return n.inner.Method()
}

func (n *normalized) observe(op string, start time.Time, err error) {
	if n.recorder == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	n.recorder.RecordOperation(string(n.inner.Method()), op, result, time.Since(start))
}

func (n *normalized) opError(op, table, target, column string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{
		Method:    n.inner.Method(),
		Operation: op,
		Table:     table,
		Target:    target,
		Column:    column,
		Cause:     err,
	}
}

func (n *normalized) CreateTable(ctx context.Context, table string) error {
	if n.closed.Load() {
		return NewSchemaError(table, "", ErrClosed)
	}
	start := time.Now()
	err := n.inner.CreateTable(ctx, table)
	n.observe(OpCreateTable, start, err)
	if err != nil {
		return NewSchemaError(table, "", err)
	}
	return nil
}

func (n *normalized) CreateColumn(ctx context.Context, table, column string) (bool, error) {
	column = NormalizeColumn(column)
	if n.closed.Load() {
		return false, NewSchemaError(table, column, ErrClosed)
	}
	if column == TargetColumn {
		return false, nil
	}
	start := time.Now()
	created, err := n.inner.CreateColumn(ctx, table, column)
	n.observe(OpCreateColumn, start, err)
	if err != nil {
		return false, NewSchemaError(table, column, err)
	}
	return created, nil
}

func (n *normalized) Tables(ctx context.Context) ([]string, error) {
	if n.closed.Load() {
		return nil, n.opError(OpTables, "", "", "", ErrClosed)
	}
	start := time.Now()
	tables, err := n.inner.Tables(ctx)
	n.observe(OpTables, start, err)
	return tables, n.opError(OpTables, "", "", "", err)
}

func (n *normalized) GetValue(ctx context.Context, table, target, column string) (Value, error) {
	column = NormalizeColumn(column)
	if n.closed.Load() {
		return None(), n.opError(OpGetValue, table, target, column, ErrClosed)
	}
	start := time.Now()
	v, err := n.inner.GetValue(ctx, table, target, column)
	n.observe(OpGetValue, start, err)
	if err != nil {
		return None(), n.opError(OpGetValue, table, target, column, err)
	}
	return v, nil
}

func (n *normalized) GetAllValues(ctx context.Context, table string) (TableData, error) {
	if n.closed.Load() {
		return nil, n.opError(OpGetAllValues, table, "", "", ErrClosed)
	}
	start := time.Now()
	data, err := n.inner.GetAllValues(ctx, table)
	n.observe(OpGetAllValues, start, err)
	if err != nil {
		return nil, n.opError(OpGetAllValues, table, "", "", err)
	}

	out := make(TableData, len(data))
	for target, record := range data {
		normalizedRecord := make(Record, len(record))
		for column, value := range record {
			column = NormalizeColumn(column)
			if column == TargetColumn {
				continue
			}
			normalizedRecord[column] = value
		}
		out[target] = normalizedRecord
	}
	return out, nil
}

func (n *normalized) SetValue(ctx context.Context, table, target, column, value string) error {
	column = NormalizeColumn(column)
	if n.closed.Load() {
		return n.opError(OpSetValue, table, target, column, ErrClosed)
	}
	start := time.Now()
	err := n.inner.SetValue(ctx, table, target, column, value)
	n.observe(OpSetValue, start, err)
	return n.opError(OpSetValue, table, target, column, err)
}

func (n *normalized) SetValues(ctx context.Context, table, target string, values Record) error {
	if n.closed.Load() {
		return n.opError(OpSetValues, table, target, "", ErrClosed)
	}

	record := make(Record, len(values))
	for column, value := range values {
		column = NormalizeColumn(column)
		if column == "" || column == TargetColumn {
			continue
		}
		record[column] = value
	}
	if len(record) == 0 {
		return nil
	}

	start := time.Now()
	err := n.inner.SetValues(ctx, table, target, record)
	n.observe(OpSetValues, start, err)
	return n.opError(OpSetValues, table, target, "", err)
}

func (n *normalized) RemoveValue(ctx context.Context, table, target, column string) error {
	column = NormalizeColumn(column)
	if n.closed.Load() {
		return n.opError(OpRemoveValue, table, target, column, ErrClosed)
	}
	start := time.Now()
	err := n.inner.RemoveValue(ctx, table, target, column)
	n.observe(OpRemoveValue, start, err)
	return n.opError(OpRemoveValue, table, target, column, err)
}

func (n *normalized) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	return n.inner.Close()
}
