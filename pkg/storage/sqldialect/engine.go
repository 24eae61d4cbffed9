package sqldialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"mercator-hq/datastore/pkg/storage"
)

// engine implements storage.Dialect over database/sql. The engine-specific
// SQL comes from its syntax.
type engine struct {
	db     *sql.DB
	method storage.Method
	syntax syntax
	logger *slog.Logger
}

func newEngine(db *sql.DB, method storage.Method, s syntax, logger *slog.Logger) *engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &engine{db: db, method: method, syntax: s, logger: logger}
}

// Method implements storage.Dialect.
func (e *engine) Method() storage.Method {
	return e.method
}

// CreateTable implements storage.Dialect.
func (e *engine) CreateTable(ctx context.Context, table string) error {
	if _, err := e.db.ExecContext(ctx, e.syntax.createTable(table)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// CreateColumn implements storage.Dialect.
func (e *engine) CreateColumn(ctx context.Context, table, column string) (bool, error) {
	if !e.syntax.nativeAddIf {
		exists, err := e.hasColumn(ctx, table, column)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	if _, err := e.db.ExecContext(ctx, e.syntax.addColumn(table, column)); err != nil {
		return false, fmt.Errorf("add column: %w", err)
	}
	return true, nil
}

func (e *engine) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := e.db.QueryContext(ctx, e.syntax.columnInfo(e.syntax, table))
	if err != nil {
		return false, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return false, fmt.Errorf("list columns: %w", err)
	}

	fields := make([]sql.RawBytes, len(cols))
	dest := make([]any, len(cols))
	for i := range fields {
		dest[i] = &fields[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return false, fmt.Errorf("scan column info: %w", err)
		}
		if strings.EqualFold(string(fields[e.syntax.columnName]), column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Tables implements storage.Dialect.
func (e *engine) Tables(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, e.syntax.listTables)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetValue implements storage.Dialect.
func (e *engine) GetValue(ctx context.Context, table, target, column string) (storage.Value, error) {
	var v storage.Value
	err := e.db.QueryRowContext(ctx, e.syntax.selectValue(table, column), target).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.None(), nil
	}
	if err != nil {
		return storage.None(), fmt.Errorf("select value: %w", err)
	}
	return v, nil
}

// GetAllValues implements storage.Dialect.
func (e *engine) GetAllValues(ctx context.Context, table string) (storage.TableData, error) {
	rows, err := e.db.QueryContext(ctx, e.syntax.selectAll(table))
	if err != nil {
		return nil, fmt.Errorf("select all: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("select all: %w", err)
	}

	targetIdx := slices.IndexFunc(cols, func(c string) bool {
		return strings.EqualFold(c, storage.TargetColumn)
	})
	if targetIdx < 0 {
		return nil, storage.ErrNoTargetColumn
	}

	data := make(storage.TableData)
	values := make([]storage.Value, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		target := values[targetIdx]
		if !target.Valid {
			continue
		}

		record := make(storage.Record, len(cols)-1)
		for i, c := range cols {
			if i == targetIdx {
				continue
			}
			record[c] = values[i]
		}
		data[target.String] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return data, nil
}

// SetValue implements storage.Dialect.
func (e *engine) SetValue(ctx context.Context, table, target, column, value string) error {
	return e.SetValues(ctx, table, target, storage.Record{column: storage.Some(value)})
}

// SetValues implements storage.Dialect.
func (e *engine) SetValues(ctx context.Context, table, target string, record storage.Record) error {
	if len(record) == 0 {
		return nil
	}

	columns := slices.Sorted(maps.Keys(record))
	values := make([]storage.Value, len(columns))
	for i, c := range columns {
		values[i] = record[c]
	}

	query := e.syntax.upsertStatement(table, columns)
	if _, err := e.db.ExecContext(ctx, query, e.syntax.upsertArgs(target, values)...); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// RemoveValue implements storage.Dialect.
func (e *engine) RemoveValue(ctx context.Context, table, target, column string) error {
	if _, err := e.db.ExecContext(ctx, e.syntax.clearValue(table, column), target); err != nil {
		return fmt.Errorf("clear value: %w", err)
	}
	return nil
}

// Close implements storage.Dialect.
func (e *engine) Close() error {
	return e.db.Close()
}
