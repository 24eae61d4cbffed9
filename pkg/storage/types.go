package storage

import (
	"database/sql"
	"maps"
	"slices"
	"strings"
)

// TargetColumn is the primary key column of every table. It holds the
// owner of a row: an entity UUID, a player name, a guild id.
const TargetColumn = "target"

// Value is a column value that may be absent. An absent value (Valid ==
// false) is distinct from the empty string.
type Value = sql.NullString

// Some returns a present value.
func Some(s string) Value {
	return Value{String: s, Valid: true}
}

// None returns an absent value.
func None() Value {
	return Value{}
}

// Record maps column names to values for one target.
type Record map[string]Value

// Strings returns the present values of the record. Absent values are
// omitted.
func (r Record) Strings() map[string]string {
	out := make(map[string]string, len(r))
	for k, v := range r {
		if v.Valid {
			out[k] = v.String
		}
	}
	return out
}

// RecordOf builds a record of present values.
func RecordOf(values map[string]string) Record {
	r := make(Record, len(values))
	for k, v := range values {
		r[k] = Some(v)
	}
	return r
}

// TableData maps targets to their records.
type TableData map[string]Record

// Schema maps table names to the columns that must exist in them. A
// normalized schema has lower-case names, sorted columns without
// duplicates, and never lists TargetColumn.
type Schema map[string][]string

// NewSchema normalizes a declared table/column map.
func NewSchema(tables map[string][]string) Schema {
	s := make(Schema, len(tables))
	for table, columns := range tables {
		s.Add(table, columns...)
	}
	return s
}

// Add declares a table and merges columns into it.
func (s Schema) Add(table string, columns ...string) {
	table = strings.ToLower(strings.TrimSpace(table))
	if table == "" {
		return
	}

	merged := s[table]
	for _, c := range columns {
		c = NormalizeColumn(c)
		if c == "" || c == TargetColumn || slices.Contains(merged, c) {
			continue
		}
		merged = append(merged, c)
	}
	slices.Sort(merged)
	s[table] = merged
}

// Merge adds every table and column of other.
func (s Schema) Merge(other Schema) {
	for table, columns := range other {
		s.Add(table, columns...)
	}
}

// Tables returns the table names in sorted order.
func (s Schema) Tables() []string {
	return slices.Sorted(maps.Keys(s))
}

// NormalizeColumn lower-cases and trims a column name.
func NormalizeColumn(column string) string {
	return strings.ToLower(strings.TrimSpace(column))
}

// MigrationData is the snapshot extracted from a source backend. Table
// names are logical (prefix stripped).
type MigrationData struct {
	// Columns lists, per table, every column seen in the source.
	Columns map[string]map[string]struct{}

	// Data holds, per table, the records keyed by target.
	Data map[string]TableData
}

// NewMigrationData returns an empty snapshot.
func NewMigrationData() *MigrationData {
	return &MigrationData{
		Columns: make(map[string]map[string]struct{}),
		Data:    make(map[string]TableData),
	}
}

// Add merges the records of one table into the snapshot.
func (m *MigrationData) Add(table string, data TableData) {
	cols, ok := m.Columns[table]
	if !ok {
		cols = make(map[string]struct{})
		m.Columns[table] = cols
	}
	td, ok := m.Data[table]
	if !ok {
		td = make(TableData, len(data))
		m.Data[table] = td
	}

	for target, record := range data {
		existing, ok := td[target]
		if !ok {
			existing = make(Record, len(record))
			td[target] = existing
		}
		for column, value := range record {
			column = NormalizeColumn(column)
			if column == TargetColumn {
				continue
			}
			cols[column] = struct{}{}
			existing[column] = value
		}
	}
}

// Schema returns the tables and columns seen in the snapshot.
func (m *MigrationData) Schema() Schema {
	s := make(Schema, len(m.Columns))
	for table, cols := range m.Columns {
		s.Add(table, slices.Collect(maps.Keys(cols))...)
	}
	return s
}

// RecordCount returns the number of (table, target) records.
func (m *MigrationData) RecordCount() int {
	n := 0
	for _, td := range m.Data {
		n += len(td)
	}
	return n
}

// Empty reports whether the snapshot holds no records.
func (m *MigrationData) Empty() bool {
	return m.RecordCount() == 0
}
