package sqldialect

import (
	"fmt"
	"strconv"
	"strings"

	"mercator-hq/datastore/pkg/storage"
)

type upsertStyle int

const (
	// INSERT ... ON CONFLICT (target) DO UPDATE SET c = excluded.c
	upsertExcluded upsertStyle = iota
	// INSERT ... ON CONFLICT (target) DO UPDATE SET c = $n, values bound twice
	upsertOnConflictRebind
	// INSERT ... ON DUPLICATE KEY UPDATE c = ?, values bound twice
	upsertOnDuplicateKey
)

// syntax holds the SQL differences between engines. Statements are built
// by pure functions of a syntax so that each engine's SQL can be checked
// without a server.
type syntax struct {
	quote       byte
	numbered    bool // $1, $2 placeholders instead of ?
	keyType     string
	columnType  string
	upsert      upsertStyle
	nativeAddIf bool // ALTER TABLE ... ADD COLUMN IF NOT EXISTS

	// listTables returns one table name per row.
	listTables string

	// columnInfo lists the columns of a table when the engine has no
	// native IF NOT EXISTS for columns. columnName is the index of the
	// column-name field in its result.
	columnInfo func(s syntax, table string) string
	columnName int
}

var (
	sqliteSyntax = syntax{
		quote:      '"',
		keyType:    "TEXT",
		columnType: "TEXT",
		upsert:     upsertExcluded,
		listTables: "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
		columnInfo: func(s syntax, table string) string {
			return "PRAGMA table_info(" + s.ident(table) + ")"
		},
		columnName: 1,
	}

	mysqlSyntax = syntax{
		quote:      '`',
		keyType:    "VARCHAR(255)",
		columnType: "TEXT",
		upsert:     upsertOnDuplicateKey,
		listTables: "SHOW TABLES",
		columnInfo: func(s syntax, table string) string {
			return "SHOW COLUMNS FROM " + s.ident(table)
		},
		columnName: 0,
	}

	mariadbSyntax = syntax{
		quote:       '`',
		keyType:     "VARCHAR(255)",
		columnType:  "TEXT",
		upsert:      upsertOnDuplicateKey,
		nativeAddIf: true,
		listTables:  "SHOW TABLES",
	}

	postgresSyntax = syntax{
		quote:       '"',
		numbered:    true,
		keyType:     "TEXT",
		columnType:  "TEXT",
		upsert:      upsertOnConflictRebind,
		nativeAddIf: true,
		listTables:  "SELECT tablename FROM pg_tables WHERE schemaname = current_schema() ORDER BY tablename",
	}
)

// ident quotes an identifier, doubling embedded quote characters.
func (s syntax) ident(name string) string {
	q := string(s.quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// param returns the n-th (1-based) placeholder.
func (s syntax) param(n int) string {
	if s.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s syntax) createTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s %s PRIMARY KEY)",
		s.ident(table), s.ident(storage.TargetColumn), s.keyType)
}

func (s syntax) addColumn(table, column string) string {
	ifNotExists := ""
	if s.nativeAddIf {
		ifNotExists = "IF NOT EXISTS "
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s%s %s",
		s.ident(table), ifNotExists, s.ident(column), s.columnType)
}

func (s syntax) selectValue(table, column string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		s.ident(column), s.ident(table), s.ident(storage.TargetColumn), s.param(1))
}

func (s syntax) selectAll(table string) string {
	return "SELECT * FROM " + s.ident(table)
}

func (s syntax) clearValue(table, column string) string {
	return fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = %s",
		s.ident(table), s.ident(column), s.ident(storage.TargetColumn), s.param(1))
}

// upsertStatement folds columns into one INSERT with an update clause.
// Columns must be non-empty and in the order their values will be bound.
func (s syntax) upsertStatement(table string, columns []string) string {
	names := make([]string, 0, len(columns)+1)
	params := make([]string, 0, len(columns)+1)
	updates := make([]string, 0, len(columns))

	names = append(names, s.ident(storage.TargetColumn))
	params = append(params, s.param(1))
	for i, c := range columns {
		names = append(names, s.ident(c))
		params = append(params, s.param(i+2))
	}

	for i, c := range columns {
		switch s.upsert {
		case upsertExcluded:
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", s.ident(c), s.ident(c)))
		default:
			updates = append(updates, fmt.Sprintf("%s = %s", s.ident(c), s.param(len(columns)+2+i)))
		}
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.ident(table), strings.Join(names, ", "), strings.Join(params, ", "))

	switch s.upsert {
	case upsertOnDuplicateKey:
		return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
	default:
		return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s",
			insert, s.ident(storage.TargetColumn), strings.Join(updates, ", "))
	}
}

// upsertArgs binds target then every value, and every value a second time
// for engines whose update clause cannot reference the inserted row.
func (s syntax) upsertArgs(target string, values []storage.Value) []any {
	args := make([]any, 0, 1+2*len(values))
	args = append(args, target)
	for _, v := range values {
		args = append(args, v)
	}
	if s.upsert != upsertExcluded {
		for _, v := range values {
			args = append(args, v)
		}
	}
	return args
}
