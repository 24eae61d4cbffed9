// Package sqldialect implements storage.Dialect for SQL engines.
//
// One engine type runs every SQL backend; the differences between SQLite,
// MySQL, MariaDB and PostgreSQL (identifier quoting, placeholders, upsert
// form, column discovery) live in a syntax value. Drivers:
//
//   - sqlite:     modernc.org/sqlite (pure Go)
//   - sqlite3:    github.com/mattn/go-sqlite3 (cgo)
//   - mysql:      github.com/go-sql-driver/mysql
//   - mariadb:    github.com/go-sql-driver/mysql
//   - postgresql: github.com/jackc/pgx/v5/stdlib
//
// Every table has a text primary key named target and nullable text
// columns. Writes to one row are a single upsert statement, so columns not
// named in a write keep their values.
package sqldialect
