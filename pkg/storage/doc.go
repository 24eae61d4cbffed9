// Package storage defines the backend contract of the data store and the
// Manager that owns one backend connection.
//
// Data is a set of tables. Every table has a target column (the owner of
// a row, such as an entity UUID) and any number of nullable text columns.
// Reads and writes address single cells (table, target, column) or whole
// rows.
//
// # Backends
//
// A Dialect implements the contract for one engine. The implementations
// live in sub-packages:
//
//   - sqldialect: sqlite, sqlite3, mysql, mariadb, postgresql
//   - filedialect: json, yaml
//
// dialects.NewRegistry wires all of them into a Registry. Every dialect
// is wrapped by Normalize, which lower-cases column names, attaches
// context to errors and records metrics, so the engines themselves never
// deal with case.
//
// # Manager
//
//	registry := dialects.NewRegistry()
//	m, err := storage.NewManager(ctx, storageCfg, storage.NewSchema(cfg.Data.Tables),
//	    storage.WithRegistry(registry),
//	    storage.WithLogger(logger),
//	)
//
// Remote methods share a database with other deployments, so the Manager
// prefixes their physical table names with the configured table prefix.
package storage
