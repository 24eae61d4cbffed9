// Package dialects assembles the registry of built-in storage backends.
package dialects

import (
	"mercator-hq/datastore/pkg/storage"
	"mercator-hq/datastore/pkg/storage/filedialect"
	"mercator-hq/datastore/pkg/storage/sqldialect"
)

// NewRegistry returns a registry with every built-in method.
func NewRegistry() *storage.Registry {
	r := storage.NewRegistry()
	r.Register(storage.MethodSQLite, sqldialect.OpenSQLite)
	r.Register(storage.MethodSQLite3, sqldialect.OpenSQLite3)
	r.Register(storage.MethodMySQL, sqldialect.OpenMySQL)
	r.Register(storage.MethodMariaDB, sqldialect.OpenMariaDB)
	r.Register(storage.MethodPostgreSQL, sqldialect.OpenPostgreSQL)
	r.Register(storage.MethodJSON, filedialect.OpenJSON)
	r.Register(storage.MethodYAML, filedialect.OpenYAML)
	return r
}
