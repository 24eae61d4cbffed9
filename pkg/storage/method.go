package storage

import (
	"log/slog"
	"strings"

	"mercator-hq/datastore/pkg/config"
)

// Method names a storage backend.
type Method string

// Built-in methods.
const (
	MethodSQLite     Method = "sqlite"
	MethodSQLite3    Method = "sqlite3"
	MethodMySQL      Method = "mysql"
	MethodMariaDB    Method = "mariadb"
	MethodPostgreSQL Method = "postgresql"
	MethodJSON       Method = "json"
	MethodYAML       Method = "yaml"

	// DefaultMethod is used when the configured method is missing,
	// unknown, or cannot be used.
	DefaultMethod = MethodSQLite
)

type methodInfo struct {
	remote      bool
	sql         bool
	defaultPort int
}

var methods = map[Method]methodInfo{
	MethodSQLite:     {sql: true},
	MethodSQLite3:    {sql: true},
	MethodMySQL:      {remote: true, sql: true, defaultPort: config.DefaultMySQLPort},
	MethodMariaDB:    {remote: true, sql: true, defaultPort: config.DefaultMySQLPort},
	MethodPostgreSQL: {remote: true, sql: true, defaultPort: config.DefaultPostgresPort},
	MethodJSON:       {},
	MethodYAML:       {},
}

// Methods returns every built-in method.
func Methods() []Method {
	return []Method{
		MethodSQLite, MethodSQLite3,
		MethodMySQL, MethodMariaDB, MethodPostgreSQL,
		MethodJSON, MethodYAML,
	}
}

// ParseMethod resolves a method name case-insensitively. Unknown or empty
// names return DefaultMethod and false.
func ParseMethod(name string) (Method, bool) {
	m := Method(strings.ToLower(strings.TrimSpace(name)))
	switch m {
	case "postgres":
		return MethodPostgreSQL, true
	case "h2":
		// Embedded engine of the original plugin platform; the closest
		// embedded engine here is SQLite.
		return MethodSQLite, true
	}
	if _, ok := methods[m]; ok {
		return m, true
	}
	return DefaultMethod, false
}

// IsRemote reports whether the method talks to a remote server.
func (m Method) IsRemote() bool {
	return methods[m].remote
}

// IsSQL reports whether the method is backed by a SQL engine.
func (m Method) IsSQL() bool {
	return methods[m].sql
}

// DefaultPort returns the server port used when none is configured, or 0
// for local methods.
func (m Method) DefaultPort() int {
	return methods[m].defaultPort
}

func (m Method) String() string {
	return string(m)
}

// ResolveMethod picks the method a storage configuration will actually
// use. Unknown method names and remote methods without a remote
// connection fall back to DefaultMethod; each fallback is logged.
func ResolveMethod(cfg *config.StorageConfig, logger *slog.Logger) Method {
	if logger == nil {
		logger = slog.Default()
	}

	m, ok := ParseMethod(cfg.Method)
	if !ok {
		logger.Warn("invalid storage method, using default",
			"method", cfg.Method,
			"default", DefaultMethod,
		)
		return DefaultMethod
	}

	if m.IsRemote() && strings.TrimSpace(cfg.RemoteConnection.Host) == "" {
		logger.Warn("remote storage method has no remote connection, using default",
			"method", m,
			"default", DefaultMethod,
		)
		return DefaultMethod
	}

	return m
}
