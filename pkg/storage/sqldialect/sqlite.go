package sqldialect

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"mercator-hq/datastore/pkg/storage"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"
)

// SQLite busy timeout in milliseconds.
const sqliteBusyTimeoutMS = 5000

// OpenSQLite opens the pure-Go SQLite engine (modernc.org/sqlite) at
// <data_dir>/sqlite/data.db.
func OpenSQLite(ctx context.Context, opts storage.FactoryOptions) (storage.Dialect, error) {
	path := filepath.Join(opts.Config.DataDir, "sqlite", "data.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		path, sqliteBusyTimeoutMS)
	return openSQLiteFile(ctx, opts, storage.MethodSQLite, "sqlite", path, dsn)
}

// OpenSQLite3 opens the cgo SQLite engine (github.com/mattn/go-sqlite3) at
// <data_dir>/sqlite3/data.db.
func OpenSQLite3(ctx context.Context, opts storage.FactoryOptions) (storage.Dialect, error) {
	path := filepath.Join(opts.Config.DataDir, "sqlite3", "data.db")
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		path, sqliteBusyTimeoutMS)
	return openSQLiteFile(ctx, opts, storage.MethodSQLite3, "sqlite3", path, dsn)
}

func openSQLiteFile(ctx context.Context, opts storage.FactoryOptions, method storage.Method, driver, path, dsn string) (storage.Dialect, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storage.NewConnectionError(method, path, nil, fmt.Errorf("create data directory: %w", err))
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, storage.NewConnectionError(method, path, nil, err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	e := newEngine(db, method, sqliteSyntax, opts.Logger)
	if err := ping(ctx, db, pingPolicy{Timeout: opts.Config.RemoteConnection.ConnectTimeout}, e.logger); err != nil {
		db.Close()
		return nil, storage.NewConnectionError(method, path, nil, err)
	}

	e.logger.Debug("sqlite database opened", "path", path, "driver", driver)
	return e, nil
}
