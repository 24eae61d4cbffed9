package sqldialect

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"

	"mercator-hq/datastore/pkg/config"
	"mercator-hq/datastore/pkg/storage"
	"mercator-hq/datastore/pkg/telemetry/logging"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
)

// OpenPostgreSQL opens a PostgreSQL server connection through pgx.
func OpenPostgreSQL(ctx context.Context, opts storage.FactoryOptions) (storage.Dialect, error) {
	rc := opts.Config.RemoteConnection
	dsn := postgresURL(rc)
	reported := postgresURL(redactedRemote(rc))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, storage.NewConnectionError(storage.MethodPostgreSQL, reported, rc.Properties, err)
	}

	poolSettings{
		MaxOpenConns:    rc.MaxOpenConns,
		MaxIdleConns:    rc.MaxIdleConns,
		ConnMaxLifetime: rc.ConnMaxLifetime,
	}.apply(db)

	e := newEngine(db, storage.MethodPostgreSQL, postgresSyntax, opts.Logger)
	if err := ping(ctx, db, pingPolicy{Timeout: rc.ConnectTimeout, Retries: rc.ConnectRetries}, e.logger); err != nil {
		db.Close()
		return nil, storage.NewConnectionError(storage.MethodPostgreSQL, reported, rc.Properties, err)
	}

	e.logger.Info("connected to remote storage", "host", rc.Host, "database", rc.Database)
	return e, nil
}

// postgresURL builds a postgres:// connection URL. Properties become query
// parameters, so libpq options such as sslmode pass straight through.
func postgresURL(rc config.RemoteConnectionConfig) string {
	port := rc.Port
	if port == 0 {
		port = storage.MethodPostgreSQL.DefaultPort()
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(rc.Host, strconv.Itoa(port)),
		Path:   "/" + rc.Database,
	}
	if rc.Username != "" {
		if rc.Password != "" {
			u.User = url.UserPassword(rc.Username, rc.Password)
		} else {
			u.User = url.User(rc.Username)
		}
	}

	q := url.Values{}
	for k, v := range rc.Properties {
		q.Set(k, v)
	}
	if rc.ConnectTimeout > 0 && q.Get("connect_timeout") == "" {
		q.Set("connect_timeout", strconv.Itoa(max(int(rc.ConnectTimeout.Seconds()), 1)))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// redactedRemote returns rc with its password replaced for error reports.
func redactedRemote(rc config.RemoteConnectionConfig) config.RemoteConnectionConfig {
	if rc.Password != "" {
		rc.Password = logging.Redacted
	}
	return rc
}

func encodeProperties(props map[string]string) string {
	q := url.Values{}
	for k, v := range props {
		q.Set(k, v)
	}
	return q.Encode()
}
