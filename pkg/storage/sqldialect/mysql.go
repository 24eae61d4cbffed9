package sqldialect

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"

	"mercator-hq/datastore/pkg/config"
	"mercator-hq/datastore/pkg/storage"
	"mercator-hq/datastore/pkg/telemetry/logging"

	"github.com/go-sql-driver/mysql"
)

// OpenMySQL opens a MySQL server connection.
func OpenMySQL(ctx context.Context, opts storage.FactoryOptions) (storage.Dialect, error) {
	return openMySQLFamily(ctx, opts, storage.MethodMySQL, mysqlSyntax)
}

// OpenMariaDB opens a MariaDB server connection. MariaDB speaks the MySQL
// protocol but supports ADD COLUMN IF NOT EXISTS natively.
func OpenMariaDB(ctx context.Context, opts storage.FactoryOptions) (storage.Dialect, error) {
	return openMySQLFamily(ctx, opts, storage.MethodMariaDB, mariadbSyntax)
}

func openMySQLFamily(ctx context.Context, opts storage.FactoryOptions, method storage.Method, s syntax) (storage.Dialect, error) {
	rc := opts.Config.RemoteConnection

	mysqlCfg, err := mysqlConfig(rc, method)
	if err != nil {
		return nil, storage.NewConnectionError(method, "", rc.Properties, err)
	}
	dsn := reportedMySQLDSN(mysqlCfg)

	connector, err := mysql.NewConnector(mysqlCfg)
	if err != nil {
		return nil, storage.NewConnectionError(method, dsn, rc.Properties, err)
	}
	db := sql.OpenDB(connector)

	poolSettings{
		MaxOpenConns:    rc.MaxOpenConns,
		MaxIdleConns:    rc.MaxIdleConns,
		ConnMaxLifetime: rc.ConnMaxLifetime,
	}.apply(db)

	e := newEngine(db, method, s, opts.Logger)
	if err := ping(ctx, db, pingPolicy{Timeout: rc.ConnectTimeout, Retries: rc.ConnectRetries}, e.logger); err != nil {
		db.Close()
		return nil, storage.NewConnectionError(method, dsn, rc.Properties, err)
	}

	e.logger.Info("connected to remote storage", "address", mysqlCfg.Addr, "database", mysqlCfg.DBName)
	return e, nil
}

// mysqlConfig builds the driver configuration. Properties are parsed the
// way the driver parses DSN parameters, so known options such as tls or
// charset take effect and unknown ones become session variables.
func mysqlConfig(rc config.RemoteConnectionConfig, method storage.Method) (*mysql.Config, error) {
	port := rc.Port
	if port == 0 {
		port = method.DefaultPort()
	}

	base := mysql.NewConfig()
	base.User = rc.Username
	base.Passwd = rc.Password
	base.Net = "tcp"
	base.Addr = net.JoinHostPort(rc.Host, strconv.Itoa(port))
	base.DBName = rc.Database
	if rc.ConnectTimeout > 0 {
		base.Timeout = rc.ConnectTimeout
	}

	if len(rc.Properties) == 0 {
		return base, nil
	}

	dsn := base.FormatDSN()
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += encodeProperties(rc.Properties)
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid connection properties: %w", err)
	}
	return parsed, nil
}

// reportedMySQLDSN formats cfg for error reports with the password
// replaced. The driver does not escape the password in a DSN, so the
// result cannot be redacted reliably after formatting.
func reportedMySQLDSN(cfg *mysql.Config) string {
	c := cfg.Clone()
	if c.Passwd != "" {
		c.Passwd = logging.Redacted
	}
	return c.FormatDSN()
}
