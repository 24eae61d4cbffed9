package sqldialect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// pingPolicy bounds how long a backend may take to answer its first ping.
type pingPolicy struct {
	Timeout time.Duration
	Retries int
}

// ping checks the connection with bounded exponential backoff.
func ping(ctx context.Context, db *sql.DB, policy pingPolicy, logger *slog.Logger) error {
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 200 * time.Millisecond
	expBackoff.MaxInterval = 2 * time.Second

	var b backoff.BackOff = expBackoff
	b = backoff.WithMaxRetries(b, uint64(max(policy.Retries, 0)))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return db.PingContext(ctx)
	}, b, func(err error, next time.Duration) {
		logger.Warn("storage ping failed, retrying",
			"attempt", attempt,
			"retry_in", next,
			"error", err,
		)
	})
	if err != nil {
		return fmt.Errorf("ping after %d attempts: %w", attempt, err)
	}
	return nil
}

// poolSettings are applied to remote connection pools.
type poolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (p poolSettings) apply(db *sql.DB) {
	db.SetMaxOpenConns(p.MaxOpenConns)
	db.SetMaxIdleConns(p.MaxIdleConns)
	db.SetConnMaxLifetime(p.ConnMaxLifetime)
}
