// Package db builds the pgxpool the dead-letter store runs on. Follows
// the same connection-pool recipe the teacher's own db package used for
// its primary Postgres connection: a bounded pool, a short-lived
// connect/ping timeout, and on a failed ping the pool is closed and an
// error returned rather than handing back a pool nobody could ping.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// maxConnsDefault bounds the dead-letter store's pool when the caller
// doesn't override it. The store's only write pattern is one upsert per
// poisoned message plus occasional reads from the admin API, a much
// lighter load than the teacher's primary request-serving pool, so a
// single conservative default covers it.
const maxConnsDefault = 5

// NewPool parses dbURL, opens a pool capped at maxConns connections (or
// maxConnsDefault when maxConns <= 0), tags the pool with
// application_name=errortracker so it's identifiable in pg_stat_activity
// alongside other services sharing the same cluster, and pings it
// before returning so cmd/demo fails fast on a bad connection string
// instead of discovering it on the first dead-letter write.
func NewPool(dbURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}

	if maxConns <= 0 {
		maxConns = maxConnsDefault
	}
	cfg.MaxConns = maxConns
	cfg.ConnConfig.RuntimeParams["application_name"] = "errortracker"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}