package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing suits the services here: short transactional bursts from HTTP
// handlers plus one or two long-lived pollers per process.
const (
	maxConns        = 10
	minConns        = 1
	connMaxLifetime = 30 * time.Minute
	connMaxIdle     = 5 * time.Minute
	pingTimeout     = 3 * time.Second
)

// Pool wraps pgxpool.Pool so callers depend on this package, not on the
// driver directly.
type Pool struct {
	*pgxpool.Pool
}

// Open parses the database URL, applies the pool tuning above and verifies
// connectivity with an initial ping before handing the pool out.
func Open(ctx context.Context, databaseURL string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnLifetime = connMaxLifetime
	cfg.MaxConnIdleTime = connMaxIdle

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Pool{Pool: pool}, nil
}

// Close is nil-safe so deferred cleanup works even when Open failed.
func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// ReadyCheck reports database reachability for the /readyz probe.
func ReadyCheck(pool *Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil || pool.Pool == nil {
			return errors.New("database pool not initialized")
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return pool.Ping(pingCtx)
	}
}
