// internal/lock/pglock/pglock.go
package pglock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/lock"
)

var _ lock.Service = (*Locker)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS leases (
	key        TEXT PRIMARY KEY,
	owner      TEXT NOT NULL DEFAULT '',
	expires_at TIMESTAMPTZ NOT NULL
)`

const addOwnerColumn = `ALTER TABLE leases ADD COLUMN IF NOT EXISTS owner TEXT NOT NULL DEFAULT ''`

// A stale row is overwritten in place; a live one makes the upsert return nothing.
const acquireQuery = `
INSERT INTO leases (key, owner, expires_at)
VALUES ($1, $3, now() + make_interval(secs => $2))
ON CONFLICT (key) DO UPDATE SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
WHERE leases.expires_at <= now()
RETURNING key`

// Locker implements lock.Service on a postgres lease table.
type Locker struct {
	pool   *pgxpool.Pool
	owned  bool
	owners *lock.Owners
	logger *zap.Logger
}

// New opens a pool for dsn and ensures the lease table exists.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Locker, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	l, err := NewWithPool(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	l.owned = true
	return l, nil
}

// NewWithPool uses a caller-owned pool.
func NewWithPool(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*Locker, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create leases table: %w", err)
	}
	if _, err := pool.Exec(ctx, addOwnerColumn); err != nil {
		return nil, fmt.Errorf("add leases owner column: %w", err)
	}
	return &Locker{pool: pool, owners: lock.NewOwners(nil), logger: logger.Named("pglock")}, nil
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := lock.NewToken()
	var got string
	err := l.pool.QueryRow(ctx, acquireQuery, key, ttl.Seconds(), token).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		l.logger.Debug("lease held elsewhere", zap.String("key", key))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", key, err)
	}
	l.owners.Record(key, token, ttl)
	return true, nil
}

// Release deletes by owner token when this locker took the key, and
// unconditionally when another process did.
func (l *Locker) Release(ctx context.Context, key string) error {
	token, mine := l.owners.Take(key)
	if !mine {
		if _, err := l.pool.Exec(ctx, `DELETE FROM leases WHERE key = $1`, key); err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		return nil
	}

	tag, err := l.pool.Exec(ctx, `DELETE FROM leases WHERE key = $1 AND owner = $2`, key, token)
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		l.logger.Warn("lease expired before release, left to new holder", zap.String("key", key))
	}
	return nil
}

// Close closes the pool if the locker opened it.
func (l *Locker) Close() error {
	if l.owned {
		l.pool.Close()
	}
	return nil
}
