// internal/lock/redislock/redislock.go
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/lock"
)

var _ lock.Service = (*Locker)(nil)

// Deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Options for the redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Locker implements lock.Service with SET NX EX. The value is a random owner
// token so release cannot remove a lease somebody else took after expiry.
type Locker struct {
	client *redis.Client
	prefix string
	owners *lock.Owners
	logger *zap.Logger
}

// New connects to redis and pings it once.
func New(opts Options, logger *zap.Logger) (*Locker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   2,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts.Prefix, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string, logger *zap.Logger) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		owners: lock.NewOwners(nil),
		logger: logger.Named("redislock"),
	}
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := lock.NewToken()
	ok, err := l.client.WithContext(ctx).SetNX(l.prefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		l.logger.Debug("lease held elsewhere", zap.String("key", key))
		return false, nil
	}
	l.owners.Record(key, token, ttl)
	return true, nil
}

func (l *Locker) Release(ctx context.Context, key string) error {
	client := l.client.WithContext(ctx)
	token, mine := l.owners.Take(key)
	if !mine {
		// Taken by another process, e.g. a lease released by reconcile after
		// a restart.
		if err := client.Del(l.prefix + key).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("del %s: %w", key, err)
		}
		return nil
	}

	n, err := releaseScript.Run(client, []string{l.prefix + key}, token).Int64()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if n == 0 {
		l.logger.Warn("lease expired before release, left to new holder", zap.String("key", key))
	}
	return nil
}

// Close close redis client
func (l *Locker) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
