package bot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/memetrader/internal/config"
	"github.com/rovshanmuradov/memetrader/internal/lock"
)

func TestNewLockServiceBackends(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	for _, cfg := range []*config.Config{
		{LockBackend: config.LockBackendMemory},
		{LockBackend: config.LockBackendRedis, RedisAddr: mr.Addr()},
	} {
		t.Run(cfg.LockBackend, func(t *testing.T) {
			locks, closer, err := NewLockService(ctx, cfg, logger)
			require.NoError(t, err)
			defer closer.Close()

			ok, err := locks.Acquire(ctx, lock.CycleBuy, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = locks.Acquire(ctx, lock.CycleBuy, time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, locks.Release(ctx, lock.CycleBuy))
		})
	}
	assert.False(t, mr.Exists(redisKeyPrefix+lock.CycleBuy))
}

func TestNewLockServiceUnknownBackend(t *testing.T) {
	_, _, err := NewLockService(context.Background(), &config.Config{LockBackend: "etcd"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestNewStoreRequiresURL(t *testing.T) {
	_, err := NewStore(&config.Config{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestNewServiceRequiresWallet(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.WalletPrivateKey = ""

	_, err = NewService(context.Background(), cfg, zaptest.NewLogger(t), nil)
	assert.ErrorContains(t, err, "load wallet")
}
