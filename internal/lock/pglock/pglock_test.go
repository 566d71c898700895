package pglock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
)

// setupTestLocker starts a postgres container and returns a locker bound to it.
func setupTestLocker(t *testing.T) *Locker {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	l, err := New(ctx, dsn, zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = l.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	return l
}

func TestPostgresLocker(t *testing.T) {
	l := setupTestLocker(t)
	ctx := context.Background()

	t.Run("exclusive", func(t *testing.T) {
		ok, err := l.Acquire(ctx, "cycle:buy", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = l.Acquire(ctx, "cycle:buy", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("release", func(t *testing.T) {
		require.NoError(t, l.Release(ctx, "cycle:buy"))
		ok, err := l.Acquire(ctx, "cycle:buy", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, l.Release(ctx, "never-taken"))
	})

	t.Run("expired lease is taken over", func(t *testing.T) {
		ok, err := l.Acquire(ctx, "lease:short", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(1500 * time.Millisecond)
		ok, err = l.Acquire(ctx, "lease:short", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("single winner under contention", func(t *testing.T) {
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, err := l.Acquire(ctx, "lease:race", time.Minute); err == nil && ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})

	other, err := NewWithPool(ctx, l.pool, zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Run("late release keeps new holder", func(t *testing.T) {
		ok, err := l.Acquire(ctx, "cycle:sell", time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		time.Sleep(1500 * time.Millisecond)

		ok, err = other.Acquire(ctx, "cycle:sell", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, l.Release(ctx, "cycle:sell"))
		ok, err = l.Acquire(ctx, "cycle:sell", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "late release must not drop the new holder's lease")
	})

	t.Run("release of a lease taken elsewhere", func(t *testing.T) {
		ok, err := l.Acquire(ctx, "lease:handoff", time.Hour)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, other.Release(ctx, "lease:handoff"))
		ok, err = other.Acquire(ctx, "lease:handoff", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
