package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestShutdownClosesInReverseOrder(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"locks", "store", "notify"} {
		name := name
		sh.AddFunc(name, func() error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, sh.Shutdown(context.Background()))
	assert.Equal(t, []string{"notify", "store", "locks"}, order)

	// second call has nothing left to close
	require.NoError(t, sh.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestShutdownCollectsErrors(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)
	closed := false
	sh.AddFunc("store", func() error { closed = true; return nil })
	sh.AddFunc("nsq", func() error { return errors.New("producer stuck") })

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nsq: producer stuck")
	assert.True(t, closed, "a failing closer must not stop the others")
}

func TestShutdownTimeout(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	sh.AddFunc("hung", func() error {
		<-release
		return nil
	})

	start := time.Now()
	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown timeout")
	assert.Less(t, time.Since(start), time.Second)
}
