// internal/lock/memlock/memlock.go
package memlock

import (
	"context"
	"sync"
	"time"

	"github.com/rovshanmuradov/memetrader/internal/lock"
)

var _ lock.Service = (*Locker)(nil)

// Locker keeps leases in process memory. Only suitable for a single instance.
type Locker struct {
	mu     sync.Mutex
	leases map[string]time.Time
	now    func() time.Time
}

func New() *Locker {
	return &Locker{leases: make(map[string]time.Time), now: time.Now}
}

// WithClock replaces the time source.
func (l *Locker) WithClock(now func() time.Time) *Locker {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
	return l
}

func (l *Locker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.leases[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.leases[key] = now.Add(ttl)
	return true, nil
}

func (l *Locker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.leases, key)
	l.mu.Unlock()
	return nil
}

// Held reports whether key is currently leased.
func (l *Locker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.leases[key]
	return ok && l.now().Before(exp)
}

func (l *Locker) Close() error { return nil }
