// internal/lock/lock.go
package lock

import (
	"context"
	"time"
)

// Service is a TTL lease primitive. Acquire never waits: a false result means
// somebody else holds the key and the caller should skip its work.
type Service interface {
	// Acquire atomically takes key for ttl. It returns true only when the
	// caller now holds an exclusive lease.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops key. Releasing an expired or unknown key is not an error.
	Release(ctx context.Context, key string) error
}

// Key namespaces used by the controller.
const (
	CycleBuy       = "cycle:buy"
	CycleSell      = "cycle:sell"
	CycleReconcile = "cycle:reconcile"
	CycleCleanup   = "cycle:cleanup"
)

// AssetLease returns the per-asset lease key.
func AssetLease(address string) string {
	return "lease:" + address
}
