// internal/lock/owner.go
package lock

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ownerGrace keeps expired entries around long enough that an overrunning
// holder still releases by token instead of deleting a successor's lease.
const ownerGrace = time.Hour

// Owners remembers the token a backend wrote for every key it acquired.
// Release compares against the remembered token; a key acquired by another
// process has no entry and is released unconditionally.
type Owners struct {
	mu     sync.Mutex
	tokens map[string]owner
	now    func() time.Time
}

type owner struct {
	token   string
	expires time.Time
}

// NewOwners returns an empty registry. now may be nil.
func NewOwners(now func() time.Time) *Owners {
	if now == nil {
		now = time.Now
	}
	return &Owners{tokens: make(map[string]owner), now: now}
}

// NewToken returns a fresh owner token.
func NewToken() string {
	return uuid.NewString()
}

// Record stores token as the holder of key for ttl and drops entries that
// expired more than ownerGrace ago.
func (o *Owners) Record(key, token string, ttl time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	for k, v := range o.tokens {
		if now.Sub(v.expires) > ownerGrace {
			delete(o.tokens, k)
		}
	}
	o.tokens[key] = owner{token: token, expires: now.Add(ttl)}
}

// Take removes and returns the token recorded for key.
func (o *Owners) Take(key string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	v, ok := o.tokens[key]
	if ok {
		delete(o.tokens, key)
	}
	return v.token, ok
}

// Len reports how many keys are tracked.
func (o *Owners) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.tokens)
}
