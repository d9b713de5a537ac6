package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tracefold/anonymizer/pkg/errors"
)

var ErrLockNotHeld = errors.New(errors.ErrCodeConflict, "lock not held by this owner")

// unlockScript releases the lock only when the caller still owns it.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// Mutex is a best-effort distributed lock built on SET NX. It serializes
// periodic maintenance (chat-log retention, audit archival) across service
// replicas; it is not meant for correctness-critical mutual exclusion.
type Mutex struct {
	client *Client
	key    string
	owner  string
	ttl    time.Duration
}

type LockOption func(*Mutex)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(m *Mutex) { m.ttl = ttl }
}

// NewMutex builds a lock on the given name. Each Mutex instance has a
// unique owner token, so two instances with the same name still exclude
// each other.
func NewMutex(client *Client, name string, opts ...LockOption) *Mutex {
	m := &Mutex{
		client: client,
		key:    "lock:" + name,
		owner:  uuid.NewString(),
		ttl:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TryLock attempts a single acquisition without blocking.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.key, m.owner, m.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "lock acquisition failed")
	}
	return ok, nil
}

// Lock blocks until the lock is acquired or ctx is done, polling at a
// fixed interval.
func (m *Mutex) Lock(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "lock wait cancelled")
		case <-ticker.C:
		}
	}
}

// Unlock releases the lock if this instance still holds it.
func (m *Mutex) Unlock(ctx context.Context) error {
	n, err := m.client.Eval(ctx, unlockScript, []string{m.key}, m.owner).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "lock release failed")
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// TTL reports the remaining lifetime of the lock key.
func (m *Mutex) TTL(ctx context.Context) (time.Duration, error) {
	d, err := m.client.TTL(ctx, m.key).Result()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeCacheError, "lock ttl query failed")
	}
	return d, nil
}
