package lock

import (
	"context"
	"sync"
	"time"
)

// Locker is a lease-based mutual-exclusion capability. TryAcquire sets
// key=value with the given lease if the key is free and reports whether
// the caller now holds the lock. Release deletes the key only when it
// still holds the caller's value, so a lock that expired and was
// re-acquired by another holder is never released by the old one.
type Locker interface {
	TryAcquire(ctx context.Context, key, value string, lease time.Duration) (bool, error)
	Release(ctx context.Context, key, value string) error
}

type memoryLease struct {
	value   string
	expires time.Time
}

// MemoryLocker is an in-process Locker. It satisfies the same contract as
// the Redis implementation but only excludes goroutines within one
// process; use it for tests and single-node deployments.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryLease
}

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]memoryLease)}
}

// TryAcquire takes the lease if the key is free or its lease has expired
func (l *MemoryLocker) TryAcquire(_ context.Context, key, value string, lease time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.leases[key]; ok && time.Now().Before(cur.expires) {
		return false, nil
	}

	l.leases[key] = memoryLease{value: value, expires: time.Now().Add(lease)}
	return true, nil
}

// Release frees the key, but only for the holder that acquired it
func (l *MemoryLocker) Release(_ context.Context, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.leases[key]; ok && cur.value == value {
		delete(l.leases, key)
	}
	return nil
}
