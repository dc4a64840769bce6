package shared

import (
	"context"
	"time"
)

// RunLock serializes runs that must not overlap across processes, such as a
// full catalog build followed by identity reconciliation.
type RunLock interface {
	// Acquire takes the lock for key with a TTL.
	// Returns true if the lock was taken, false if another holder owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops the lock for key. Releasing a lock that is not held is a no-op.
	Release(ctx context.Context, key string) error

	// Close releases resources held by the lock backend
	Close() error
}
