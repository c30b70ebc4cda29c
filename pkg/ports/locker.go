package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates per-case exclusion across replicas.
// Single-instance deployments can run without one; the in-process lock
// table in the case store manager is then the only serialization point.
type DistributedLocker interface {
	// Lock acquires a distributed lock for the given key (a case ID).
	// It blocks until the lock is acquired or the context is canceled.
	// The returned UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
