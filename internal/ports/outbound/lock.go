package outbound

import "context"

// ResourceLocker provides mutual exclusion per resource key across all
// service instances. WithLock acquires the lock, runs work while it is held
// and releases it on every exit path.
//
// Acquisition failure after bounded retries returns shared.ErrResourceBusy.
// If the lock TTL elapses while work is still running, WithLock returns
// shared.ErrLockLost and callers must treat partial effects as unknown.
type ResourceLocker interface {
	WithLock(ctx context.Context, resourceKey string, work func(ctx context.Context) error) error
}
