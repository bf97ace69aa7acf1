// Package lock provides the per-credential critical section used by claims.
package lock

import (
	"context"
	"errors"
)

// ErrNotHeld is returned when releasing a lock that expired or was taken over.
var ErrNotHeld = errors.New("lock: not held")

// Locker serializes work per key. Acquire blocks until the key is free or ctx
// is done; the returned release must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}
