package lock

import (
	"context"

	psync "verichain/pkg/platform/sync"
)

// Local is an in-process Locker backed by a sharded mutex. It is enough for a
// single replica; the database status guard still protects the commit.
type Local struct {
	mu *psync.ShardedMutex
}

func NewLocal() *Local {
	return &Local{mu: psync.NewShardedMutex()}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if err := l.mu.Lock(ctx, key); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		l.mu.Unlock(key)
		return nil
	}, nil
}
