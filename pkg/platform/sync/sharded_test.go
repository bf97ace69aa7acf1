package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardedMutex_LockUnlock(t *testing.T) {
	m := NewShardedMutex()
	ctx := context.Background()

	require.NoError(t, m.Lock(ctx, "cred-1"))
	m.Unlock("cred-1")

	require.NoError(t, m.Lock(ctx, ""))
	m.Unlock("")
}

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex()
	counter := 0
	var wg sync.WaitGroup

	for range 100 {
		wg.Go(func() {
			if err := m.Lock(context.Background(), "same-key"); err != nil {
				return
			}
			defer m.Unlock("same-key")
			counter++
		})
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestShardedMutex_LockHonoursContext(t *testing.T) {
	m := NewShardedMutex()
	require.NoError(t, m.Lock(context.Background(), "held"))
	defer m.Unlock("held")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Lock(ctx, "held")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShardedMutex_TryLock(t *testing.T) {
	m := NewShardedMutex()
	assert.True(t, m.TryLock("k"))
	assert.False(t, m.TryLock("k"))
	m.Unlock("k")
	assert.True(t, m.TryLock("k"))
	m.Unlock("k")
}

func TestShardedMutex_UnlockUnlockedPanics(t *testing.T) {
	m := NewShardedMutex()
	assert.Panics(t, func() { m.Unlock("never-locked") })
}

func TestShardedMutex_KeysSharingAShardAreIndependent(t *testing.T) {
	m := NewShardedMutex()
	first := "issue:req-0"
	var second string
	for i := 1; second == ""; i++ {
		candidate := "serial:" + string(rune('a'+i%26)) + string(rune('a'+i/26%26))
		if shardFor(candidate) == shardFor(first) {
			second = candidate
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Lock(ctx, first))
	require.NoError(t, m.Lock(ctx, second))
	m.Unlock(second)
	m.Unlock(first)

	assert.True(t, m.TryLock(first))
	m.Unlock(first)
}

func TestShardedMutex_CancelledWaiterDoesNotLeak(t *testing.T) {
	m := NewShardedMutex()
	require.NoError(t, m.Lock(context.Background(), "k"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Lock(ctx, "k"), context.Canceled)

	m.Unlock("k")
	assert.Empty(t, m.shards[shardFor("k")].keys)
}

func TestShardFor_Stable(t *testing.T) {
	assert.Equal(t, 0, shardFor(""))
	assert.Equal(t, shardFor("abc"), shardFor("abc"))
	assert.Less(t, shardFor("some-key"), shardCount)
}
