package sync

import (
	"context"
	"sync"
)

const shardCount = 32

// ShardedMutex provides per-key mutual exclusion. Keys are spread across
// shards by hash so the bookkeeping maps rarely contend, but each key owns its
// own semaphore: two distinct keys never block each other, even on one shard.
// A caller may therefore hold several keys at once.
//
// Unlike sync.Mutex, acquisition honours context cancellation so a caller
// waiting behind a slow ledger confirmation can give up.
type ShardedMutex struct {
	shards [shardCount]shard
}

type shard struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

// keyLock lives while anyone holds or waits for the key.
type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewShardedMutex() *ShardedMutex {
	m := &ShardedMutex{}
	for i := range m.shards {
		m.shards[i].keys = make(map[string]*keyLock)
	}
	return m
}

// Lock blocks until the key is free or ctx is done.
func (m *ShardedMutex) Lock(ctx context.Context, key string) error {
	sh := &m.shards[shardFor(key)]
	kl := sh.acquireRef(key)
	select {
	case kl.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		sh.releaseRef(key, kl)
		return ctx.Err()
	}
}

// TryLock acquires the key only if it is free.
func (m *ShardedMutex) TryLock(key string) bool {
	sh := &m.shards[shardFor(key)]
	kl := sh.acquireRef(key)
	select {
	case kl.sem <- struct{}{}:
		return true
	default:
		sh.releaseRef(key, kl)
		return false
	}
}

// Unlock releases the key. Unlocking an unlocked key panics, like sync.Mutex.
func (m *ShardedMutex) Unlock(key string) {
	sh := &m.shards[shardFor(key)]
	sh.mu.Lock()
	kl, ok := sh.keys[key]
	sh.mu.Unlock()
	if !ok {
		panic("sync: unlock of unlocked key")
	}
	select {
	case <-kl.sem:
	default:
		panic("sync: unlock of unlocked key")
	}
	sh.releaseRef(key, kl)
}

func (s *shard) acquireRef(key string) *keyLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	kl, ok := s.keys[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		s.keys[key] = kl
	}
	kl.refs++
	return kl
}

func (s *shard) releaseRef(key string, kl *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(s.keys, key)
	}
}

// shardFor returns the shard index for the given key. Empty keys map to shard 0.
func shardFor(key string) int {
	if key == "" {
		return 0
	}
	return int(hashString(key) % shardCount)
}

// hashString is a djb2-style hash for shard selection.
func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
