package lockout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "verichain:lockout:"

// RedisStore shares counters across replicas. The failure counter expires with
// its window; the lock key holds the unlock time in unix milliseconds and
// expires with the lock.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) RecordFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	counter := keyPrefix + key + ":failures"
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, counter)
		pipe.ExpireNX(ctx, counter, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record failure %s: %w", key, err)
	}
	return int(incr.Val()), nil
}

func (s *RedisStore) LockedUntil(ctx context.Context, key string) (*time.Time, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key+":locked").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lock %s: %w", key, err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lock %s: %w", key, err)
	}
	until := time.UnixMilli(ms)
	return &until, nil
}

func (s *RedisStore) Lock(ctx context.Context, key string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+key+":locked", strconv.FormatInt(until.UnixMilli(), 10), ttl)
		pipe.Del(ctx, keyPrefix+key+":failures")
		return nil
	})
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key+":failures", keyPrefix+key+":locked").Err(); err != nil {
		return fmt.Errorf("clear %s: %w", key, err)
	}
	return nil
}
