package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "verichain:lock:"
	defaultTTL     = 2 * time.Minute
	defaultBackoff = 50 * time.Millisecond
)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every replica. Each hold is a SET NX PX with a
// random token; the TTL bounds how long a crashed holder blocks others, so it
// must exceed the longest claim including ledger confirmation.
type Redis struct {
	client  redis.Cmdable
	ttl     time.Duration
	backoff time.Duration
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithRetryBackoff(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.backoff = d
		}
	}
}

func NewRedis(client redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: defaultTTL, backoff: defaultBackoff}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.backoff)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return r.release(ctx, redisKey, token)
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Redis) release(ctx context.Context, redisKey, token string) error {
	n, err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
