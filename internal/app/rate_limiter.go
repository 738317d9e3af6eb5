/**
 * @description
 * Distributed rate limiter over Redis, used to cap calls to the ledger API
 * across all worker replicas. A fixed window counter is enough here: the
 * node provider enforces its own hard limit and we only need to stay under
 * it, not shape traffic precisely.
 */
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisRateLimiter implements fixed-window rate limiting shared across
// worker replicas.
type RedisRateLimiter struct {
	client redis.UniversalClient
	key    string
	limit  int64
	window time.Duration
}

// NewRedisRateLimiter returns a limiter allowing at most limit calls per
// window under the given key.
func NewRedisRateLimiter(client redis.UniversalClient, key string, limit int64, window time.Duration) *RedisRateLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RedisRateLimiter{client: client, key: "signer:rate:" + key, limit: limit, window: window}
}

// Wait blocks until a slot is available in the current window or the context
// ends.
func (r *RedisRateLimiter) Wait(ctx context.Context) error {
	for {
		count, retryAfter, err := r.consume(ctx)
		if err != nil {
			return err
		}
		if count <= r.limit {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
	}
}

func (r *RedisRateLimiter) consume(ctx context.Context) (count int64, retryAfter time.Duration, err error) {
	raw, err := rateLimitScript.Run(ctx, r.client, []string{r.key}, r.window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, err
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limiter response shape: %T", raw)
	}
	current, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected rate limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return current, 0, fmt.Errorf("unexpected rate limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = r.window.Milliseconds()
	}
	return current, time.Duration(ttlMs) * time.Millisecond, nil
}
