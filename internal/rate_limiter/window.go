package rate_limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is the shared counter backend the sliding window is computed
// against, so concurrent service instances agree on the count.
type CounterStore interface {
	// Take records one admission attempt for identifier and returns the
	// remaining budget. A negative remaining means the attempt was
	// rejected and nothing was recorded.
	Take(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (remaining int, resetAt time.Time, err error)
}

// slidingWindowScript counts the rolling window as the current fixed bucket
// plus the previous bucket weighted by overlap, then increments only when
// the request fits. Runs as one script so increment-and-check is atomic
// across instances.
var slidingWindowScript = redis.NewScript(`
local limit   = tonumber(ARGV[1])
local now     = tonumber(ARGV[2])
local window  = tonumber(ARGV[3])

local current  = tonumber(redis.call("GET", KEYS[1]) or "0")
local previous = tonumber(redis.call("GET", KEYS[2]) or "0")

local weight = 1 - ((now % window) / window)
if current + previous * weight >= limit then
  return -1
end

local added = redis.call("INCR", KEYS[1])
if added == 1 then
  redis.call("PEXPIRE", KEYS[1], window * 2)
end
return limit - (added + math.floor(previous * weight))
`)

// RedisCounterStore implements CounterStore on Redis.
type RedisCounterStore struct {
	client redis.UniversalClient
}

// NewRedisCounterStore creates a counter store on the given client.
func NewRedisCounterStore(client redis.UniversalClient) *RedisCounterStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisCounterStore{client: client}
}

// Take runs the sliding-window script for identifier.
func (s *RedisCounterStore) Take(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (int, time.Time, error) {
	windowMs := window.Milliseconds()
	nowMs := now.UnixMilli()
	bucket := nowMs / windowMs

	currentKey := fmt.Sprintf("ratelimit:%s:%d", identifier, bucket)
	previousKey := fmt.Sprintf("ratelimit:%s:%d", identifier, bucket-1)
	resetAt := time.UnixMilli((bucket + 1) * windowMs)

	remaining, err := slidingWindowScript.Run(ctx, s.client,
		[]string{currentKey, previousKey},
		limit, nowMs, windowMs).Int()
	if err != nil {
		return 0, resetAt, fmt.Errorf("sliding window check failed: %w", err)
	}
	if remaining < 0 {
		return -1, resetAt, nil
	}
	return remaining, resetAt, nil
}
