package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the per-key ceiling with a sliding window over a
// Redis sorted set, so a limit is shared across gateway instances.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// allowScript trims the window, counts what remains, records the attempt and
// compares in one atomic step.
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
	local count = redis.call('ZCARD', key)
	redis.call('ZADD', key, now, ARGV[5])
	redis.call('PEXPIRE', key, ttl_ms)

	if count < limit then
		return 1
	end
	return 0
`)

// Allow checks the trailing one-minute window for the key. The attempt is
// recorded regardless of the outcome. A non-positive limit always rejects.
func (rl *RedisLimiter) Allow(ctx context.Context, keyValue string, limitPerMinute int) (bool, error) {
	if limitPerMinute <= 0 {
		return false, nil
	}

	key := fmt.Sprintf("ratelimit:%s", keyValue)
	now := time.Now()
	windowStart := now.Add(-Window)

	result, err := allowScript.Run(
		ctx,
		rl.client,
		[]string{key},
		windowStart.UnixMicro(),
		now.UnixMicro(),
		limitPerMinute,
		(2 * Window).Milliseconds(),
		uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	return result == 1, nil
}

// CurrentUsage returns the number of attempts recorded in the trailing window.
func (rl *RedisLimiter) CurrentUsage(ctx context.Context, keyValue string) (int64, error) {
	key := fmt.Sprintf("ratelimit:%s", keyValue)
	windowStart := time.Now().Add(-Window)

	if err := rl.client.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMicro())).Err(); err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := rl.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get current usage: %w", err)
	}

	return count, nil
}

// Reset clears the window for a key.
func (rl *RedisLimiter) Reset(ctx context.Context, keyValue string) error {
	return rl.client.Del(ctx, fmt.Sprintf("ratelimit:%s", keyValue)).Err()
}
