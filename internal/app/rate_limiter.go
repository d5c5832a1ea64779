package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript keeps one sorted-set member per accepted request, scored by
// its arrival time in milliseconds. Rejected requests are not recorded, so a
// client hammering the endpoint does not extend its own lockout.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
if count < limit then
  redis.call("ZADD", key, now, ARGV[4])
  redis.call("PEXPIRE", key, window)
  return {count + 1, 0}
end
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local wait = window
if oldest[2] then
  wait = tonumber(oldest[2]) + window - now
end
return {count + 1, wait}
`)

// RedisRateLimiter implements a sliding-window request log shared by all replicas.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "points:rate_limit"
	}
	return &RedisRateLimiter{client: client, prefix: trimmed, now: time.Now}
}

// ConsumeRateLimit records a request for scope and subject when the window has
// room. It returns the request's position in the window, which exceeds limit for
// a rejected request, and the seconds until the oldest request ages out.
func (r *RedisRateLimiter) ConsumeRateLimit(
	ctx context.Context,
	scope string,
	subject string,
	limit int,
	window time.Duration,
) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}

	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}
	nowMs := r.now().UnixMilli()
	member := fmt.Sprintf("%d:%s", nowMs, uuid.NewString())

	raw, err := slidingWindowScript.Run(ctx, r.client, []string{r.Key(scope, subject)}, nowMs, windowMs, limit, member).Result()
	if err != nil {
		return 0, 0, err
	}
	return parseWindowResult(raw)
}

// Key returns the redis key used for scope and subject.
func (r *RedisRateLimiter) Key(scope, subject string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, scope, subject)
}

// parseWindowResult decodes the script's {count, waitMs} reply.
func parseWindowResult(raw interface{}) (int, int, error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected sliding window reply: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected sliding window count: %T", values[0])
	}
	waitMs, ok := values[1].(int64)
	if !ok {
		return int(count), 0, fmt.Errorf("unexpected sliding window wait: %T", values[1])
	}
	if waitMs <= 0 {
		return int(count), 0, nil
	}
	return int(count), int(math.Ceil(float64(waitMs) / 1000.0)), nil
}
