// Package redis 提供 Redis 限流器实现
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// slidingWindowScript 在一次往返内完成清理、计数与写入
// KEYS[1]=key ARGV: now_ms, window_ms, limit, member
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return {0, count}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window * 2)
return {1, count + 1}
`)

// RateLimitResult 限流判定结果
type RateLimitResult struct {
	Allowed   bool
	Remaining int
}

// RateLimiter 滑动窗口限流器
type RateLimiter struct {
	client *Client
	now    func() time.Time
}

// NewRateLimiter 创建限流器
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow 检查是否允许请求（滑动窗口算法）
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Allow")
	span.SetAttributes(
		attribute.String("ratelimit.key", key),
		attribute.Int("ratelimit.limit", limit),
		attribute.Int64("ratelimit.window_ms", window.Milliseconds()),
	)
	defer span.End()

	now := l.now().UnixMilli()
	vals, err := slidingWindowScript.Run(ctx, l.client.rdb, []string{key},
		now, window.Milliseconds(), limit, fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int64Slice()
	if err != nil {
		span.RecordError(err)
		return RateLimitResult{}, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	res := RateLimitResult{Allowed: vals[0] == 1, Remaining: limit - int(vals[1])}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	span.SetAttributes(
		attribute.Bool("ratelimit.allowed", res.Allowed),
		attribute.Int("ratelimit.remaining", res.Remaining),
	)
	return res, nil
}

// BuildUserRateLimitKey 构建用户限流键
func BuildUserRateLimitKey(userID, endpoint string) string {
	return fmt.Sprintf("ratelimit:%s:%s", userID, endpoint)
}
