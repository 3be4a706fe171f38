// services/billing-service/internal/ratelimit/redis.go
package ratelimit

import (
	"context"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const keyPrefix = "billing:ratelimit:"

// RedisLimiter is a fixed window counter shared by every instance of the service.
// When Redis is unreachable it lets calls through and logs a warning.
type RedisLimiter struct {
	client *redis.Client
	policy Policy
	logger *zap.Logger
}

func NewRedisLimiter(client *redis.Client, policy Policy, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, policy: policy, logger: logger}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	rkey := keyPrefix + key

	count, err := l.client.Incr(ctx, rkey).Result()
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
		return nil
	}
	if count == 1 {
		// first hit opens the window
		if err := l.client.PExpire(ctx, rkey, l.policy.Window).Err(); err != nil {
			l.logger.Warn("failed to set rate limit window", zap.String("key", key), zap.Error(err))
		}
	}
	if count <= int64(l.policy.Limit) {
		return nil
	}

	ttl, err := l.client.PTTL(ctx, rkey).Result()
	if err != nil || ttl <= 0 {
		// a counter without expiry would block the key forever
		_ = l.client.PExpire(ctx, rkey, l.policy.Window).Err()
		ttl = l.policy.Window
	}
	return &LimitError{Key: key, RetryAfter: ttl}
}
