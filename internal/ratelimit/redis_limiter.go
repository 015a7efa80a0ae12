package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims, counts and conditionally adds in one round trip so
// concurrent instances cannot overshoot the limit.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisLimiter is a sliding-window limiter shared by every bot instance
// pointed at the same Redis.
type RedisLimiter struct {
	redis   *redis.Client
	limit   int
	window  time.Duration
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewRedisLimiter(redisClient *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RedisLimiter {
	return &RedisLimiter{
		redis:   redisClient,
		limit:   limit,
		window:  window,
		timeout: 2 * time.Second,
		logger:  logger.With(slog.String("component", "redis_limiter")),
		now:     time.Now,
	}
}

// TryAcquire records the attempt and returns true if the user is below the
// limit. If Redis fails the request is allowed.
func (l *RedisLimiter) TryAcquire(userID int64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	key := fmt.Sprintf("ratelimit:requests:%d", userID)
	allowed, err := slidingWindow.Run(ctx, l.redis, []string{key},
		l.now().UnixMilli(),
		l.window.Milliseconds(),
		l.limit,
		uuid.New().String(),
	).Int()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing request",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return true
	}
	return allowed == 1
}
