package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is the shared fixed-window limiter: one INCR'd counter
// per key per window, so the limit holds across replicas. Fails open when
// Redis is unreachable — auth must not depend on limiter availability.
type RedisRateLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
}

func NewRedisRateLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		rdb:    rdb,
		limit:  int64(limit),
		window: window,
	}
}

func (rl *RedisRateLimiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			key = clientIP(c)
		}

		key = "ratelimit:" + key

		ctx := c.Request.Context()

		n, err := rl.rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}

		if n == 1 {
			// first hit opens the window
			_ = rl.rdb.Expire(ctx, key, rl.window).Err()
		}

		if n > rl.limit {
			ttl, err := rl.rdb.TTL(ctx, key).Result()

			retryAfter := int(rl.window.Seconds())
			if err == nil && ttl > 0 {
				retryAfter = int(ttl.Seconds())
			}

			respondRateLimited(c, retryAfter)
			return
		}

		c.Next()
	}
}
