package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a fixed-window rate limiter backed by Redis, for
// deployments where several instances of a service run behind one address.
type RedisRateLimiter struct {
	rdb    *redis.Client
	logger *slog.Logger
	limit  int
	window time.Duration
	prefix string
}

var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func NewRedisRateLimiter(rdb *redis.Client, logger *slog.Logger, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisRateLimiter{
		rdb:    rdb,
		logger: logger,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

func (rl *RedisRateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("%s:%s", rl.prefix, clientKey(r))
			count, err := redisFixedWindowScript.Run(r.Context(), rl.rdb, []string{key}, rl.window.Milliseconds()).Int64()
			if err != nil {
				// Fail open: a Redis outage must not take the booking flow down with it.
				rl.logger.Warn("redis rate limit check failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if count > int64(rl.limit) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
