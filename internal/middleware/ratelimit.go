package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ripplehq/ripple-backend/pkg/clientip"
)

const (
	// RateLimitWindow is the counting window for per-IP request counters.
	RateLimitWindow = 120 * time.Second
	// RateLimitMaxRequests is the maximum number of requests allowed in the window.
	RateLimitMaxRequests = 100
	// LoginRateLimitWindow is the counting window for credential endpoints.
	LoginRateLimitWindow = 10 * time.Minute
	// LoginRateLimitMaxRequests caps signin/signup/reset attempts per window.
	LoginRateLimitMaxRequests = 10
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting.
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs.
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked.
	BlockedIPDuration = 24 * time.Hour
)

// LimitResult describes the counter state after one request was counted.
type LimitResult struct {
	Allowed   bool
	Blocked   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Limiter counts requests per key inside a fixed window. Implementations
// must fail open: when the backing store is unreachable, return
// (LimitResult{Allowed: true}, err) so traffic keeps flowing.
type Limiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) (LimitResult, error)
}

// RedisLimiter keeps the counters in Redis so limits hold across instances.
type RedisLimiter struct {
	rdb *redis.Client
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) (LimitResult, error) {
	open := LimitResult{Allowed: true, Limit: max, Remaining: max}

	blocked, err := l.rdb.Exists(ctx, BlockedIPKeyPrefix+key).Result()
	if err != nil {
		return open, err
	}
	if blocked > 0 {
		return LimitResult{Blocked: true, Limit: max}, nil
	}

	count, err := l.rdb.Incr(ctx, RateLimitKeyPrefix+key).Result()
	if err != nil {
		return open, err
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, RateLimitKeyPrefix+key, window).Err(); err != nil {
			return open, err
		}
	}

	if count > int64(max) {
		// Block the IP for BlockedIPDuration on overflow.
		if err := l.rdb.Set(ctx, BlockedIPKeyPrefix+key, "1", BlockedIPDuration).Err(); err != nil {
			return open, err
		}
		return LimitResult{Blocked: true, Limit: max, ResetAt: time.Now().Add(window)}, nil
	}

	return LimitResult{
		Allowed:   true,
		Limit:     max,
		Remaining: max - int(count),
		ResetAt:   time.Now().Add(window),
	}, nil
}

// UnblockIP removes an IP from the blocked list.
func (l *RedisLimiter) UnblockIP(ctx context.Context, ipAddress string) error {
	return l.rdb.Del(ctx, BlockedIPKeyPrefix+ipAddress).Err()
}

// IsIPBlocked reports whether an IP is currently blocked.
func (l *RedisLimiter) IsIPBlocked(ctx context.Context, ipAddress string) (bool, error) {
	count, err := l.rdb.Exists(ctx, BlockedIPKeyPrefix+ipAddress).Result()
	return count > 0, err
}

// RateLimit counts every request per client IP against max within window.
// Limiter errors fail open.
func RateLimit(limiter Limiter, max int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ipAddress := clientip.FromRequest(r)

			res, err := limiter.Allow(r.Context(), ipAddress, max, window)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if res.Blocked {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"success":false,"message":"Rate limit exceeded. Your IP has been temporarily blocked. Please try again later.","retry_after":%d}`, int(window.Seconds()))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.ResetAt.IsZero() {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			}

			next.ServeHTTP(w, r)
		})
	}
}
