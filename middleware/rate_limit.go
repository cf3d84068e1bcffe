package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/cppla/commentboard/metrics"
	"github.com/cppla/commentboard/utils"
)

const limiterIdleTTL = 5 * time.Minute

// Limiter decides whether the client identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// MemoryLimiter is a per-key token bucket kept in process memory.
type MemoryLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	limiters  map[string]*rateLimiter
	lastSweep time.Time
}

// NewMemoryLimiter allows perMinute requests per key with a burst of half that.
func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	perMinute = max(perMinute, 1)
	return &MemoryLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(perMinute/2, 1),
		now:      time.Now,
		limiters: map[string]*rateLimiter{},
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= limiterIdleTTL {
		m.sweepLocked(now)
	}

	l, ok := m.limiters[key]
	if !ok {
		l = &rateLimiter{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.limiters[key] = l
	}
	l.expires = now.Add(limiterIdleTTL)
	return l.limiter.AllowN(now, 1)
}

// sweepLocked drops buckets idle for longer than limiterIdleTTL. Runs at most once per TTL.
func (m *MemoryLimiter) sweepLocked(now time.Time) {
	for k, l := range m.limiters {
		if now.After(l.expires) {
			delete(m.limiters, k)
		}
	}
	m.lastSweep = now
}

// RedisLimiter is a fixed one-minute window shared by every instance using the same redis.
// Redis errors fail open.
type RedisLimiter struct {
	client    *redis.Client
	perMinute int
	prefix    string
	now       func() time.Time
}

// NewRedisLimiter allows perMinute requests per key and minute.
func NewRedisLimiter(client *redis.Client, perMinute int) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		perMinute: max(perMinute, 1),
		prefix:    "commentboard:ratelimit:",
		now:       time.Now,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	window := r.now().UTC().Format("200601021504")
	redisKey := r.prefix + key + ":" + window

	n, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		utils.Sugar.Warnf("rate limiter redis incr failed: %v", err)
		return true
	}
	if n == 1 {
		_ = r.client.Expire(ctx, redisKey, time.Minute+5*time.Second).Err()
	}
	return n <= int64(r.perMinute)
}

// RateLimitMiddleware rejects clients over their budget with 429, keyed by client IP.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodOptions {
			ctx.Next()
			return
		}
		if !limiter.Allow(ctx.Request.Context(), ctx.ClientIP()) {
			metrics.RateLimitedTotal.Inc()
			ctx.Header("Retry-After", strconv.Itoa(60))
			utils.Abort(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			return
		}
		ctx.Next()
	}
}
