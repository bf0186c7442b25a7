package echoapi

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/teachhub/backend/core"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter is a token bucket per authenticated user, or per client IP for anonymous requests.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	metrics  HTTPMetrics
	lastGC   time.Time
}

func newRateLimiter(conf core.ServerConfig, metrics HTTPMetrics) *rateLimiter {
	perMin := conf.RateLimitPerMinute
	if perMin <= 0 {
		perMin = 30
	}
	burst := conf.RateLimitBurst
	if burst <= 0 {
		burst = 5
	}
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMin)),
		burst:    burst,
		metrics:  metrics,
		lastGC:   time.Now(),
	}
}

func (rl *rateLimiter) allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastGC) > limiterIdleTTL {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastGC = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (rl *rateLimiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		key := "ip:" + ctx.RealIP()
		if claims, err := getContextClaims(ctx); err == nil {
			key = "user:" + claims.Subject
		}
		if !rl.allow(key) {
			rl.metrics.IncThrottled(ctx.Path())
			return errTooManyRequests
		}
		return next(ctx)
	}
}
