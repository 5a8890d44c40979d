package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/dopemusic/dopesite/utils"
)

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows perMinute requests per IP with a burst of half that.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limiters: map[string]*rateLimiter{},
		limit:    rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:    max(perMinute/2, 1),
	}
}

// Middleware rejects POST requests over the limit; other methods pass through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost {
			ctx.Next()
			return
		}
		if !rl.get(ctx.ClientIP()).Allow() {
			utils.Sugar.Warnw("rate limit exceeded", "ip", ctx.ClientIP(), "path", ctx.Request.URL.Path)
			ctx.String(http.StatusTooManyRequests, "Too many attempts, try again in a minute.")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for k, l := range rl.limiters {
		if now.After(l.expires) {
			delete(rl.limiters, k)
		}
	}

	if l, ok := rl.limiters[key]; ok {
		l.expires = now.Add(5 * time.Minute)
		return l.limiter
	}
	l := &rateLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst), expires: now.Add(5 * time.Minute)}
	rl.limiters[key] = l
	return l.limiter
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
