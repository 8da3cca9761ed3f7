package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/reviewlens/config"
	"github.com/use-agent/reviewlens/models"
)

const limiterIdleTTL = time.Hour

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters hands out one token bucket per client identity and drops
// buckets idle for longer than limiterIdleTTL.
type clientLimiters struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiters(cfg config.RateLimitConfig) *clientLimiters {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiters{
		entries: make(map[string]*limiterEntry),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

func (l *clientLimiters) allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > 5*time.Minute {
		for id, e := range l.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(l.entries, id)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[identity]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[identity] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware powered by golang.org/x/time/rate.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	limiters := newClientLimiters(cfg)

	return func(c *gin.Context) {
		// Prefer the API key set by Auth; fall back to the client IP.
		identity := c.ClientIP()
		if key, ok := c.Get("api_key"); ok {
			identity = key.(string)
		}

		if !limiters.allow(identity) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: "rate limit exceeded, please slow down",
				Kind:  models.ErrKindRateLimited,
			})
			return
		}
		c.Next()
	}
}
