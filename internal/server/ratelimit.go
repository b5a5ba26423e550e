package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/locallink-app/locallink/backend/internal/metrics"
	"golang.org/x/time/rate"
)

// clientLimiters lazily creates one token-bucket limiter per client IP.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newClientLimiters(rps float64, burst int) *clientLimiters {
	return &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *clientLimiters) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// rateLimitMiddleware enforces a per-client token-bucket limit on the public
// listing surface, keyed by client IP.
func rateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := newClientLimiters(rps, burst)
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}

		if !limiters.get(key).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorEnvelope("Too many requests", "rate_limited"))
			return
		}
		metrics.RateLimitAllowed.Inc()
		c.Next()
	}
}
