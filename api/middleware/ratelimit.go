package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/feeder/config"
	"github.com/use-agent/feeder/models"
	"golang.org/x/time/rate"
)

// idleAfter is how long a client may stay silent before its bucket is dropped.
const idleAfter = time.Hour

// clientBuckets holds one token bucket per client IP.
type clientBuckets struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
}

type bucket struct {
	*rate.Limiter
	lastSeen time.Time
}

func newClientBuckets(cfg config.RateLimitConfig) *clientBuckets {
	return &clientBuckets{
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		buckets: make(map[string]*bucket),
	}
}

// allow spends one token from ip's bucket, creating it on first sight.
func (cb *clientBuckets) allow(ip string, now time.Time) bool {
	cb.mu.Lock()
	b, ok := cb.buckets[ip]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(cb.limit, cb.burst)}
		cb.buckets[ip] = b
	}
	b.lastSeen = now
	cb.mu.Unlock()

	return b.AllowN(now, 1)
}

// sweep drops buckets idle since before cutoff and returns how many remain.
func (cb *clientBuckets) sweep(cutoff time.Time) int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for ip, b := range cb.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(cb.buckets, ip)
		}
	}
	return len(cb.buckets)
}

// RateLimit limits each client IP to cfg.RequestsPerSecond with bursts of
// cfg.Burst. Rejected requests get 429 with a RATE_LIMITED error body.
// Buckets idle for an hour are swept every few minutes.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	cb := newClientBuckets(cfg)

	go func() {
		for now := range time.Tick(5 * time.Minute) {
			if left := cb.sweep(now.Add(-idleAfter)); left > 0 {
				slog.Debug("rate limit buckets swept", "remaining", left)
			}
		}
	}()

	return func(c *gin.Context) {
		if cb.allow(c.ClientIP(), time.Now()) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ProgressResponse{
			Error: &models.ErrorDetail{
				Code:    models.ErrCodeRateLimited,
				Message: "rate limit exceeded, please slow down",
			},
		})
	}
}

// RequestLog logs every request through slog at debug level.
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("status api request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
