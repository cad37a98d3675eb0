package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per authenticated user.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	limit    rate.Limit
	burst    int
}

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter creates a limiter allowing perSecond sustained requests per
// user with the given burst. perSecond <= 0 disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = max(1, int(perSecond))
	}
	return &RateLimiter{
		limiters: make(map[string]*userLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (r *RateLimiter) get(userID string) *rate.Limiter {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if ul, ok := r.limiters[userID]; ok {
		ul.lastAccess = now
		return ul.limiter
	}
	l := rate.NewLimiter(r.limit, r.burst)
	r.limiters[userID] = &userLimiter{limiter: l, lastAccess: now}
	return l
}

// Allow reports whether userID may make another request now.
func (r *RateLimiter) Allow(userID string) bool {
	if r.limit <= 0 {
		return true
	}
	return r.get(userID).Allow()
}

// CleanupStale forgets users not seen within maxAge and returns how many
// were removed.
func (r *RateLimiter) CleanupStale(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, ul := range r.limiters {
		if ul.lastAccess.Before(cutoff) {
			delete(r.limiters, id)
			removed++
		}
	}
	return removed
}

// RateLimit rejects requests over the per-user budget with 429. It must run
// after JWTAuthMiddleware; anonymous requests are keyed by client IP.
func RateLimit(r *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(ContextUserID)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !r.Allow(key) {
			c.Header("Retry-After", strconv.Itoa(1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
