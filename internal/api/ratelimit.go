package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/a2s-dz/gestion/internal/auth"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter limits how often one caller may hit an expensive endpoint.
// Callers are keyed by user ID, or by client IP before authentication.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	idle    time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows burst requests at once, then one every interval
func NewRateLimiter(interval time.Duration, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Every(interval),
		burst:   burst,
		idle:    30 * time.Minute,
	}
}

// Allow reports whether key may proceed, and if not how long to wait
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	entry, ok := rl.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	r := entry.limiter.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// Run drops idle entries until ctx is cancelled
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.entries {
		if now.Sub(entry.lastSeen) > rl.idle {
			delete(rl.entries, key)
		}
	}
}

// Middleware answers 429 with Retry-After when the caller is over its limit
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if user := auth.UserFromContext(c.Request.Context()); user != nil {
			key = user.ID.String()
		}

		allowed, retryAfter := rl.Allow(key)
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", fmt.Sprint(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "RATE_LIMITED",
				"message":     "trop de requêtes, réessayez plus tard",
				"retry_after": seconds,
			})
			return
		}
		c.Next()
	}
}
