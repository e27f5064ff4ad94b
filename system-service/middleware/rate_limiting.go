package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/config"
)

type rateLimit struct {
	Count      int
	ResetAt    time.Time
	LastAccess time.Time
	Blocked    bool
	BlockUntil time.Time
}

// RateLimiter counts requests per client key in fixed windows and blocks
// a key for BlockDuration once it goes over the limit.
type RateLimiter struct {
	store  map[string]*rateLimit
	mutex  sync.Mutex
	config config.RateLimitOptions
	now    func() time.Time
}

func NewRateLimiter(opts config.RateLimitOptions) *RateLimiter {
	return &RateLimiter{
		store:  make(map[string]*rateLimit),
		config: opts,
		now:    time.Now,
	}
}

// Cleanup drops idle keys every interval until ctx is cancelled.
func (rl *RateLimiter) Cleanup(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evict(idle)
		}
	}
}

func (rl *RateLimiter) evict(idle time.Duration) int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	removed := 0
	for key, limit := range rl.store {
		if now.Sub(limit.LastAccess) > idle && !(limit.Blocked && now.Before(limit.BlockUntil)) {
			delete(rl.store, key)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) isAllowed(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	limit, exists := rl.store[key]
	if !exists {
		rl.store[key] = &rateLimit{Count: 1, ResetAt: now.Add(rl.config.TimeWindow), LastAccess: now}
		return true
	}
	limit.LastAccess = now

	if limit.Blocked {
		if now.Before(limit.BlockUntil) {
			return false
		}
		limit.Blocked = false
		limit.Count = 1
		limit.ResetAt = now.Add(rl.config.TimeWindow)
		return true
	}

	if now.After(limit.ResetAt) {
		limit.Count = 1
		limit.ResetAt = now.Add(rl.config.TimeWindow)
		return true
	}

	if limit.Count >= rl.config.MaxRequests {
		limit.Blocked = true
		limit.BlockUntil = now.Add(rl.config.BlockDuration)
		return false
	}

	limit.Count++
	return true
}

// Middleware limits requests per client IP. A non-positive MaxRequests
// disables limiting.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.config.MaxRequests <= 0 {
			c.Next()
			return
		}
		if !rl.isAllowed("ip:" + c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limited",
				"message":     "Too many requests from this IP. Please try again later.",
				"retry_after": rl.config.BlockDuration.Seconds(),
			})
			return
		}
		c.Next()
	}
}
