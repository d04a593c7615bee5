package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// FamilyIDHeader carries the authenticated family identity, set by the
// upstream auth layer.
const FamilyIDHeader = "X-Family-ID"

// callerRateLimiter stores a rate limiter per caller.
type callerRateLimiter struct {
	callers map[string]*rate.Limiter
	mu      *sync.RWMutex
	r       rate.Limit
	b       int
}

func newCallerRateLimiter(r rate.Limit, b int) *callerRateLimiter {
	return &callerRateLimiter{
		callers: make(map[string]*rate.Limiter),
		mu:      &sync.RWMutex{},
		r:       r,
		b:       b,
	}
}

func (l *callerRateLimiter) add(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter := rate.NewLimiter(l.r, l.b)
	l.callers[key] = limiter
	return limiter
}

func (l *callerRateLimiter) get(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.callers[key]
	l.mu.RUnlock()

	if !exists {
		return l.add(key)
	}
	return limiter
}

// RateLimiter limits requests per caller. Authenticated callers are keyed
// by family id so households behind shared NATs don't throttle each other;
// anonymous requests fall back to the client IP.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := newCallerRateLimiter(r, b)
	return func(c *gin.Context) {
		key := c.GetHeader(FamilyIDHeader)
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.get(key).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
