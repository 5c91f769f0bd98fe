package middleware

import (
	"net/http" // HTTP status codes
	"sync"     // Mutex for the visitor map
	"time"     // Idle eviction timing

	"github.com/gin-gonic/gin" // Gin web framework
	"golang.org/x/time/rate"   // Token bucket limiter
)

// visitor tracks one client IP's limiter and last activity
type visitor struct {
	limiter  *rate.Limiter // Token bucket for this IP
	lastSeen time.Time     // Last request time, used for eviction
}

// ipLimiter keeps one token bucket per client IP
type ipLimiter struct {
	visitors map[string]*visitor // Per-IP state
	mu       sync.Mutex          // Guards the map
	r        rate.Limit          // Requests per second
	b        int                 // Burst allowance
}

// newIPLimiter constructs a limiter and starts idle eviction
func newIPLimiter(r rate.Limit, b int) *ipLimiter {
	l := &ipLimiter{
		visitors: make(map[string]*visitor),
		r:        r,
		b:        b,
	}
	go l.evictIdle() // Drop IPs that stopped sending requests
	return l
}

// get returns the limiter for an IP, creating one on first sight
func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, exists := l.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(l.r, l.b) // New bucket for a new IP
		l.visitors[ip] = &visitor{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}
	v.lastSeen = time.Now() // Refresh activity
	return v.limiter
}

// evictIdle removes IPs idle for more than three minutes
func (l *ipLimiter) evictIdle() {
	for {
		time.Sleep(time.Minute)
		l.mu.Lock()
		for ip, v := range l.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(l.visitors, ip)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimitMiddleware throttles each client IP to r requests per
// second with a burst of b
func RateLimitMiddleware(r rate.Limit, b int) gin.HandlerFunc {
	limiter := newIPLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.get(c.ClientIP()).Allow() {
			// Over the limit: reject without touching the store
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
