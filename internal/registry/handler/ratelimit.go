package handler

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter returns a gin middleware that enforces per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size; staleAfter bounds how long an idle client's bucket is
// kept (entries are swept at half that interval). A zero staleAfter keeps
// buckets for 10 minutes.
func RateLimiter(rps, burst int, staleAfter time.Duration) gin.HandlerFunc {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}

	var mu sync.Mutex
	limiters := make(map[string]*ipLimiter)

	go func() {
		ticker := time.NewTicker(staleAfter / 2)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			for ip, l := range limiters {
				if time.Since(l.lastSeen) > staleAfter {
					delete(limiters, ip)
				}
			}
			mu.Unlock()
		}
	}()

	retryAfter := strconv.Itoa(max(1, burst/max(rps, 1)))

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		l, ok := limiters[ip]
		if !ok {
			l = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[ip] = l
		}
		l.lastSeen = time.Now()
		mu.Unlock()

		if !l.limiter.Allow() {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"kind":  "rate_limited",
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
