package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/saltybytes-resolver/internal/util"
	"golang.org/x/time/rate"
)

// limiterInfo is a struct that holds a rate limiter and the last time it was seen.
type limiterInfo struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// keyedLimiter hands out one rate.Limiter per key and forgets idle keys.
type keyedLimiter struct {
	limiters sync.Map
	limit    rate.Limit
	burst    int
}

func newKeyedLimiter(limit rate.Limit, burst int, cleanupInterval, expiration time.Duration) *keyedLimiter {
	k := &keyedLimiter{limit: limit, burst: burst}

	// Cleanup goroutine
	go func() {
		for range time.Tick(cleanupInterval) {
			k.limiters.Range(func(key, value interface{}) bool {
				lastSeen := time.Unix(0, value.(*limiterInfo).lastSeen.Load())
				if time.Since(lastSeen) > expiration {
					k.limiters.Delete(key)
				}
				return true
			})
		}
	}()

	return k
}

// allow reports whether the request identified by key may proceed.
func (k *keyedLimiter) allow(key string) bool {
	// Use LoadOrStore to ensure thread safety
	actual, _ := k.limiters.LoadOrStore(key, &limiterInfo{
		limiter: rate.NewLimiter(k.limit, k.burst),
	})

	info := actual.(*limiterInfo)
	info.lastSeen.Store(time.Now().UnixNano())
	return info.limiter.Allow()
}

func tooManyRequests(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests", "code": "rate_limited"})
	c.Abort()
}

// RateLimitByIP applies rate limiting to requests per IP address.
func RateLimitByIP(rps int, cleanupInterval time.Duration, expiration time.Duration) gin.HandlerFunc {
	limiter := newKeyedLimiter(rate.Limit(rps), rps, cleanupInterval, expiration)

	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			tooManyRequests(c)
			return
		}
		c.Next()
	}
}

// RateLimitByUser allows perMinute requests per authenticated user, with a
// burst of the same size. It must run after VerifyTokenMiddleware; requests
// without a user ID fall back to the client IP.
func RateLimitByUser(perMinute int, cleanupInterval time.Duration, expiration time.Duration) gin.HandlerFunc {
	if perMinute < 1 {
		perMinute = 1
	}
	limiter := newKeyedLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute, cleanupInterval, expiration)

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID, err := util.GetUserIDFromContext(c); err == nil {
			key = "user:" + strconv.FormatUint(uint64(userID), 10)
		}

		if !limiter.allow(key) {
			tooManyRequests(c)
			return
		}
		c.Next()
	}
}
