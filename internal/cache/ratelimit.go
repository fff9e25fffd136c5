package cache

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v9"
	"moff.io/hedera-dapp/pkg/log"
)

const rateLimitKeyPrefix = "hedera_dapp:rate:"

// RateLimitPerMinute limits each client IP to n requests per minute on the
// routes it guards. A nil limiter or n <= 0 disables limiting; Redis errors
// let the request through.
func RateLimitPerMinute(limiter *redis_rate.Limiter, route string, n int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || n <= 0 {
			c.Next()
			return
		}
		key := rateLimitKeyPrefix + route + ":" + c.ClientIP()
		res, err := limiter.Allow(c.Request.Context(), key, redis_rate.PerMinute(n))
		if err != nil {
			log.Errorf("rate limit %s: %v", key, err)
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if res.Allowed == 0 {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
