package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/ratelimit"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/response"
	"go.uber.org/zap"
)

// RateLimit allows max requests per client IP per window for the routes it
// wraps. scope separates the counters of different route groups. Limiter
// failures let the request through.
func RateLimit(limiter ratelimit.Limiter, scope string, max int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if limiter == nil || max <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), scope+":"+ip, max, window)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", fmt.Sprint(int(window.Seconds())))
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
