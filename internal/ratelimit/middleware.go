package ratelimit

import (
	"log/slog"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/scriptmatch/internal/errors"
)

// AnalyzeMiddleware enforces the per-IP upload budget
func (rl *RateLimiter) AnalyzeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowAnalyze(c.Request.Context(), ip)
		if err != nil {
			// a broken limiter must not take uploads down with it
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitBlock()
			}
			retryAfter := strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds())))
			c.Header("Retry-After", retryAfter)
			apperrors.Respond(c, apperrors.NewRateLimitError(retryAfter), "")
			return
		}

		c.Next()
	}
}
