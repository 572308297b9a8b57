// Package ratelimit implements in-memory HTTP rate limiting for room creation.
package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gala377/Auster/internal/v1/config"
	"github.com/gala377/Auster/internal/v1/logging"
	"github.com/gala377/Auster/internal/v1/metrics"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RateLimiter holds the room-creation rate limiter. It is deliberately
// backed by an in-process memory store rather than a shared store: Auster
// does not scale out horizontally, so there is no need to coordinate
// limits across processes.
type RateLimiter struct {
	rooms *limiter.Limiter
}

// NewRateLimiter creates a new RateLimiter instance from the configured
// "rooms" rate (e.g. "60-M" for 60 requests per minute).
func NewRateLimiter(cfg *config.Config) (*RateLimiter, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.HTTP.RateLimitRooms)
	if err != nil {
		return nil, err
	}

	store := memory.NewStore()

	return &RateLimiter{
		rooms: limiter.New(store, rate),
	}, nil
}

// RoomsMiddleware returns a Gin middleware enforcing the room-creation
// rate limit, keyed by client IP.
func (rl *RateLimiter) RoomsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := c.ClientIP()

		limiterCtx, err := rl.rooms.Get(ctx, key)
		if err != nil {
			// Fail open: an unavailable limiter store should not block
			// room creation entirely.
			logging.Error(ctx, "rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limiterCtx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(limiterCtx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(limiterCtx.Reset, 10))

		if limiterCtx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(c.FullPath()).Inc()
			c.Header("Retry-After", strconv.FormatInt(limiterCtx.Reset, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": limiterCtx.Reset,
			})
			return
		}

		c.Next()
	}
}
