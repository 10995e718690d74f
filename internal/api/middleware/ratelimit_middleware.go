package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/metrics"
	"github.com/maheshrc27/postflow/internal/ratelimit"
)

type RateLimitMiddleware struct {
	name    string
	limiter ratelimit.Limiter
	now     func() time.Time
}

func NewRateLimitMiddleware(name string, limiter ratelimit.Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{name: name, limiter: limiter, now: time.Now}
}

// Limit keys requests by the authenticated user, falling back to the client
// IP. When the limiter store is down the request is let through.
func (m *RateLimitMiddleware) Limit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if uid, ok := c.Locals("user_id").(string); ok && uid != "" {
			id = "user:" + uid
		}

		res, err := m.limiter.Allow(c.UserContext(), id)
		if err != nil {
			metrics.RateLimitFailOpen.WithLabelValues(m.name).Inc()
			slog.Warn("rate limiter unavailable, allowing request", "limiter", m.name, "key", id, "error", err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

		if !res.Allowed {
			retryAfter := int(math.Ceil(res.RetryAfter(m.now()).Seconds()))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":     fmt.Sprintf("Rate limit exceeded, try again in %d seconds", retryAfter),
				"limit":     res.Limit,
				"remaining": res.Remaining,
				"reset":     res.Reset.Unix(),
			})
		}
		return c.Next()
	}
}
