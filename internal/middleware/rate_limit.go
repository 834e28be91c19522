package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ligth279/xilov5-overhual/internal/utils"
)

// RateLimit limits a route group per authenticated student, falling back to the client IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return identifier + ":" + rateLimitSubject(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many requests, slow down")
		},
	})
}

func rateLimitSubject(c *fiber.Ctx) string {
	if userID := UserID(c); userID != "" {
		return "user:" + userID
	}
	if session := strings.TrimSpace(c.Get("X-Session-ID")); session != "" {
		return "session:" + session
	}
	return "ip:" + c.IP()
}
