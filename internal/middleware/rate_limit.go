package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimit creates a per-caller rate limiter. Evaluation requests fan out to
// the inference backend, so the ceiling protects the model server more than
// the API itself.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			caller := fmt.Sprintf("%v", c.Locals("user_id"))
			if caller == "" || caller == "<nil>" {
				caller = c.IP()
			}
			return fmt.Sprintf("%s:%s", identifier, caller)
		},
	})
}
