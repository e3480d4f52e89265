package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestTimeout bounds the request's user context. Services observe the
// deadline through ctx; handlers map context.DeadlineExceeded to TIMEOUT.
func RequestTimeout(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// websocket sessions outlive the request
		if d <= 0 || strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket") {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
