package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/canvass/internal/pkg/logging"
)

// RequestIDLogMiddleware stores a request-scoped logger carrying the Fiber
// request ID in the user context, where usecases pick it up through
// logging.FromContext.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, ok := c.Locals("requestid").(string)
		if !ok || rid == "" {
			return c.Next()
		}

		reqLogger := slog.Default().With("request_id", rid)
		c.SetUserContext(logging.WithLogger(c.UserContext(), reqLogger))

		return c.Next()
	}
}
