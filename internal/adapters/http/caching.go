package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"

		case path == "/v1/step-size" || path == "/v1/counters":
			ttl = "no-cache" // changes with every enumeration

		case strings.HasPrefix(path, "/v1/addresses"), path == "/v1/regions/runs":
			ttl = "private, max-age=30"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "no-cache"
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
