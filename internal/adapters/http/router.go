package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/canvass/internal/pkg/metrics"
)

const (
	requestTimeout     = 15 * time.Second
	enumerationTimeout = 5 * time.Minute
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP. Enumerations are
	// throttled again by the geocoder's own limiter.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware(LegacyRoutes))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	short := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }
	long := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, enumerationTimeout) }

	v1 := app.Group("/v1")
	v1.Get("/step-size", GetStepSizeHandler(deps))
	v1.Post("/step-size", SetStepSizeHandler(deps))
	v1.Post("/regions/enumerate", long(EnumerateRegionHandler(deps)))
	v1.Post("/regions/preview", short(PreviewRegionHandler(deps)))
	v1.Post("/regions/jobs", short(StartJobHandler(deps)))
	v1.Get("/regions/runs", short(ListRunsHandler(deps)))
	v1.Post("/geocode/locate", short(LocateHandler(deps)))
	v1.Get("/counters", CountersHandler(deps))
	v1.Get("/addresses", short(SearchAddressesHandler(deps)))
	v1.Get("/addresses/export", long(ExportAddressesHandler(deps)))
	v1.Get("/addresses/:id", short(GetAddressHandler(deps)))
	v1.Post("/addresses/:id/status", short(UpdateAddressStatusHandler(deps)))

	// Endpoints of the original browser app
	legacy := app.Group("/api")
	legacy.Post("/set-step-size", LegacySetStepSizeHandler(deps))
	legacy.Post("/get-addresses", long(LegacyGetAddressesHandler(deps)))
	legacy.Post("/center-map", short(LegacyCenterMapHandler(deps)))
	legacy.Post("/search-addresses", short(LegacySearchAddressesHandler(deps)))
	legacy.Post("/update-address-status", short(LegacyUpdateStatusHandler(deps)))
	app.Get("/download/:file", DownloadHandler(deps))

	app.Post("/graphql", long(GraphQLHandler(deps)))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
