package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/samirrijal/canvass/internal/adapters/google"
	httpadapter "github.com/samirrijal/canvass/internal/adapters/http"
	natsadapter "github.com/samirrijal/canvass/internal/adapters/nats"
	"github.com/samirrijal/canvass/internal/adapters/postgres"
	"github.com/samirrijal/canvass/internal/adapters/valkey"
	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/ports"
	"github.com/samirrijal/canvass/internal/core/usecases"
	"github.com/samirrijal/canvass/internal/pkg/config"
	"github.com/samirrijal/canvass/internal/pkg/logging"
	"github.com/samirrijal/canvass/internal/pkg/metrics"
	"github.com/samirrijal/canvass/internal/pkg/telemetry"
	"github.com/samirrijal/canvass/internal/workflows"
)

func main() {
	cfg, err := config.Load("canvass-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	var cache *valkey.Cache
	if cfg.Valkey.Addr != "" {
		cache, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, geocode cache disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// Geocoding
	if cfg.Geocoder.APIKey == "" {
		slog.Warn("geocoder.api_key is empty, provider calls will be rejected")
	}
	var provider ports.GeocodeProvider = google.New(cfg.Geocoder.APIKey,
		google.WithBaseURL(cfg.Geocoder.BaseURL),
		google.WithRateLimit(cfg.Geocoder.RatePerSecond),
		google.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Geocoder.TimeoutSeconds) * time.Second}),
	)
	if cache != nil {
		provider = usecases.NewCachedProvider(provider, cache, cfg.Geocoder.CacheTTLSeconds)
	}
	resolver := usecases.NewResolver(provider, &domain.CallCounters{}).
		WithCountrySuffix(cfg.Geocoder.StripSuffix)

	// NATS
	var events ports.EventPublisher
	pub := connectNATS(cfg.NATS.URL)
	if pub != nil {
		defer pub.Close()
		events = pub
	}

	// Temporal
	var jobs httpadapter.JobStarter
	if cfg.Temporal.HostPort != "" {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    tlog.NewStructuredLogger(logger),
		})
		if err != nil {
			slog.Warn("temporal unavailable, async jobs disabled", "error", err)
		} else {
			defer tc.Close()
			jobs = workflows.NewJobClient(tc, cfg.Temporal.TaskQueue)
		}
	}

	step, _ := cfg.DefaultStep()
	addressRepo := postgres.NewAddressRepo(db)
	runRepo := postgres.NewRunRepo(db)

	deps := &httpadapter.Dependencies{
		Regions: usecases.NewRegionService(resolver, domain.NewStepSetting(step), addressRepo, runRepo, events).
			WithMaxSamples(cfg.Grid.MaxSamples),
		Addresses: usecases.NewAddressService(addressRepo),
		Jobs:      jobs,
		DB:        db,
		Cache:     cache,
		ExportDir: cfg.Export.Dir,
	}
	if pub != nil {
		deps.NATS = pub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // large drawn polygons
		AppName:      "Canvass API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	httpadapter.SetupRoutes(app, deps)

	go reportPoolStats(ctx, db)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "step", step.Name())
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Enumerations can be long; give them a bounded window to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// connectNATS returns nil when NATS is disabled or unreachable.
func connectNATS(url string) *natsadapter.Publisher {
	if url == "" {
		return nil
	}
	pub, err := natsadapter.NewPublisher(url)
	if err != nil {
		slog.Warn("nats unavailable, progress events disabled", "error", err)
		return nil
	}
	return pub
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		}
	}
}
