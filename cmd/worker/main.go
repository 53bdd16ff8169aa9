package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/canvass/internal/adapters/google"
	natsadapter "github.com/samirrijal/canvass/internal/adapters/nats"
	"github.com/samirrijal/canvass/internal/adapters/postgres"
	"github.com/samirrijal/canvass/internal/adapters/valkey"
	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/ports"
	"github.com/samirrijal/canvass/internal/core/usecases"
	"github.com/samirrijal/canvass/internal/pkg/config"
	"github.com/samirrijal/canvass/internal/pkg/logging"
	"github.com/samirrijal/canvass/internal/workflows"
)

func main() {
	cfg, err := config.Load("canvass-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Temporal.HostPort == "" {
		log.Fatal("temporal.host_port is required for the worker")
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var provider ports.GeocodeProvider = google.New(cfg.Geocoder.APIKey,
		google.WithBaseURL(cfg.Geocoder.BaseURL),
		google.WithRateLimit(cfg.Geocoder.RatePerSecond),
		google.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Geocoder.TimeoutSeconds) * time.Second}),
	)
	if cfg.Valkey.Addr != "" {
		if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
			slog.Warn("valkey unavailable, geocode cache disabled", "error", err)
		} else {
			defer cache.Close()
			provider = usecases.NewCachedProvider(provider, cache, cfg.Geocoder.CacheTTLSeconds)
		}
	}

	var events ports.EventPublisher
	if cfg.NATS.URL != "" {
		if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
			slog.Warn("nats unavailable, progress events disabled", "error", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	step, _ := cfg.DefaultStep()
	resolver := usecases.NewResolver(provider, &domain.CallCounters{}).
		WithCountrySuffix(cfg.Geocoder.StripSuffix)
	regions := usecases.NewRegionService(resolver, domain.NewStepSetting(step),
		postgres.NewAddressRepo(db), postgres.NewRunRepo(db), events).
		WithMaxSamples(cfg.Grid.MaxSamples)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	// One scan at a time per worker keeps provider usage under the rate limit.
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: 1,
	})

	w.RegisterWorkflow(workflows.EnumerationWorkflow)
	w.RegisterActivity(&workflows.EnumerationActivities{
		Regions:   regions,
		ExportDir: cfg.Export.Dir,
	})

	slog.Info("enumeration worker started", "task_queue", cfg.Temporal.TaskQueue, "step", step.Name())
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
