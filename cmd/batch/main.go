package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/samirrijal/canvass/internal/adapters/google"
	"github.com/samirrijal/canvass/internal/adapters/postgres"
	"github.com/samirrijal/canvass/internal/adapters/valkey"
	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/ports"
	"github.com/samirrijal/canvass/internal/core/usecases"
	"github.com/samirrijal/canvass/internal/export"
	"github.com/samirrijal/canvass/internal/pkg/config"
	"github.com/samirrijal/canvass/internal/pkg/geospatial"
	"github.com/samirrijal/canvass/internal/pkg/logging"
)

var (
	cfg *config.Config

	flagFormat      string
	flagStep        string
	flagOut         string
	flagConcurrency int
	flagStore       bool
)

var rootCmd = &cobra.Command{
	Use:   "canvass-batch <regions.geojson>",
	Short: "Enumerate the addresses of every polygon in a GeoJSON feature collection",
	Long: "Reads a FeatureCollection of Polygon features, scans each one on the grid and " +
		"writes one export file per feature, named after its \"name\" property.",
	Args: cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load("canvass-batch")
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logging.Setup(cfg.Telemetry.ServiceName, cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := export.ParseFormat(flagFormat)
		if err != nil {
			return err
		}
		stepName := flagStep
		if stepName == "" {
			stepName = cfg.Grid.DefaultStep
		}
		step, err := domain.ParseStepSize(stepName)
		if err != nil {
			return err
		}

		regions, err := readRegions(args[0])
		if err != nil {
			return err
		}
		if err := os.MkdirAll(flagOut, 0o755); err != nil {
			return eris.Wrapf(err, "create output dir %s", flagOut)
		}

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

		var store ports.AddressRepository
		if flagStore {
			db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
			if err != nil {
				return eris.Wrap(err, "database")
			}
			defer db.Close()
			store = postgres.NewAddressRepo(db)
		}

		resolver := usecases.NewResolver(provider, &domain.CallCounters{}).
			WithCountrySuffix(cfg.Geocoder.StripSuffix)
		regionSvc := usecases.NewRegionService(resolver, domain.NewStepSetting(step), nil, nil, nil).
			WithMaxSamples(cfg.Grid.MaxSamples)

		b := &batch{
			regions:     regionSvc,
			store:       store,
			step:        step,
			format:      format,
			dir:         flagOut,
			concurrency: flagConcurrency,
			now:         time.Now,
		}
		reports := b.run(ctx, regions)

		failed := 0
		for _, r := range reports {
			if r.Err != nil {
				failed++
			}
		}
		counters := regionSvc.Counters()
		slog.Info("batch complete",
			"regions", len(reports), "failed", failed,
			"reverse_calls", counters.ReverseCalls, "step", step.Name())
		if failed > 0 {
			return fmt.Errorf("%d of %d regions failed", failed, len(reports))
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagFormat, "format", string(export.FormatText), "output format: txt, xlsx or geojson")
	rootCmd.Flags().StringVar(&flagStep, "step", "", "step size preset (default grid.default_step)")
	rootCmd.Flags().StringVar(&flagOut, "out", ".", "output directory")
	rootCmd.Flags().IntVar(&flagConcurrency, "concurrency", 2, "regions scanned in parallel")
	rootCmd.Flags().BoolVar(&flagStore, "store", false, "also upsert the addresses into the database")
}

func readRegions(path string) ([]geospatial.NamedPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrapf(err, "parse %s", path)
	}
	regions, err := geospatial.PolygonsFromFeatureCollection(fc)
	if err != nil {
		return nil, eris.Wrapf(err, "regions in %s", path)
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("%s has no polygon features", path)
	}
	return regions, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
