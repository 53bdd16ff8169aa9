package usecases

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/ports"
	"github.com/samirrijal/canvass/internal/pkg/geospatial"
	"github.com/samirrijal/canvass/internal/pkg/logging"
	"github.com/samirrijal/canvass/internal/pkg/metrics"
	"github.com/samirrijal/canvass/internal/pkg/telemetry"
)

// DefaultProgressEvery is how many inside points pass between progress events.
const DefaultProgressEvery = 25

// DefaultMaxSamples caps the lattice of a single enumeration or preview.
const DefaultMaxSamples = 4_000_000

var tracer = otel.Tracer("github.com/samirrijal/canvass/internal/core/usecases")

// RegionService enumerates the addresses inside a drawn region.
type RegionService struct {
	resolver  *Resolver
	step      *domain.StepSetting
	addresses ports.AddressRepository
	runs      ports.RunRepository
	events    ports.EventPublisher

	progressEvery int
	maxSamples    int
	now           func() time.Time
}

// NewRegionService creates a new RegionService. addresses, runs and events
// may be nil; enumeration then skips persistence or progress events.
func NewRegionService(
	resolver *Resolver,
	step *domain.StepSetting,
	addresses ports.AddressRepository,
	runs ports.RunRepository,
	events ports.EventPublisher,
) *RegionService {
	if step == nil {
		step = domain.NewStepSetting(domain.DefaultStep)
	}
	return &RegionService{
		resolver:      resolver,
		step:          step,
		addresses:     addresses,
		runs:          runs,
		events:        events,
		progressEvery: DefaultProgressEvery,
		maxSamples:    DefaultMaxSamples,
		now:           time.Now,
	}
}

// WithProgressEvery changes how many inside points pass between progress
// events. Non-positive values are ignored.
func (s *RegionService) WithProgressEvery(n int) *RegionService {
	if n > 0 {
		s.progressEvery = n
	}
	return s
}

// WithMaxSamples changes the largest grid, in sampled points, an
// enumeration or preview accepts. Non-positive values are ignored.
func (s *RegionService) WithMaxSamples(n int) *RegionService {
	if n > 0 {
		s.maxSamples = n
	}
	return s
}

// SetStepSize switches the step used by enumerations started from now on.
func (s *RegionService) SetStepSize(name string) (domain.StepSize, error) {
	step, err := domain.ParseStepSize(name)
	if err != nil {
		return 0, err
	}
	if err := s.step.Set(step); err != nil {
		return 0, err
	}
	return step, nil
}

// StepSize returns the step enumerations currently use.
func (s *RegionService) StepSize() domain.StepSize {
	return s.step.Get()
}

// Counters returns the geocoding call totals.
func (s *RegionService) Counters() domain.CounterSnapshot {
	return s.resolver.Counters()
}

// LocateAddress returns the coordinate of a typed address.
func (s *RegionService) LocateAddress(ctx context.Context, text string) (domain.Coordinate, error) {
	return s.resolver.Forward(ctx, text)
}

// Enumerate scans polygon on a grid of the given step and returns the
// distinct addresses found, with the call counters at completion. A
// provider failure aborts the scan and no partial set is returned.
func (s *RegionService) Enumerate(ctx context.Context, polygon domain.Polygon, step domain.StepSize) (*domain.AddressSet, domain.CounterSnapshot, error) {
	set, _, err := s.scan(ctx, polygon, step, nil)
	if err != nil {
		return nil, domain.CounterSnapshot{}, err
	}
	return set, s.resolver.Counters(), nil
}

// EnumerateRegion runs Enumerate with the current step size, stores the
// addresses and the run record, and publishes progress events.
func (s *RegionService) EnumerateRegion(ctx context.Context, polygon domain.Polygon) (*domain.EnumerationResult, error) {
	return s.EnumerateRegionWithID(ctx, uuid.NewString(), polygon)
}

// EnumerateRegionWithID is EnumerateRegion with a caller-chosen run ID, so
// a client can subscribe to progress events before the scan starts.
func (s *RegionService) EnumerateRegionWithID(ctx context.Context, runID string, polygon domain.Polygon) (*domain.EnumerationResult, error) {
	return s.EnumerateRegionWithStep(ctx, runID, polygon, s.step.Get())
}

// EnumerateRegionWithStep is EnumerateRegionWithID at an explicit step.
// Background jobs use it with the step captured when they were queued.
func (s *RegionService) EnumerateRegionWithStep(ctx context.Context, runID string, polygon domain.Polygon, step domain.StepSize) (*domain.EnumerationResult, error) {
	log := logging.FromContext(ctx).With("run_id", runID)

	ctx, span := tracer.Start(ctx, "RegionService.EnumerateRegion")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Int("polygon.vertices", len(polygon)),
		attribute.Float64("grid.step", float64(step)),
	)

	started := s.now()
	progress := func(st scanStats, found int) {
		if s.events == nil || st.inside%s.progressEvery != 0 {
			return
		}
		s.publish(ctx, &domain.EnumerationProgress{
			RunID: runID, Processed: st.samples, Inside: st.inside, Addresses: found,
		})
	}

	set, st, err := s.scan(ctx, polygon, step, progress)
	metrics.EnumerationDuration.Observe(s.now().Sub(started).Seconds())
	metrics.GridPoints.WithLabelValues("sampled").Add(float64(st.samples))
	metrics.GridPoints.WithLabelValues("inside").Add(float64(st.inside))
	if err != nil {
		metrics.EnumerationsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("enumeration failed", "error", err, "samples", st.samples, "inside", st.inside)
		s.publish(ctx, &domain.EnumerationProgress{
			RunID: runID, Processed: st.samples, Inside: st.inside, Done: true, Error: err.Error(),
		})
		return nil, err
	}
	metrics.EnumerationsTotal.WithLabelValues("succeeded").Inc()

	counters := s.resolver.Counters()
	located := set.Located()
	stored, storeErr := s.store(ctx, located)

	run := &domain.EnumerationRun{
		ID:           runID,
		Polygon:      polygon,
		Step:         step,
		Samples:      st.samples,
		Inside:       st.inside,
		Addresses:    set.Len(),
		ReverseCalls: counters.ReverseCalls,
		ForwardCalls: counters.ForwardCalls,
		StartedAt:    started,
		FinishedAt:   s.now(),
	}
	if s.runs != nil {
		if err := s.runs.Insert(ctx, run); err != nil {
			log.Error("record enumeration run", "error", err)
			storeErr = errors.Join(storeErr, fmt.Errorf("record run: %w", err))
		}
	}

	span.SetAttributes(
		attribute.Float64(telemetry.MetricEnumerationSeconds, run.FinishedAt.Sub(started).Seconds()),
		attribute.Int64(telemetry.MetricReverseCalls, int64(counters.ReverseCalls)),
		attribute.Int64(telemetry.MetricForwardCalls, int64(counters.ForwardCalls)),
		attribute.Int(telemetry.MetricAddressesFound, set.Len()),
	)

	s.publish(ctx, &domain.EnumerationProgress{
		RunID: runID, Processed: st.samples, Inside: st.inside, Addresses: set.Len(), Done: true,
	})
	log.Info("enumeration complete",
		"samples", st.samples, "inside", st.inside, "addresses", set.Len(),
		"reverse_calls", counters.ReverseCalls, "step", float64(step))

	result := &domain.EnumerationResult{
		RunID:        runID,
		Addresses:    set.Sorted(),
		ReverseCalls: counters.ReverseCalls,
		ForwardCalls: counters.ForwardCalls,
		Samples:      st.samples,
		Inside:       st.inside,
		Step:         step,
		Stored:       stored && storeErr == nil,
	}
	if storeErr != nil {
		result.StoreError = storeErr.Error()
	}
	return result, nil
}

// PreviewRegion counts the grid points an enumeration of polygon would
// visit and query, without calling the provider.
func (s *RegionService) PreviewRegion(ctx context.Context, polygon domain.Polygon) (*domain.RegionPreview, error) {
	step := s.step.Get()
	bounds, seq, err := s.lattice(polygon, step)
	if err != nil {
		return nil, err
	}

	p := &domain.RegionPreview{
		Step:       step,
		StepName:   step.Name(),
		StepMeters: geospatial.StepMeters((bounds.MinLat+bounds.MaxLat)/2, float64(step)),
		Bounds:     bounds,
	}
	for pt := range seq {
		if p.Samples%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		p.Samples++
		if geospatial.PointInPolygon(pt, polygon) {
			p.Inside++
		}
	}
	p.MaxReverses = p.Inside
	return p, nil
}

// ListRuns returns the most recent enumeration runs.
func (s *RegionService) ListRuns(ctx context.Context, limit int) ([]domain.EnumerationRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.runs.ListRecent(ctx, limit)
}

type scanStats struct {
	samples int
	inside  int
}

// scan is the sequential grid walk. progress, if set, is called after each
// inside point has been resolved.
func (s *RegionService) scan(ctx context.Context, polygon domain.Polygon, step domain.StepSize, progress func(scanStats, int)) (*domain.AddressSet, scanStats, error) {
	var st scanStats
	_, seq, err := s.lattice(polygon, step)
	if err != nil {
		return nil, st, err
	}

	log := logging.FromContext(ctx)
	set := domain.NewAddressSet()
	for pt := range seq {
		if err := ctx.Err(); err != nil {
			return nil, st, err
		}
		st.samples++
		if !geospatial.PointInPolygon(pt, polygon) {
			continue
		}
		st.inside++

		addr, ok, err := s.resolver.Reverse(ctx, pt)
		if err != nil {
			return nil, st, err
		}
		if ok {
			set.Add(addr, pt)
		}
		log.Debug("queried point", "lat", pt.Lat, "lng", pt.Lng, "address", addr)

		if progress != nil {
			progress(st, set.Len())
		}
	}
	return set, st, nil
}

// lattice validates polygon and step and returns the bounds and grid to
// walk. Grids larger than maxSamples are rejected before any work is done.
func (s *RegionService) lattice(polygon domain.Polygon, step domain.StepSize) (domain.BoundingBox, iter.Seq[domain.Coordinate], error) {
	if err := ValidatePolygon(polygon); err != nil {
		return domain.BoundingBox{}, nil, err
	}
	bounds, err := geospatial.ComputeBounds(polygon)
	if err != nil {
		return domain.BoundingBox{}, nil, err
	}
	rows, cols, err := geospatial.GridSize(bounds, step)
	if err != nil {
		return domain.BoundingBox{}, nil, err
	}
	if rows <= 0 || cols <= 0 || rows > s.maxSamples/cols {
		return domain.BoundingBox{}, nil, fmt.Errorf(
			"%w: grid of %d x %d points exceeds the limit of %d samples, use a coarser step or a smaller region",
			domain.ErrInvalidInput, rows, cols, s.maxSamples)
	}
	seq, err := geospatial.Sample(bounds, step)
	if err != nil {
		return domain.BoundingBox{}, nil, err
	}
	return bounds, seq, nil
}

// store reports whether every located address is in the address store.
func (s *RegionService) store(ctx context.Context, located []domain.LocatedAddress) (bool, error) {
	if s.addresses == nil {
		return false, nil
	}
	if len(located) == 0 {
		return true, nil
	}
	n, err := s.addresses.UpsertBatch(ctx, located)
	if err != nil {
		logging.FromContext(ctx).Error("store enumerated addresses", "error", err, "count", len(located))
		return false, fmt.Errorf("store addresses: %w", err)
	}
	metrics.AddressesStored.Add(float64(n))
	return true, nil
}

func (s *RegionService) publish(ctx context.Context, p *domain.EnumerationProgress) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishProgress(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("publish enumeration progress", "error", err)
	}
}

// ValidatePolygon checks that p has enough finite vertices to enumerate.
func ValidatePolygon(p domain.Polygon) error {
	if len(p) < domain.MinPolygonVertices {
		return fmt.Errorf("%w: polygon needs at least %d vertices, got %d",
			domain.ErrInvalidInput, domain.MinPolygonVertices, len(p))
	}
	for i, c := range p {
		if !finite(c.Lat) || !finite(c.Lng) {
			return fmt.Errorf("%w: vertex %d is not a finite coordinate", domain.ErrInvalidInput, i)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
