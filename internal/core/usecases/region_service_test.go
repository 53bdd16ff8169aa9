package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/usecases"
)

// addressPerPoint names every queried point by its coordinate.
func addressPerPoint(ctx context.Context, c domain.Coordinate) (string, bool, error) {
	return fmt.Sprintf("%.1f %.1f St, USA", c.Lat, c.Lng), true, nil
}

func newRegionService(p *mockProvider, step domain.StepSize) *usecases.RegionService {
	return usecases.NewRegionService(usecases.NewResolver(p, nil), domain.NewStepSetting(step), nil, nil, nil)
}

func TestRegionService_Enumerate_Square(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	svc := newRegionService(p, domain.DefaultStep)

	set, counters, err := svc.Enumerate(context.Background(), unitSquare, 0.5)
	require.NoError(t, err)

	// The ray cast excludes the max-lat row and max-lng column of the square.
	assert.Equal(t, uint64(4), counters.ReverseCalls)
	assert.LessOrEqual(t, counters.ReverseCalls, uint64(9))
	assert.Equal(t, []string{"0.0 0.0 St", "0.0 0.5 St", "0.5 0.0 St", "0.5 0.5 St"}, set.Sorted())
	for _, c := range p.reverseSeen {
		assert.True(t, c.Lat >= 0 && c.Lat <= 1 && c.Lng >= 0 && c.Lng <= 1, "point %v outside bounds", c)
	}
}

func TestRegionService_Enumerate_Dedup(t *testing.T) {
	p := &mockProvider{reverseFn: func(ctx context.Context, c domain.Coordinate) (string, bool, error) {
		return "123 Main St, Springfield, IL, USA", true, nil
	}}
	svc := newRegionService(p, domain.DefaultStep)

	set, counters, err := svc.Enumerate(context.Background(), unitSquare, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"123 Main St, Springfield, IL"}, set.Sorted())
	assert.Equal(t, uint64(4), counters.ReverseCalls)
}

func TestRegionService_Enumerate_SkipsNoResult(t *testing.T) {
	p := &mockProvider{reverseFn: func(ctx context.Context, c domain.Coordinate) (string, bool, error) {
		if c.Lat == 0 {
			return "", false, nil
		}
		return "1 Ridge Rd", true, nil
	}}
	svc := newRegionService(p, domain.DefaultStep)

	set, _, err := svc.Enumerate(context.Background(), unitSquare, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.True(t, set.Contains("1 Ridge Rd"))
}

func TestRegionService_Enumerate_TooFewVertices(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	svc := newRegionService(p, domain.DefaultStep)

	set, _, err := svc.Enumerate(context.Background(), domain.Polygon{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}, 0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, set)
	assert.Zero(t, p.reverseCount())
	assert.Zero(t, svc.Counters().ReverseCalls)
}

func TestRegionService_Enumerate_NonFiniteVertex(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	svc := newRegionService(p, domain.DefaultStep)

	nan := domain.Polygon{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: nanValue(), Lng: 1}}
	_, _, err := svc.Enumerate(context.Background(), nan, 0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, p.reverseCount())
}

func TestRegionService_Enumerate_InvalidStep(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	svc := newRegionService(p, domain.DefaultStep)

	_, _, err := svc.Enumerate(context.Background(), unitSquare, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, p.reverseCount())
}

func TestRegionService_Enumerate_ProviderErrorAborts(t *testing.T) {
	calls := 0
	p := &mockProvider{reverseFn: func(ctx context.Context, c domain.Coordinate) (string, bool, error) {
		calls++
		if calls == 3 {
			return "", false, errors.New("OVER_QUERY_LIMIT")
		}
		return fmt.Sprintf("%d Oak Ave", calls), true, nil
	}}
	svc := newRegionService(p, domain.DefaultStep)

	set, _, err := svc.Enumerate(context.Background(), unitSquare, 0.5)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Nil(t, set)
	assert.Equal(t, 3, calls, "no calls after the failure")
}

func TestRegionService_Enumerate_Cancelled(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	svc := newRegionService(p, domain.DefaultStep)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := svc.Enumerate(ctx, unitSquare, 0.5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.reverseCount())
}

func TestRegionService_Enumerate_Idempotent(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	svc := newRegionService(p, domain.DefaultStep)

	first, _, err := svc.Enumerate(context.Background(), unitSquare, 0.25)
	require.NoError(t, err)
	second, counters, err := svc.Enumerate(context.Background(), unitSquare, 0.25)
	require.NoError(t, err)

	assert.Equal(t, first.Sorted(), second.Sorted())
	assert.Equal(t, uint64(2*first.Len()), counters.ReverseCalls, "counters accumulate across runs")
}

func TestRegionService_EnumerateRegion_PersistsAndPublishes(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	addrs := &mockAddressRepo{}
	runs := &mockRunRepo{}
	events := &mockPublisher{}
	svc := usecases.NewRegionService(
		usecases.NewResolver(p, nil), domain.NewStepSetting(0.5), addrs, runs, events,
	).WithProgressEvery(2)

	res, err := svc.EnumerateRegion(context.Background(), unitSquare)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Addresses, 4)
	assert.Equal(t, 9, res.Samples)
	assert.Equal(t, 4, res.Inside)
	assert.Equal(t, domain.StepSize(0.5), res.Step)
	assert.Equal(t, uint64(4), res.ReverseCalls)
	assert.True(t, res.Stored)
	assert.Empty(t, res.StoreError)

	require.Len(t, addrs.upserted, 1)
	assert.Len(t, addrs.upserted[0], 4)

	require.Len(t, runs.inserted, 1)
	assert.Equal(t, res.RunID, runs.inserted[0].ID)
	assert.Equal(t, 4, runs.inserted[0].Addresses)

	require.Len(t, events.events, 3)
	assert.Equal(t, 2, events.events[0].Inside)
	assert.Equal(t, 4, events.events[1].Inside)
	last := events.events[2]
	assert.True(t, last.Done)
	assert.Equal(t, 4, last.Addresses)
	for _, e := range events.events {
		assert.Equal(t, res.RunID, e.RunID)
	}
}

func TestRegionService_EnumerateRegion_StoreFailureIsReported(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	addrs := &mockAddressRepo{upsertFn: func(ctx context.Context, a []domain.LocatedAddress) (int64, error) {
		return 0, errors.New("connection refused")
	}}
	runs := &mockRunRepo{err: errors.New("disk full")}
	svc := usecases.NewRegionService(usecases.NewResolver(p, nil), domain.NewStepSetting(0.5), addrs, runs, nil)

	res, err := svc.EnumerateRegion(context.Background(), unitSquare)
	require.NoError(t, err, "paid-for addresses are still returned")
	assert.Len(t, res.Addresses, 4)
	assert.False(t, res.Stored)
	assert.Contains(t, res.StoreError, "store addresses: connection refused")
	assert.Contains(t, res.StoreError, "record run: disk full")
}

func TestRegionService_EnumerateRegion_RunRecordFailureIsReported(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	runs := &mockRunRepo{err: errors.New("disk full")}
	svc := usecases.NewRegionService(usecases.NewResolver(p, nil), domain.NewStepSetting(0.5), &mockAddressRepo{}, runs, nil)

	res, err := svc.EnumerateRegion(context.Background(), unitSquare)
	require.NoError(t, err)
	assert.False(t, res.Stored)
	assert.Equal(t, "record run: disk full", res.StoreError)
}

func TestRegionService_EnumerateRegion_NoStoreIsNotStored(t *testing.T) {
	svc := newRegionService(&mockProvider{reverseFn: addressPerPoint}, 0.5)

	res, err := svc.EnumerateRegion(context.Background(), unitSquare)
	require.NoError(t, err)
	assert.False(t, res.Stored)
	assert.Empty(t, res.StoreError)
}

func TestRegionService_EnumerateRegionWithStep_IgnoresCurrentSetting(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	svc := newRegionService(p, 0.25)

	res, err := svc.EnumerateRegionWithStep(context.Background(), "job-1", unitSquare, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "job-1", res.RunID)
	assert.Equal(t, domain.StepSize(0.5), res.Step)
	assert.Equal(t, 9, res.Samples)
	assert.Equal(t, domain.StepSize(0.25), svc.StepSize())
}

func TestRegionService_EnumerateRegion_GridOverLimit(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	svc := newRegionService(p, 0.5).WithMaxSamples(8)

	_, err := svc.EnumerateRegion(context.Background(), unitSquare)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "3 x 3")
	assert.Zero(t, p.reverseCount(), "rejected before any provider call")

	_, _, err = svc.Enumerate(context.Background(), unitSquare, 0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	res, err := svc.WithMaxSamples(9).EnumerateRegion(context.Background(), unitSquare)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Samples)
}

func TestRegionService_EnumerateRegion_ContinentalGridRejected(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	svc := newRegionService(p, domain.StepFine)
	huge := domain.Polygon{{Lat: -80, Lng: -170}, {Lat: -80, Lng: 170}, {Lat: 80, Lng: 170}, {Lat: 80, Lng: -170}}

	_, err := svc.EnumerateRegion(context.Background(), huge)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.PreviewRegion(context.Background(), huge)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, p.reverseCount())
}

func TestRegionService_EnumerateRegion_FailurePublishesDone(t *testing.T) {
	p := &mockProvider{reverseFn: func(ctx context.Context, c domain.Coordinate) (string, bool, error) {
		return "", false, errors.New("REQUEST_DENIED")
	}}
	addrs := &mockAddressRepo{}
	events := &mockPublisher{}
	svc := usecases.NewRegionService(usecases.NewResolver(p, nil), domain.NewStepSetting(0.5), addrs, nil, events)

	res, err := svc.EnumerateRegionWithID(context.Background(), "run-1", unitSquare)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Nil(t, res)
	assert.Empty(t, addrs.upserted)
	require.Len(t, events.events, 1)
	assert.True(t, events.events[0].Done)
	assert.Equal(t, "run-1", events.events[0].RunID)
	assert.NotEmpty(t, events.events[0].Error)
}

func TestRegionService_StepSize(t *testing.T) {
	svc := newRegionService(&mockProvider{}, domain.DefaultStep)
	assert.Equal(t, domain.StepMedium, svc.StepSize())

	step, err := svc.SetStepSize("fine")
	require.NoError(t, err)
	assert.Equal(t, domain.StepFine, step)
	assert.Equal(t, domain.StepFine, svc.StepSize())

	_, err = svc.SetStepSize("enormous")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.StepFine, svc.StepSize(), "failed set leaves the step unchanged")
}

func TestRegionService_StepSizeAppliesToNextRun(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	step := domain.NewStepSetting(0.5)
	svc := usecases.NewRegionService(usecases.NewResolver(p, nil), step, nil, nil, nil)

	coarse, err := svc.EnumerateRegion(context.Background(), unitSquare)
	require.NoError(t, err)

	require.NoError(t, step.Set(0.25))
	fine, err := svc.EnumerateRegion(context.Background(), unitSquare)
	require.NoError(t, err)

	assert.Equal(t, 9, coarse.Samples)
	assert.Equal(t, 25, fine.Samples)
	assert.Greater(t, len(fine.Addresses), len(coarse.Addresses))
}

func TestRegionService_PreviewRegion(t *testing.T) {
	p := &mockProvider{}
	svc := newRegionService(p, 0.5)

	preview, err := svc.PreviewRegion(context.Background(), unitSquare)
	require.NoError(t, err)
	assert.Equal(t, 9, preview.Samples)
	assert.Equal(t, 4, preview.Inside)
	assert.Equal(t, 4, preview.MaxReverses)
	assert.Equal(t, domain.BoundingBox{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 1}, preview.Bounds)
	assert.Greater(t, preview.StepMeters, 0.0)
	assert.Zero(t, p.reverseCount(), "preview never calls the provider")
}

func TestRegionService_PreviewRegion_Invalid(t *testing.T) {
	svc := newRegionService(&mockProvider{}, domain.DefaultStep)
	_, err := svc.PreviewRegion(context.Background(), domain.Polygon{{Lat: 1, Lng: 1}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegionService_PreviewRegion_OverLimit(t *testing.T) {
	svc := newRegionService(&mockProvider{}, 0.5).WithMaxSamples(8)
	_, err := svc.PreviewRegion(context.Background(), unitSquare)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegionService_PreviewRegion_Cancelled(t *testing.T) {
	svc := newRegionService(&mockProvider{}, 0.5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.PreviewRegion(ctx, unitSquare)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegionService_LocateAddress(t *testing.T) {
	p := &mockProvider{forwardFn: func(ctx context.Context, address string) (domain.Coordinate, bool, error) {
		return domain.Coordinate{Lat: 1, Lng: 2}, true, nil
	}}
	svc := newRegionService(p, domain.DefaultStep)

	c, err := svc.LocateAddress(context.Background(), "1 Infinite Loop")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Lat: 1, Lng: 2}, c)
	assert.Equal(t, uint64(1), svc.Counters().ForwardCalls)
}

func TestRegionService_ListRuns(t *testing.T) {
	p := &mockProvider{reverseFn: addressPerPoint}
	runs := &mockRunRepo{}
	svc := usecases.NewRegionService(usecases.NewResolver(p, nil), domain.NewStepSetting(0.5), nil, runs, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.EnumerateRegion(context.Background(), unitSquare)
		require.NoError(t, err)
	}

	list, err := svc.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, runs.inserted[2].ID, list[0].ID)
}

func TestRegionService_ListRuns_NoRepo(t *testing.T) {
	svc := newRegionService(&mockProvider{}, domain.DefaultStep)
	list, err := svc.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
