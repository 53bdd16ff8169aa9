package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/usecases"
)

func TestResolver_Reverse_StripsCountrySuffix(t *testing.T) {
	p := &mockProvider{reverseFn: func(ctx context.Context, c domain.Coordinate) (string, bool, error) {
		return "123 Main St, Springfield, IL, USA", true, nil
	}}
	r := usecases.NewResolver(p, nil)

	addr, ok, err := r.Reverse(context.Background(), domain.Coordinate{Lat: 39.8, Lng: -89.6})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "123 Main St, Springfield, IL", addr)
	assert.Equal(t, uint64(1), r.Counters().ReverseCalls)
}

func TestResolver_Reverse_NoResult(t *testing.T) {
	p := &mockProvider{}
	r := usecases.NewResolver(p, nil)

	addr, ok, err := r.Reverse(context.Background(), domain.Coordinate{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, addr)
	assert.Equal(t, uint64(1), r.Counters().ReverseCalls, "a miss still counts as a call")
}

func TestResolver_Reverse_BlankAddressIsNoResult(t *testing.T) {
	p := &mockProvider{reverseFn: func(ctx context.Context, c domain.Coordinate) (string, bool, error) {
		return "   ", true, nil
	}}
	r := usecases.NewResolver(p, nil)

	_, ok, err := r.Reverse(context.Background(), domain.Coordinate{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_Reverse_ProviderError(t *testing.T) {
	boom := errors.New("quota exceeded")
	p := &mockProvider{reverseFn: func(ctx context.Context, c domain.Coordinate) (string, bool, error) {
		return "", false, boom
	}}
	r := usecases.NewResolver(p, nil)

	_, _, err := r.Reverse(context.Background(), domain.Coordinate{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), r.Counters().ReverseCalls)
}

func TestResolver_CustomSuffix(t *testing.T) {
	p := &mockProvider{reverseFn: func(ctx context.Context, c domain.Coordinate) (string, bool, error) {
		return "1 Rue de Rivoli, Paris, France", true, nil
	}}
	r := usecases.NewResolver(p, nil).WithCountrySuffix(", France")

	addr, _, err := r.Reverse(context.Background(), domain.Coordinate{})
	require.NoError(t, err)
	assert.Equal(t, "1 Rue de Rivoli, Paris", addr)
}

func TestResolver_Forward(t *testing.T) {
	want := domain.Coordinate{Lat: 40.7484, Lng: -73.9857}
	p := &mockProvider{forwardFn: func(ctx context.Context, address string) (domain.Coordinate, bool, error) {
		return want, true, nil
	}}
	r := usecases.NewResolver(p, nil)

	got, err := r.Forward(context.Background(), "  350 5th Ave, New York  ")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"350 5th Ave, New York"}, p.forwardSeen)
	assert.Equal(t, domain.CounterSnapshot{ForwardCalls: 1}, r.Counters())
}

func TestResolver_Forward_EmptyIsInvalidAndUncounted(t *testing.T) {
	p := &mockProvider{}
	r := usecases.NewResolver(p, nil)

	_, err := r.Forward(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, p.forwardSeen)
	assert.Equal(t, uint64(0), r.Counters().ForwardCalls)
}

func TestResolver_Forward_NoMatch(t *testing.T) {
	r := usecases.NewResolver(&mockProvider{}, nil)

	_, err := r.Forward(context.Background(), "nowhere at all")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, uint64(1), r.Counters().ForwardCalls)
}

func TestResolver_Forward_ProviderError(t *testing.T) {
	p := &mockProvider{forwardFn: func(ctx context.Context, address string) (domain.Coordinate, bool, error) {
		return domain.Coordinate{}, false, errors.New("REQUEST_DENIED")
	}}
	r := usecases.NewResolver(p, nil)

	_, err := r.Forward(context.Background(), "somewhere")
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestResolver_SharedCountersAreConcurrencySafe(t *testing.T) {
	counters := &domain.CallCounters{}
	p := &mockProvider{reverseFn: func(ctx context.Context, c domain.Coordinate) (string, bool, error) {
		return "x", true, nil
	}}
	a := usecases.NewResolver(p, counters)
	b := usecases.NewResolver(p, counters)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _, _, _ = a.Reverse(context.Background(), domain.Coordinate{}) }()
		go func() { defer wg.Done(); _, _, _ = b.Reverse(context.Background(), domain.Coordinate{}) }()
	}
	wg.Wait()

	assert.Equal(t, uint64(100), counters.Snapshot().ReverseCalls)
	assert.Equal(t, 100, p.reverseCount())
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in, suffix, want string
	}{
		{"123 Main St, Springfield, IL, USA", ", USA", "123 Main St, Springfield, IL"},
		{"  10 Elm Rd, Austin, TX, USA  ", ", USA", "10 Elm Rd, Austin, TX"},
		{"10 Elm Rd, Austin, TX", ", USA", "10 Elm Rd, Austin, TX"},
		{"USA Plaza, Denver, CO, usa", ", USA", "USA Plaza, Denver, CO, usa"},
		{"10 Elm Rd, USA", "", "10 Elm Rd, USA"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, usecases.NormalizeAddress(tt.in, tt.suffix))
		})
	}
}
