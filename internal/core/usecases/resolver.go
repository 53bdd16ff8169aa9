package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/ports"
)

// DefaultCountrySuffix is stripped from reverse-geocoded addresses.
const DefaultCountrySuffix = ", USA"

// Resolver turns coordinates into addresses and back through a
// GeocodeProvider, counting every call it makes.
type Resolver struct {
	provider ports.GeocodeProvider
	counters *domain.CallCounters
	suffix   string
}

// NewResolver creates a Resolver. counters may be shared between resolvers;
// a nil counters gets a private instance.
func NewResolver(provider ports.GeocodeProvider, counters *domain.CallCounters) *Resolver {
	if counters == nil {
		counters = &domain.CallCounters{}
	}
	return &Resolver{provider: provider, counters: counters, suffix: DefaultCountrySuffix}
}

// WithCountrySuffix overrides the suffix stripped from reverse results.
// An empty suffix disables stripping.
func (r *Resolver) WithCountrySuffix(suffix string) *Resolver {
	r.suffix = suffix
	return r
}

// Reverse looks up the address at c. ok is false when the provider has no
// address there, which is a normal outcome for unmapped terrain.
func (r *Resolver) Reverse(ctx context.Context, c domain.Coordinate) (string, bool, error) {
	r.counters.IncReverse()

	addr, ok, err := r.provider.ReverseGeocode(ctx, c)
	if err != nil {
		return "", false, providerError("reverse geocode", err)
	}
	if !ok {
		return "", false, nil
	}

	addr = NormalizeAddress(addr, r.suffix)
	if addr == "" {
		return "", false, nil
	}
	return addr, true, nil
}

// Forward looks up the coordinate of a free-text address.
func (r *Resolver) Forward(ctx context.Context, text string) (domain.Coordinate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Coordinate{}, fmt.Errorf("%w: address must not be empty", domain.ErrInvalidInput)
	}

	r.counters.IncForward()

	c, ok, err := r.provider.ForwardGeocode(ctx, text)
	if err != nil {
		return domain.Coordinate{}, providerError("forward geocode", err)
	}
	if !ok {
		return domain.Coordinate{}, fmt.Errorf("%w: no match for %q", domain.ErrNotFound, text)
	}
	return c, nil
}

// Counters returns the current call totals.
func (r *Resolver) Counters() domain.CounterSnapshot {
	return r.counters.Snapshot()
}

// NormalizeAddress trims whitespace and removes suffix when the address
// ends with it. Matching is case-sensitive.
func NormalizeAddress(addr, suffix string) string {
	addr = strings.TrimSpace(addr)
	if suffix != "" {
		addr = strings.TrimSuffix(addr, suffix)
	}
	return addr
}

func providerError(op string, err error) error {
	if errors.Is(err, domain.ErrProvider) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrProvider, err)
}
