package ports

import (
	"context"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// GeocodeProvider is the external geocoding service.
//
// A lookup with no match is not an error: ReverseGeocode returns ok=false
// and ForwardGeocode returns ok=false. Errors are reserved for failures of
// the service itself (network, auth, quota, malformed responses).
type GeocodeProvider interface {
	ReverseGeocode(ctx context.Context, c domain.Coordinate) (address string, ok bool, err error)
	ForwardGeocode(ctx context.Context, address string) (c domain.Coordinate, ok bool, err error)
}

// EventPublisher publishes enumeration events to a message broker.
type EventPublisher interface {
	PublishProgress(ctx context.Context, p *domain.EnumerationProgress) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
