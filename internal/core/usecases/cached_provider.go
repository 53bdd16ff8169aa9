package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/ports"
	"github.com/samirrijal/canvass/internal/pkg/metrics"
)

// DefaultGeocodeTTL is how long cached geocode answers live, in seconds.
const DefaultGeocodeTTL = 7 * 24 * 3600

// CachedProvider is a GeocodeProvider that answers from a cache first.
// Misses, including "no result" answers, are cached; errors are not.
type CachedProvider struct {
	next  ports.GeocodeProvider
	cache ports.CacheService
	ttl   int
}

type cachedReverse struct {
	Address string `json:"address"`
	OK      bool   `json:"ok"`
}

type cachedForward struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	OK  bool    `json:"ok"`
}

// NewCachedProvider wraps next with cache. A non-positive ttl uses
// DefaultGeocodeTTL.
func NewCachedProvider(next ports.GeocodeProvider, cache ports.CacheService, ttlSeconds int) *CachedProvider {
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultGeocodeTTL
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttlSeconds}
}

func reverseKey(c domain.Coordinate) string {
	return fmt.Sprintf("geocode:rev:%.6f:%.6f", c.Lat, c.Lng)
}

func forwardKey(address string) string {
	return "geocode:fwd:" + strings.ToLower(strings.TrimSpace(address))
}

func (p *CachedProvider) ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, bool, error) {
	key := reverseKey(c)
	if data, err := p.cache.Get(ctx, key); err == nil {
		var v cachedReverse
		if err := json.Unmarshal(data, &v); err == nil {
			metrics.CacheHits.WithLabelValues("reverse").Inc()
			return v.Address, v.OK, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("reverse").Inc()

	addr, ok, err := p.next.ReverseGeocode(ctx, c)
	if err != nil {
		return "", false, err
	}
	if data, err := json.Marshal(cachedReverse{Address: addr, OK: ok}); err == nil {
		_ = p.cache.Set(ctx, key, data, p.ttl)
	}
	return addr, ok, nil
}

func (p *CachedProvider) ForwardGeocode(ctx context.Context, address string) (domain.Coordinate, bool, error) {
	key := forwardKey(address)
	if data, err := p.cache.Get(ctx, key); err == nil {
		var v cachedForward
		if err := json.Unmarshal(data, &v); err == nil {
			metrics.CacheHits.WithLabelValues("forward").Inc()
			return domain.Coordinate{Lat: v.Lat, Lng: v.Lng}, v.OK, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("forward").Inc()

	c, ok, err := p.next.ForwardGeocode(ctx, address)
	if err != nil {
		return domain.Coordinate{}, false, err
	}
	if data, err := json.Marshal(cachedForward{Lat: c.Lat, Lng: c.Lng, OK: ok}); err == nil {
		_ = p.cache.Set(ctx, key, data, p.ttl)
	}
	return c, ok, nil
}
