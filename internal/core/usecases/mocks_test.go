package usecases_test

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// --- Mock GeocodeProvider ---

type mockProvider struct {
	mu          sync.Mutex
	reverseFn   func(ctx context.Context, c domain.Coordinate) (string, bool, error)
	forwardFn   func(ctx context.Context, address string) (domain.Coordinate, bool, error)
	reverseSeen []domain.Coordinate
	forwardSeen []string
}

func (m *mockProvider) ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, bool, error) {
	m.mu.Lock()
	m.reverseSeen = append(m.reverseSeen, c)
	m.mu.Unlock()
	if m.reverseFn != nil {
		return m.reverseFn(ctx, c)
	}
	return "", false, nil
}

func (m *mockProvider) ForwardGeocode(ctx context.Context, address string) (domain.Coordinate, bool, error) {
	m.mu.Lock()
	m.forwardSeen = append(m.forwardSeen, address)
	m.mu.Unlock()
	if m.forwardFn != nil {
		return m.forwardFn(ctx, address)
	}
	return domain.Coordinate{}, false, nil
}

func (m *mockProvider) reverseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reverseSeen)
}

// --- Mock AddressRepository ---

type mockAddressRepo struct {
	upsertFn    func(ctx context.Context, addrs []domain.LocatedAddress) (int64, error)
	searchFn    func(ctx context.Context, q domain.AddressQuery) ([]domain.AddressRecord, int, error)
	getByIDFn   func(ctx context.Context, id int64) (*domain.AddressRecord, error)
	setFlierFn  func(ctx context.Context, id int64, sent bool) (*domain.AddressRecord, error)
	upserted    [][]domain.LocatedAddress
	lastQueries []domain.AddressQuery
}

func (m *mockAddressRepo) UpsertBatch(ctx context.Context, addrs []domain.LocatedAddress) (int64, error) {
	m.upserted = append(m.upserted, addrs)
	if m.upsertFn != nil {
		return m.upsertFn(ctx, addrs)
	}
	return int64(len(addrs)), nil
}

func (m *mockAddressRepo) Search(ctx context.Context, q domain.AddressQuery) ([]domain.AddressRecord, int, error) {
	m.lastQueries = append(m.lastQueries, q)
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return nil, 0, nil
}

func (m *mockAddressRepo) GetByID(ctx context.Context, id int64) (*domain.AddressRecord, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockAddressRepo) SetFlierSent(ctx context.Context, id int64, sent bool) (*domain.AddressRecord, error) {
	if m.setFlierFn != nil {
		return m.setFlierFn(ctx, id, sent)
	}
	return nil, domain.ErrNotFound
}

// --- Mock RunRepository ---

type mockRunRepo struct {
	inserted []*domain.EnumerationRun
	err      error
}

func (m *mockRunRepo) Insert(ctx context.Context, run *domain.EnumerationRun) error {
	m.inserted = append(m.inserted, run)
	return m.err
}

func (m *mockRunRepo) ListRecent(ctx context.Context, limit int) ([]domain.EnumerationRun, error) {
	var out []domain.EnumerationRun
	for i := len(m.inserted) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.inserted[i])
	}
	return out, m.err
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	events []domain.EnumerationProgress
}

func (m *mockPublisher) PublishProgress(ctx context.Context, p *domain.EnumerationProgress) error {
	m.events = append(m.events, *p)
	return nil
}

// --- Mock CacheService ---

var errCacheMiss = errors.New("cache miss")

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// unitSquare is the square with corners (0,0) and (1,1).
var unitSquare = domain.Polygon{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}, {Lat: 1, Lng: 0}}

func nanValue() float64 { return math.NaN() }
