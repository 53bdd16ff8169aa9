package http_test

import (
	"context"
	"sync"
	"time"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// ---- Mock collaborators ----

type mockProvider struct {
	mu        sync.Mutex
	reverseFn func(ctx context.Context, c domain.Coordinate) (string, bool, error)
	forwardFn func(ctx context.Context, address string) (domain.Coordinate, bool, error)
	reverses  int
}

func (m *mockProvider) ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, bool, error) {
	m.mu.Lock()
	m.reverses++
	m.mu.Unlock()
	if m.reverseFn != nil {
		return m.reverseFn(ctx, c)
	}
	return "", false, nil
}

func (m *mockProvider) ForwardGeocode(ctx context.Context, address string) (domain.Coordinate, bool, error) {
	if m.forwardFn != nil {
		return m.forwardFn(ctx, address)
	}
	return domain.Coordinate{}, false, nil
}

func (m *mockProvider) reverseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reverses
}

type mockAddressRepo struct {
	searchFn   func(ctx context.Context, q domain.AddressQuery) ([]domain.AddressRecord, int, error)
	getByIDFn  func(ctx context.Context, id int64) (*domain.AddressRecord, error)
	setFlierFn func(ctx context.Context, id int64, sent bool) (*domain.AddressRecord, error)
	upsertErr  error
	upserted   []domain.LocatedAddress
	lastQuery  domain.AddressQuery
}

func (m *mockAddressRepo) UpsertBatch(ctx context.Context, addrs []domain.LocatedAddress) (int64, error) {
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	m.upserted = append(m.upserted, addrs...)
	return int64(len(addrs)), nil
}

func (m *mockAddressRepo) Search(ctx context.Context, q domain.AddressQuery) ([]domain.AddressRecord, int, error) {
	m.lastQuery = q
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

type mockRunRepo struct {
	runs []domain.EnumerationRun
}

func (m *mockRunRepo) Insert(ctx context.Context, run *domain.EnumerationRun) error {
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockRunRepo) ListRecent(ctx context.Context, limit int) ([]domain.EnumerationRun, error) {
	if limit > len(m.runs) {
		limit = len(m.runs)
	}
	return m.runs[:limit], nil
}

type mockJobs struct {
	started []string
	polygon domain.Polygon
	step    domain.StepSize
	err     error
	pingErr error
}

func (m *mockJobs) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockJobs) StartEnumeration(ctx context.Context, runID string, polygon domain.Polygon, step domain.StepSize) error {
	if m.err != nil {
		return m.err
	}
	m.started = append(m.started, runID)
	m.polygon = polygon
	m.step = step
	return nil
}

// tinySquare spans 0.001 degrees; at the coarse step it has 9 grid
// samples of which 4 lie inside.
var tinySquare = domain.Polygon{
	{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.001}, {Lat: 0.001, Lng: 0.001}, {Lat: 0.001, Lng: 0},
}

const tinySquareJSON = `{"coordinates":[{"lat":0,"lng":0},{"lat":0,"lng":0.001},{"lat":0.001,"lng":0.001},{"lat":0.001,"lng":0}]}`

var fixedTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
