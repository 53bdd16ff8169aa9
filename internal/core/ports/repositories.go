package ports

import (
	"context"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// AddressRepository persists exported addresses.
type AddressRepository interface {
	// UpsertBatch stores addresses; an address already present keeps its
	// flier status and gets its exported_at refreshed. Returns rows written.
	UpsertBatch(ctx context.Context, addrs []domain.LocatedAddress) (int64, error)
	Search(ctx context.Context, q domain.AddressQuery) ([]domain.AddressRecord, int, error)
	GetByID(ctx context.Context, id int64) (*domain.AddressRecord, error)
	SetFlierSent(ctx context.Context, id int64, sent bool) (*domain.AddressRecord, error)
}

// RunRepository records completed enumerations.
type RunRepository interface {
	Insert(ctx context.Context, run *domain.EnumerationRun) error
	ListRecent(ctx context.Context, limit int) ([]domain.EnumerationRun, error)
}
