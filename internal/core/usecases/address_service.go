package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/samirrijal/canvass/internal/core/domain"
	"github.com/samirrijal/canvass/internal/core/ports"
)

// MaxExportRecords caps how many stored addresses one export returns.
const MaxExportRecords = 10000

// AddressService handles stored, exported addresses.
type AddressService struct {
	addresses ports.AddressRepository
}

// NewAddressService creates a new AddressService.
func NewAddressService(addresses ports.AddressRepository) *AddressService {
	return &AddressService{addresses: addresses}
}

// Search returns stored addresses matching q and the total match count.
func (s *AddressService) Search(ctx context.Context, q domain.AddressQuery) ([]domain.AddressRecord, int, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Bounds != nil && (q.Bounds.MinLat > q.Bounds.MaxLat || q.Bounds.MinLng > q.Bounds.MaxLng) {
		return nil, 0, fmt.Errorf("%w: bounds min exceeds max", domain.ErrInvalidInput)
	}
	return s.addresses.Search(ctx, q)
}

// GetByID returns one stored address.
func (s *AddressService) GetByID(ctx context.Context, id int64) (*domain.AddressRecord, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid address id %d", domain.ErrInvalidInput, id)
	}
	return s.addresses.GetByID(ctx, id)
}

// MarkFlierSent records whether a flier went out to the address.
func (s *AddressService) MarkFlierSent(ctx context.Context, id int64, sent bool) (*domain.AddressRecord, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid address id %d", domain.ErrInvalidInput, id)
	}
	return s.addresses.SetFlierSent(ctx, id, sent)
}

// ExportRecords returns up to MaxExportRecords stored addresses matching q,
// paging through the repository.
func (s *AddressService) ExportRecords(ctx context.Context, q domain.AddressQuery) ([]domain.AddressRecord, error) {
	q.Text = strings.TrimSpace(q.Text)
	q.Offset = 0
	q.Limit = 500

	var out []domain.AddressRecord
	for len(out) < MaxExportRecords {
		page, total, err := s.addresses.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < q.Limit || len(out) >= total {
			break
		}
		q.Offset += len(page)
	}
	if len(out) > MaxExportRecords {
		out = out[:MaxExportRecords]
	}
	return out, nil
}
