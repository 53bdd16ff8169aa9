package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// AddressRepo implements ports.AddressRepository with pgx.
type AddressRepo struct {
	db *DB
}

// NewAddressRepo creates a new AddressRepo.
func NewAddressRepo(db *DB) *AddressRepo {
	return &AddressRepo{db: db}
}

const addressColumns = `id, address, lat, lng, exported_at, flier_sent, last_marked`

// UpsertBatch inserts all addresses in one statement. Existing addresses
// keep their flier status and have exported_at refreshed.
func (r *AddressRepo) UpsertBatch(ctx context.Context, addrs []domain.LocatedAddress) (int64, error) {
	if len(addrs) == 0 {
		return 0, nil
	}
	names := make([]string, len(addrs))
	lats := make([]float64, len(addrs))
	lngs := make([]float64, len(addrs))
	for i, a := range addrs {
		names[i] = a.Address
		lats[i] = a.Location.Lat
		lngs[i] = a.Location.Lng
	}

	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO exported_addresses (address, lat, lng, location, exported_at)
		SELECT a, la, ln, ST_SetSRID(ST_MakePoint(ln, la), 4326)::geography, now()
		FROM unnest($1::text[], $2::float8[], $3::float8[]) AS t(a, la, ln)
		ON CONFLICT (address) DO UPDATE
		SET exported_at = EXCLUDED.exported_at
	`, names, lats, lngs)
	if err != nil {
		return 0, fmt.Errorf("upsert addresses: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Search returns a page of addresses matching q, ordered by address, and
// the total number of matches.
func (r *AddressRepo) Search(ctx context.Context, q domain.AddressQuery) ([]domain.AddressRecord, int, error) {
	where, args := searchFilter(q)

	var total int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM exported_addresses`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count addresses: %w", err)
	}
	if total == 0 {
		return []domain.AddressRecord{}, 0, nil
	}

	args = append(args, q.Limit, q.Offset)
	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM exported_addresses%s ORDER BY address LIMIT $%d OFFSET $%d`,
		addressColumns, where, len(args)-1, len(args),
	), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search addresses: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AddressRecord, 0, q.Limit)
	for rows.Next() {
		rec, err := scanAddress(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("search addresses: %w", err)
	}
	return out, total, nil
}

// GetByID returns one address.
func (r *AddressRepo) GetByID(ctx context.Context, id int64) (*domain.AddressRecord, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+addressColumns+` FROM exported_addresses WHERE id = $1`, id)
	rec, err := scanAddress(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("address %d: %w", id, domain.ErrNotFound)
	}
	return rec, err
}

// SetFlierSent updates the flier status and stamps last_marked.
func (r *AddressRepo) SetFlierSent(ctx context.Context, id int64, sent bool) (*domain.AddressRecord, error) {
	row := r.db.Pool.QueryRow(ctx, `
		UPDATE exported_addresses
		SET flier_sent = $2, last_marked = now()
		WHERE id = $1
		RETURNING `+addressColumns, id, sent)
	rec, err := scanAddress(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("address %d: %w", id, domain.ErrNotFound)
	}
	return rec, err
}

func searchFilter(q domain.AddressQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.Text != "" {
		args = append(args, "%"+escapeLike(q.Text)+"%")
		conds = append(conds, fmt.Sprintf("address ILIKE $%d", len(args)))
	}
	if b := q.Bounds; b != nil {
		args = append(args, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
		n := len(args)
		conds = append(conds, fmt.Sprintf("lat BETWEEN $%d AND $%d AND lng BETWEEN $%d AND $%d", n-3, n-2, n-1, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanAddress(row pgx.Row) (*domain.AddressRecord, error) {
	var (
		rec    domain.AddressRecord
		marked pgtype.Timestamptz
	)
	if err := row.Scan(&rec.ID, &rec.Address, &rec.Lat, &rec.Lng, &rec.ExportedAt, &rec.FlierSent, &marked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan address: %w", err)
	}
	if marked.Valid {
		t := marked.Time
		rec.LastMarked = &t
	}
	return &rec, nil
}
