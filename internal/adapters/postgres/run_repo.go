package postgres

import (
	"context"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/samirrijal/canvass/internal/core/domain"
)

const srid = 4326

// RunRepo implements ports.RunRepository with pgx. The drawn polygon is
// stored as a PostGIS geometry.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Insert records a completed enumeration.
func (r *RunRepo) Insert(ctx context.Context, run *domain.EnumerationRun) error {
	wkb, err := EncodePolygon(run.Polygon)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO enumeration_runs
			(id, polygon, step, samples, inside, addresses, reverse_calls, forward_calls, started_at, finished_at)
		VALUES ($1, ST_GeomFromEWKB($2), $3, $4, $5, $6, $7, $8, $9, $10)
	`, run.ID, wkb, float64(run.Step), run.Samples, run.Inside, run.Addresses,
		int64(run.ReverseCalls), int64(run.ForwardCalls), run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRecent returns the latest runs, newest first.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]domain.EnumerationRun, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, ST_AsEWKB(polygon), step, samples, inside, addresses,
		       reverse_calls, forward_calls, started_at, finished_at
		FROM enumeration_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.EnumerationRun
	for rows.Next() {
		var (
			run              domain.EnumerationRun
			wkb              []byte
			step             float64
			reverse, forward int64
		)
		if err := rows.Scan(&run.ID, &wkb, &step, &run.Samples, &run.Inside, &run.Addresses,
			&reverse, &forward, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.Polygon, err = DecodePolygon(wkb); err != nil {
			return nil, err
		}
		run.Step = domain.StepSize(step)
		run.ReverseCalls = uint64(reverse)
		run.ForwardCalls = uint64(forward)
		out = append(out, run)
	}
	return out, rows.Err()
}

// EncodePolygon converts p to EWKB with SRID 4326. The ring is closed
// if the last vertex differs from the first.
func EncodePolygon(p domain.Polygon) ([]byte, error) {
	if len(p) < domain.MinPolygonVertices {
		return nil, fmt.Errorf("encode polygon: %w: %d vertices", domain.ErrInvalidInput, len(p))
	}
	flat := make([]float64, 0, (len(p)+1)*2)
	for _, c := range p {
		flat = append(flat, c.Lng, c.Lat)
	}
	if p[0] != p[len(p)-1] {
		flat = append(flat, p[0].Lng, p[0].Lat)
	}

	g := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(srid)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, fmt.Errorf("encode polygon: %w", err)
	}
	return data, nil
}

// DecodePolygon reads the outer ring of an EWKB polygon, dropping the
// closing vertex.
func DecodePolygon(data []byte) (domain.Polygon, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode polygon: %w", err)
	}
	poly, ok := g.(*geom.Polygon)
	if !ok || poly.NumLinearRings() == 0 {
		return nil, fmt.Errorf("decode polygon: unexpected geometry %T", g)
	}
	coords := poly.LinearRing(0).Coords()
	if n := len(coords); n > 1 && coords[0].Equal(geom.XY, coords[n-1]) {
		coords = coords[:n-1]
	}
	out := make(domain.Polygon, len(coords))
	for i, c := range coords {
		out[i] = domain.Coordinate{Lat: c.Y(), Lng: c.X()}
	}
	return out, nil
}
