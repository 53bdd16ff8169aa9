package geospatial

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// ComputeBounds returns the axis-aligned envelope of every vertex in p.
func ComputeBounds(p domain.Polygon) (domain.BoundingBox, error) {
	if len(p) == 0 {
		return domain.BoundingBox{}, fmt.Errorf("%w: polygon has no vertices", domain.ErrInvalidInput)
	}

	b := ToRing(p).Bound()
	return FromBound(b), nil
}

// FromBound converts an orb.Bound (lon/lat ordered) to a BoundingBox.
func FromBound(b orb.Bound) domain.BoundingBox {
	return domain.BoundingBox{
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
		MinLng: b.Min.Lon(),
		MaxLng: b.Max.Lon(),
	}
}

// ToBound converts a BoundingBox to an orb.Bound.
func ToBound(b domain.BoundingBox) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLng, b.MinLat},
		Max: orb.Point{b.MaxLng, b.MaxLat},
	}
}
