package geospatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// ToRing converts a polygon to an orb.Ring. orb points are [lon, lat].
func ToRing(p domain.Polygon) orb.Ring {
	ring := make(orb.Ring, len(p))
	for i, c := range p {
		ring[i] = orb.Point{c.Lng, c.Lat}
	}
	return ring
}

// FromRing converts an orb.Ring to a polygon. A closing vertex equal to the
// first one is dropped; the ring is closed implicitly.
func FromRing(r orb.Ring) domain.Polygon {
	if len(r) > 1 && r[0].Equal(r[len(r)-1]) {
		r = r[:len(r)-1]
	}
	p := make(domain.Polygon, len(r))
	for i, pt := range r {
		p[i] = domain.Coordinate{Lat: pt.Lat(), Lng: pt.Lon()}
	}
	return p
}

// PolygonFromGeometry extracts the outer ring of a GeoJSON polygon-like
// geometry. Holes are ignored.
func PolygonFromGeometry(g orb.Geometry) (domain.Polygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: polygon has no rings", domain.ErrInvalidInput)
		}
		return FromRing(v[0]), nil
	case orb.Ring:
		return FromRing(v), nil
	case nil:
		return nil, fmt.Errorf("%w: missing geometry", domain.ErrInvalidInput)
	default:
		return nil, fmt.Errorf("%w: unsupported geometry type %s", domain.ErrInvalidInput, g.GeoJSONType())
	}
}

// ParseGeoJSONPolygon decodes a GeoJSON Geometry object into a polygon.
func ParseGeoJSONPolygon(data []byte) (domain.Polygon, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode geojson: %v", domain.ErrInvalidInput, err)
	}
	return PolygonFromGeometry(g.Geometry())
}

// PolygonsFromFeatureCollection returns every polygon in fc, keyed by the
// feature's "name" property when present.
func PolygonsFromFeatureCollection(fc *geojson.FeatureCollection) ([]NamedPolygon, error) {
	var out []NamedPolygon
	for i, f := range fc.Features {
		p, err := PolygonFromGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		name := f.Properties.MustString("name", fmt.Sprintf("region-%d", i+1))
		out = append(out, NamedPolygon{Name: name, Polygon: p})
	}
	return out, nil
}

// NamedPolygon is a polygon read from a feature collection.
type NamedPolygon struct {
	Name    string
	Polygon domain.Polygon
}
