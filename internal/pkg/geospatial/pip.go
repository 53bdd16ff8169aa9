package geospatial

import "github.com/samirrijal/canvass/internal/core/domain"

// PointInPolygon classifies p against the ring poly with the even-odd rule.
// A ray is cast from p towards +lng; an edge counts when it straddles p's
// latitude (strict > on one end, <= on the other) and crosses strictly east
// of p. Points on the western or southern edges therefore count as inside
// and points on the eastern or northern edges as outside.
func PointInPolygon(p domain.Coordinate, poly domain.Polygon) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := poly[i], poly[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) &&
			p.Lng < (vj.Lng-vi.Lng)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat)+vi.Lng {
			inside = !inside
		}
	}
	return inside
}
