package domain

// Coordinate represents a geographic coordinate (WGS 84).
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Polygon is an ordered ring of coordinates. The ring is implicitly closed:
// the last vertex connects back to the first, so callers need not repeat it.
type Polygon []Coordinate

// BoundingBox is the axis-aligned envelope of a set of coordinates.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

// MinPolygonVertices is the smallest ring that encloses an area.
const MinPolygonVertices = 3
