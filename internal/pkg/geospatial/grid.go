package geospatial

import (
	"fmt"
	"iter"
	"math"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// ratioTolerance absorbs float error when span/step is an exact integer
// (e.g. 1/0.1 evaluating to 10.000000000000002).
const ratioTolerance = 1e-9

// Sample returns the lattice points of b spaced step degrees apart, in
// row-major order (every longitude of a latitude before the next latitude).
//
// Each axis holds ceil(span/step)+1 values computed as min+k*step; the last
// value is clamped to the axis maximum so no point leaves the box. The
// returned sequence keeps no state and can be ranged over again.
func Sample(b domain.BoundingBox, step domain.StepSize) (iter.Seq[domain.Coordinate], error) {
	rows, cols, err := GridSize(b, step)
	if err != nil {
		return nil, err
	}
	s := float64(step)

	return func(yield func(domain.Coordinate) bool) {
		for i := 0; i < rows; i++ {
			lat := axisValue(b.MinLat, b.MaxLat, s, i)
			for j := 0; j < cols; j++ {
				c := domain.Coordinate{Lat: lat, Lng: axisValue(b.MinLng, b.MaxLng, s, j)}
				if !yield(c) {
					return
				}
			}
		}
	}, nil
}

// GridSize returns the number of distinct latitudes and longitudes Sample
// yields for b and step.
func GridSize(b domain.BoundingBox, step domain.StepSize) (rows, cols int, err error) {
	if err := step.Validate(); err != nil {
		return 0, 0, err
	}
	if !validBox(b) {
		return 0, 0, fmt.Errorf("%w: malformed bounding box %+v", domain.ErrInvalidInput, b)
	}
	s := float64(step)
	return axisCount(b.MinLat, b.MaxLat, s), axisCount(b.MinLng, b.MaxLng, s), nil
}

func axisCount(lo, hi, step float64) int {
	n := math.Ceil((hi-lo)/step - ratioTolerance)
	if n < 0 {
		n = 0
	}
	return int(n) + 1
}

func axisValue(lo, hi, step float64, k int) float64 {
	v := lo + float64(k)*step
	if v > hi {
		return hi
	}
	return v
}

func validBox(b domain.BoundingBox) bool {
	for _, f := range []float64{b.MinLat, b.MaxLat, b.MinLng, b.MaxLng} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return b.MinLat <= b.MaxLat && b.MinLng <= b.MaxLng
}
