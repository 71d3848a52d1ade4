// Package math provides the small value types shared by the terrain pipeline:
// elevation samples in projected space and single precision vectors for
// emitted mesh data.
package math

import (
	"math"
	"sort"
)

// Weight tags carried by an ElevationPoint. Non-negative weights are
// ordinary interior samples.
const (
	WeightCorner int32 = -3
	WeightEdge   int32 = -2
	WeightNone   int32 = 0
)

// ElevationPoint is a sample in normalized mercator space.
type ElevationPoint struct {
	X, Y      float64
	Elevation float64
	Weight    int32
}

// IsCorner reports whether the point is pinned to a tile corner.
func (p ElevationPoint) IsCorner() bool {
	return p.Weight == WeightCorner
}

// IsEdge reports whether the point lies on a tile border.
func (p ElevationPoint) IsEdge() bool {
	return p.Weight == WeightEdge
}

// DistanceSq returns the squared planar distance to other.
func (p ElevationPoint) DistanceSq(other ElevationPoint) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return dx*dx + dy*dy
}

// ApproxEqual compares a against ref with a relative tolerance of eps.
// When ref is zero the tolerance is absolute.
func ApproxEqual(a, ref, eps float64) bool {
	if ref == 0 {
		return math.Abs(a) <= eps
	}
	return math.Abs(a-ref) <= eps*math.Abs(ref)
}

// SortPoints orders points by x then y. The sort is stable so equal
// positions keep their input order.
func SortPoints(pts []ElevationPoint) {
	sort.SliceStable(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
}

// DedupeSorted drops consecutive points with identical coordinates, keeping
// the first. pts must already be sorted with SortPoints.
func DedupeSorted(pts []ElevationPoint) []ElevationPoint {
	if len(pts) < 2 {
		return pts
	}
	out := pts[:1]
	for _, p := range pts[1:] {
		last := out[len(out)-1]
		if p.X == last.X && p.Y == last.Y {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Nearest returns the point of pts closest to (x, y). ok is false when pts is
// empty.
func Nearest(pts []ElevationPoint, x, y float64) (p ElevationPoint, ok bool) {
	best := math.Inf(1)
	probe := ElevationPoint{X: x, Y: y}
	for _, q := range pts {
		if d := q.DistanceSq(probe); d < best {
			best = d
			p = q
			ok = true
		}
	}
	return p, ok
}
