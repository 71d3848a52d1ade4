// Package terrain builds elevation tiles: point sets classified against a
// normalized mercator tile extent, triangulated, simplified to a vertex
// budget and emitted as meshes with curtains.
package terrain

import (
	"github.com/golang/geo/r2"

	"github.com/Faultbox/terramesh/pkg/formats"
	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// classifyEpsilon is the relative tolerance for matching tile sides.
const classifyEpsilon = 1e-12

// DefaultCurtainDepth is how far curtains reach below the lowest vertex, in
// meters.
const DefaultCurtainDepth = 1000.0

// Tile is an elevation tile over a rectangular extent.
//
// Border lists hold points lying exactly on one side, sorted by (x, y). The
// four corners always carry the exact extent coordinates.
type Tile struct {
	extent r2.Rect

	North  []tmath.ElevationPoint
	East   []tmath.ElevationPoint
	South  []tmath.ElevationPoint
	West   []tmath.ElevationPoint
	Middle []tmath.ElevationPoint
	// Corners are indexed with formats.CornerNW .. formats.CornerSW.
	Corners [4]tmath.ElevationPoint

	// CurtainDepth is the curtain drop used by Precompute.
	CurtainDepth float64

	categorized bool
}

// NewTile creates an empty tile over extent.
func NewTile(extent r2.Rect) *Tile {
	t := &Tile{extent: extent, CurtainDepth: DefaultCurtainDepth}
	t.resetCorners()
	return t
}

// Extent returns the tile rectangle.
func (t *Tile) Extent() r2.Rect {
	return t.extent
}

// Categorized reports whether the tile has been set up from points.
func (t *Tile) Categorized() bool {
	return t.categorized
}

func (t *Tile) resetCorners() {
	x0, y0, x1, y1 := t.extent.X.Lo, t.extent.Y.Lo, t.extent.X.Hi, t.extent.Y.Hi
	t.Corners[formats.CornerNW] = tmath.ElevationPoint{X: x0, Y: y1, Weight: tmath.WeightCorner}
	t.Corners[formats.CornerNE] = tmath.ElevationPoint{X: x1, Y: y1, Weight: tmath.WeightCorner}
	t.Corners[formats.CornerSE] = tmath.ElevationPoint{X: x1, Y: y0, Weight: tmath.WeightCorner}
	t.Corners[formats.CornerSW] = tmath.ElevationPoint{X: x0, Y: y0, Weight: tmath.WeightCorner}
}

// Setup classifies pts against the extent and sorts the result.
func (t *Tile) Setup(pts []tmath.ElevationPoint) {
	t.classify(pts)
	t.sortLists()
	t.categorized = true
}

// NumPoints returns the point count including the four corners.
func (t *Tile) NumPoints() int {
	return 4 + len(t.North) + len(t.East) + len(t.South) + len(t.West) + len(t.Middle)
}

// Points returns every point of the tile in triangulation order: corners
// SW, NW, NE, SE, then the north, east, south and west borders and the
// interior.
func (t *Tile) Points() []tmath.ElevationPoint {
	out := make([]tmath.ElevationPoint, 0, t.NumPoints())
	out = append(out,
		t.Corners[formats.CornerSW],
		t.Corners[formats.CornerNW],
		t.Corners[formats.CornerNE],
		t.Corners[formats.CornerSE],
	)
	out = append(out, t.North...)
	out = append(out, t.East...)
	out = append(out, t.South...)
	out = append(out, t.West...)
	out = append(out, t.Middle...)
	return out
}

// classify distributes pts over corners, borders and interior. Points
// outside the closed extent are dropped.
func (t *Tile) classify(pts []tmath.ElevationPoint) {
	x0, y0, x1, y1 := t.extent.X.Lo, t.extent.Y.Lo, t.extent.X.Hi, t.extent.Y.Hi
	eq := func(a, ref float64) bool { return tmath.ApproxEqual(a, ref, classifyEpsilon) }

	t.North, t.East, t.South, t.West, t.Middle = nil, nil, nil, nil, nil
	t.resetCorners()
	var found [4]bool
	setCorner := func(i int, p tmath.ElevationPoint) {
		if !found[i] {
			t.Corners[i].Elevation = p.Elevation
			found[i] = true
		}
	}

	for _, p := range pts {
		onW, onE := eq(p.X, x0), eq(p.X, x1)
		onS, onN := eq(p.Y, y0), eq(p.Y, y1)
		inX := p.X >= x0 && p.X <= x1
		inY := p.Y >= y0 && p.Y <= y1

		switch {
		case onS && onW:
			setCorner(formats.CornerSW, p)
		case onS && onE:
			setCorner(formats.CornerSE, p)
		case onN && onE:
			setCorner(formats.CornerNE, p)
		case onN && onW:
			setCorner(formats.CornerNW, p)
		case onW && inY:
			t.West = append(t.West, tmath.ElevationPoint{X: x0, Y: p.Y, Elevation: p.Elevation, Weight: tmath.WeightEdge})
		case onE && inY:
			t.East = append(t.East, tmath.ElevationPoint{X: x1, Y: p.Y, Elevation: p.Elevation, Weight: tmath.WeightEdge})
		case onS && inX:
			t.South = append(t.South, tmath.ElevationPoint{X: p.X, Y: y0, Elevation: p.Elevation, Weight: tmath.WeightEdge})
		case onN && inX:
			t.North = append(t.North, tmath.ElevationPoint{X: p.X, Y: y1, Elevation: p.Elevation, Weight: tmath.WeightEdge})
		case p.X > x0 && p.X < x1 && p.Y > y0 && p.Y < y1:
			t.Middle = append(t.Middle, tmath.ElevationPoint{X: p.X, Y: p.Y, Elevation: p.Elevation, Weight: tmath.WeightNone})
		}
	}

	// Corners without a sample take the elevation of the nearest point.
	for i := range t.Corners {
		if found[i] {
			continue
		}
		c := t.Corners[i]
		best, ok := tmath.ElevationPoint{}, false
		for _, list := range [][]tmath.ElevationPoint{t.North, t.East, t.South, t.West, t.Middle} {
			if p, hit := tmath.Nearest(list, c.X, c.Y); hit && (!ok || p.DistanceSq(c) < best.DistanceSq(c)) {
				best, ok = p, true
			}
		}
		if ok {
			t.Corners[i].Elevation = best.Elevation
		}
	}
}

func (t *Tile) sortLists() {
	for _, list := range []*[]tmath.ElevationPoint{&t.North, &t.East, &t.South, &t.West, &t.Middle} {
		tmath.SortPoints(*list)
		*list = tmath.DedupeSorted(*list)
	}
}
