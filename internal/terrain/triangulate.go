package terrain

import (
	"fmt"

	"github.com/golang/geo/r2"
	"go.uber.org/zap"

	"github.com/Faultbox/terramesh/internal/delaunay"
	"github.com/Faultbox/terramesh/internal/logger"
	"github.com/Faultbox/terramesh/pkg/formats"
	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// MinPoints is the smallest tile: its four corners.
const MinPoints = 4

// mergeEpsilon scales the tile width into the duplicate merge distance.
const mergeEpsilon = 1e-10

// CreateTriangulation triangulates the tile points. The tile sides are
// constrained edges so the triangles inside the extent cover it exactly.
func (t *Tile) CreateTriangulation() (*delaunay.Triangulation, error) {
	width := t.extent.Size().X
	tr, err := delaunay.New(t.extent.ExpandedByMargin(width), width*mergeEpsilon)
	if err != nil {
		return nil, fmt.Errorf("creating triangulation: %w", err)
	}

	var corners [4]int
	for i, c := range []int{formats.CornerSW, formats.CornerNW, formats.CornerNE, formats.CornerSE} {
		id, err := tr.Insert(t.Corners[c])
		if err != nil {
			return nil, fmt.Errorf("inserting corner: %w", err)
		}
		corners[i] = id
	}
	for i := range corners {
		if err := tr.Constrain(corners[i], corners[(i+1)%4]); err != nil {
			return nil, fmt.Errorf("constraining tile side: %w", err)
		}
	}

	for _, list := range [][]tmath.ElevationPoint{t.North, t.East, t.South, t.West, t.Middle} {
		for _, p := range list {
			if _, err := tr.Insert(p); err != nil {
				return nil, fmt.Errorf("inserting point: %w", err)
			}
		}
	}
	return tr, nil
}

// Reduce simplifies the tile to at most maxPoints points, corners included.
// Tiles already within budget are left untouched.
func (t *Tile) Reduce(maxPoints int) error {
	maxPoints = max(maxPoints, MinPoints)
	count := t.NumPoints()
	if count <= maxPoints {
		return nil
	}

	tr, err := t.CreateTriangulation()
	if err != nil {
		return err
	}
	if removed := tr.Reduce(count - maxPoints); removed < count-maxPoints {
		logger.Debug("tile reduced short of budget",
			zap.Stringer("extent", t.extent),
			zap.Int("points", count),
			zap.Int("budget", maxPoints),
			zap.Int("removed", removed))
	}
	t.Setup(tr.Points())
	return nil
}

// CreateFromParent builds a tile over extent from up to four child tiles.
// Nil or empty children contribute nothing. The result is reduced to
// maxPoints.
func CreateFromParent(extent r2.Rect, children []*Tile, maxPoints int) (*Tile, error) {
	var pts []tmath.ElevationPoint
	for _, c := range children {
		if c == nil || !c.categorized {
			continue
		}
		pts = append(pts, c.Points()...)
	}

	t := NewTile(extent)
	t.Setup(pts)
	if err := t.Reduce(maxPoints); err != nil {
		return nil, fmt.Errorf("reducing parent tile: %w", err)
	}
	return t, nil
}

// IntersectTile triangulates samples from the neighbourhood of extent and
// clips the surface to it. Samples outside NeighbourhoodBounds are ignored.
// Without samples the returned tile is left uncategorized.
func IntersectTile(extent r2.Rect, samples []tmath.ElevationPoint) (*Tile, error) {
	t := NewTile(extent)
	bounds := NeighbourhoodBounds(extent)

	tr, err := delaunay.New(bounds, extent.Size().X*mergeEpsilon)
	if err != nil {
		return nil, fmt.Errorf("creating triangulation: %w", err)
	}
	if _, err := tr.InsertAll(samples); err != nil {
		return nil, fmt.Errorf("inserting samples: %w", err)
	}
	if tr.NumPoints() == 0 {
		return t, nil
	}
	t.Setup(tr.IntersectRect(extent))
	return t, nil
}

// NeighbourhoodBounds is the extent grown by one tile on every side, the
// area covered by the 3x3 tile neighbourhood.
func NeighbourhoodBounds(extent r2.Rect) r2.Rect {
	return extent.ExpandedByMargin(extent.Size().X)
}
