package source

import (
	"github.com/dhconnelly/rtreego"
	"github.com/golang/geo/r2"

	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// pointExtent gives sample entries the non-zero size the R-tree requires.
const pointExtent = 1e-14

type indexedPoint struct {
	p tmath.ElevationPoint
}

// Bounds implements rtreego.Spatial.
func (ip *indexedPoint) Bounds() rtreego.Rect {
	rect, _ := rtreego.NewRect(rtreego.Point{ip.p.X, ip.p.Y}, []float64{pointExtent, pointExtent})
	return rect
}

// Index is an in-memory R-tree over normalized mercator samples. It serves
// per-tile neighbourhood queries when a whole data set fits in memory.
type Index struct {
	tree   *rtreego.Rtree
	bounds r2.Rect
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		tree:   rtreego.NewTree(2, 25, 50),
		bounds: r2.EmptyRect(),
	}
}

// Insert adds samples to the index.
func (ix *Index) Insert(pts ...tmath.ElevationPoint) {
	for _, p := range pts {
		ix.tree.Insert(&indexedPoint{p: p})
		ix.bounds = ix.bounds.AddPoint(r2.Point{X: p.X, Y: p.Y})
	}
}

// Len returns the number of indexed samples.
func (ix *Index) Len() int {
	return ix.tree.Size()
}

// Bounds returns the bounding rectangle of all samples.
func (ix *Index) Bounds() r2.Rect {
	return ix.bounds
}

// Query returns the samples inside rect, sorted by x then y so that
// triangulations built from them are reproducible.
func (ix *Index) Query(rect r2.Rect) []tmath.ElevationPoint {
	if rect.IsEmpty() || ix.Len() == 0 {
		return nil
	}
	// Padded so samples on the upper edges are returned; the exact test below
	// trims the padding again.
	grown := rect.ExpandedByMargin(pointExtent)
	size := grown.Size()
	q, err := rtreego.NewRect(rtreego.Point{grown.X.Lo, grown.Y.Lo}, []float64{size.X, size.Y})
	if err != nil {
		return nil
	}

	hits := ix.tree.SearchIntersect(q)
	out := make([]tmath.ElevationPoint, 0, len(hits))
	for _, h := range hits {
		p := h.(*indexedPoint).p
		if rect.ContainsPoint(r2.Point{X: p.X, Y: p.Y}) {
			out = append(out, p)
		}
	}
	tmath.SortPoints(out)
	return out
}
