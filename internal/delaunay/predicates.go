package delaunay

import (
	"math"

	"github.com/golang/geo/r2"
)

// orient is twice the signed area of abc, positive when counter-clockwise.
func orient(a, b, c r2.Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// inCircle is positive when d lies inside the circumcircle of the
// counter-clockwise triangle abc.
func inCircle(a, b, c, d r2.Point) float64 {
	ad := a.Sub(d)
	bd := b.Sub(d)
	cd := c.Sub(d)
	return norm2(ad)*bd.Cross(cd) + norm2(bd)*cd.Cross(ad) + norm2(cd)*ad.Cross(bd)
}

// delaunayTolerance scales the incircle threshold with the triangle size so
// cocircular configurations do not flip back and forth.
func delaunayTolerance(a, b, c r2.Point) float64 {
	s := math.Max(norm2(b.Sub(a)), math.Max(norm2(c.Sub(b)), norm2(a.Sub(c))))
	return 1e-12 * s * s
}

// barycentric returns the weights of p with respect to abc.
func barycentric(a, b, c, p r2.Point) (wa, wb, wc float64, ok bool) {
	area := orient(a, b, c)
	if area == 0 {
		return 0, 0, 0, false
	}
	wa = orient(b, c, p) / area
	wb = orient(c, a, p) / area
	wc = 1 - wa - wb
	return wa, wb, wc, true
}

// segmentsCross reports whether the open segments ab and cd intersect in a
// single interior point.
func segmentsCross(a, b, c, d r2.Point) bool {
	o1 := orient(a, b, c)
	o2 := orient(a, b, d)
	o3 := orient(c, d, a)
	o4 := orient(c, d, b)
	return ((o1 > 0 && o2 < 0) || (o1 < 0 && o2 > 0)) &&
		((o3 > 0 && o4 < 0) || (o3 < 0 && o4 > 0))
}

// onSegment reports whether p lies strictly between a and b on their line.
func onSegment(a, b, p r2.Point) bool {
	if orient(a, b, p) != 0 {
		return false
	}
	d := b.Sub(a)
	t := p.Sub(a).Dot(d)
	return t > 0 && t < norm2(d)
}

func norm2(p r2.Point) float64 {
	return p.Dot(p)
}
