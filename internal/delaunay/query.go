package delaunay

import (
	"errors"

	"github.com/golang/geo/r2"

	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// Points returns the live non-auxiliary vertices in insertion order.
func (tr *Triangulation) Points() []tmath.ElevationPoint {
	out := make([]tmath.ElevationPoint, 0, tr.alive)
	for _, v := range tr.verts {
		if v.aux || v.removed {
			continue
		}
		out = append(out, tmath.ElevationPoint{X: v.p.X, Y: v.p.Y, Elevation: v.z, Weight: v.weight})
	}
	return out
}

// Triangles returns counter-clockwise index triples into Points for every
// triangle not touching an auxiliary vertex.
func (tr *Triangulation) Triangles() []uint32 {
	index := make([]int, len(tr.verts))
	next := 0
	for i, v := range tr.verts {
		if v.aux || v.removed {
			index[i] = -1
			continue
		}
		index[i] = next
		next++
	}

	var out []uint32
	for t, T := range tr.tris {
		if T.dead || tr.hasAux(t) {
			continue
		}
		out = append(out, uint32(index[T.v[0]]), uint32(index[T.v[1]]), uint32(index[T.v[2]]))
	}
	return out
}

// ElevationAt interpolates the surface at (x, y). ok is false outside the
// region covered by real vertices.
func (tr *Triangulation) ElevationAt(x, y float64) (z float64, ok bool) {
	p := r2.Point{X: x, Y: y}
	t, _, _, err := tr.locate(p)
	if err != nil || tr.hasAux(t) {
		return 0, false
	}
	T := tr.tris[t]
	a, b, c := tr.verts[T.v[0]], tr.verts[T.v[1]], tr.verts[T.v[2]]
	wa, wb, wc, ok := barycentric(a.p, b.p, c.p, p)
	if !ok {
		return 0, false
	}
	return wa*a.z + wb*b.z + wc*c.z, true
}

// IntersectRect clips the triangulated surface to rect. The result holds
// every vertex inside the closed rectangle, the crossings of triangle edges
// with its sides and its four corners, all with interpolated elevations.
func (tr *Triangulation) IntersectRect(rect r2.Rect) []tmath.ElevationPoint {
	var out []tmath.ElevationPoint
	for _, v := range tr.verts {
		if v.aux || v.removed || !rect.ContainsPoint(v.p) {
			continue
		}
		out = append(out, tmath.ElevationPoint{X: v.p.X, Y: v.p.Y, Elevation: v.z})
	}
	if len(out) == 0 && tr.alive == 0 {
		return nil
	}

	for t, T := range tr.tris {
		if T.dead {
			continue
		}
		for e := 0; e < 3; e++ {
			if o := T.n[e]; o != noTriangle && o < t {
				continue
			}
			u, w := tr.verts[T.v[(e+1)%3]], tr.verts[T.v[(e+2)%3]]
			if u.aux || w.aux {
				continue
			}
			out = appendCrossings(out, rect, u, w)
		}
	}

	for _, c := range rect.Vertices() {
		z, ok := tr.ElevationAt(c.X, c.Y)
		if !ok {
			near, found := tmath.Nearest(out, c.X, c.Y)
			if !found {
				near, found = tmath.Nearest(tr.Points(), c.X, c.Y)
			}
			if !found {
				continue
			}
			z = near.Elevation
		}
		out = append(out, tmath.ElevationPoint{X: c.X, Y: c.Y, Elevation: z})
	}
	return out
}

// appendCrossings adds the points where segment uw strictly crosses a side
// of rect.
func appendCrossings(out []tmath.ElevationPoint, rect r2.Rect, u, w vertex) []tmath.ElevationPoint {
	for _, x := range [2]float64{rect.X.Lo, rect.X.Hi} {
		if (u.p.X-x)*(w.p.X-x) >= 0 {
			continue
		}
		t := (x - u.p.X) / (w.p.X - u.p.X)
		y := u.p.Y + t*(w.p.Y-u.p.Y)
		if y >= rect.Y.Lo && y <= rect.Y.Hi {
			out = append(out, tmath.ElevationPoint{X: x, Y: y, Elevation: u.z + t*(w.z-u.z)})
		}
	}
	for _, y := range [2]float64{rect.Y.Lo, rect.Y.Hi} {
		if (u.p.Y-y)*(w.p.Y-y) >= 0 {
			continue
		}
		t := (y - u.p.Y) / (w.p.Y - u.p.Y)
		x := u.p.X + t*(w.p.X-u.p.X)
		if x >= rect.X.Lo && x <= rect.X.Hi {
			out = append(out, tmath.ElevationPoint{X: x, Y: y, Elevation: u.z + t*(w.z-u.z)})
		}
	}
	return out
}

// InsertAll inserts points in order and stops at the first error that is not
// an out-of-bounds rejection. It returns the number of points rejected for
// lying outside the bounds.
func (tr *Triangulation) InsertAll(pts []tmath.ElevationPoint) (rejected int, err error) {
	for _, p := range pts {
		if _, err := tr.Insert(p); err != nil {
			if errors.Is(err, ErrOutOfBounds) {
				rejected++
				continue
			}
			return rejected, err
		}
	}
	return rejected, nil
}
