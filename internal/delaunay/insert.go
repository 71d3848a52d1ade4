package delaunay

import (
	"fmt"

	"github.com/golang/geo/r2"

	tmath "github.com/Faultbox/terramesh/pkg/math"
)

type location int

const (
	locInside location = iota
	locEdge
	locVertex
)

// boundaryEdge is a directed edge u->w on the rim of a cavity together with
// the triangle on its far side.
type boundaryEdge struct {
	u, w int
	link edgeLink
}

// edgeLink names the far side of an edge: triangle t, its edge index e and
// whether the edge is constrained. t is noTriangle on the hull.
type edgeLink struct {
	t, e int
	c    bool
}

func (tr *Triangulation) outerLink(t, e int) edgeLink {
	T := tr.tris[t]
	l := edgeLink{t: T.n[e], e: -1, c: T.c[e]}
	if l.t != noTriangle {
		l.e = tr.edgeIndex(l.t, t)
	}
	return l
}

// Insert adds a point and returns its vertex id. A point within eps of an
// existing vertex is merged into that vertex, which keeps the more locked of
// the two weights.
func (tr *Triangulation) Insert(p tmath.ElevationPoint) (int, error) {
	pt := r2.Point{X: p.X, Y: p.Y}
	if !tr.bounds.InteriorContainsPoint(pt) {
		return -1, fmt.Errorf("%w: (%v, %v)", ErrOutOfBounds, p.X, p.Y)
	}

	t, kind, idx, err := tr.locate(pt)
	if err != nil {
		return -1, err
	}
	if kind == locVertex {
		v := tr.tris[t].v[idx]
		if !tr.verts[v].aux && p.Weight < tr.verts[v].weight {
			tr.verts[v].weight = p.Weight
		}
		return v, nil
	}

	id := len(tr.verts)
	tr.verts = append(tr.verts, vertex{p: pt, z: p.Elevation, weight: p.Weight})
	tr.alive++

	var created []int
	switch kind {
	case locInside:
		ring := make([]boundaryEdge, 0, 3)
		for e := 0; e < 3; e++ {
			ring = append(ring, tr.rimEdge(t, e))
		}
		tr.killTriangle(t)
		created = tr.fan(id, ring)

	case locEdge:
		T := tr.tris[t]
		o := T.n[idx]
		oe := tr.edgeIndex(o, t)
		a, b := T.v[(idx+1)%3], T.v[(idx+2)%3]
		constrained := T.c[idx]
		ring := []boundaryEdge{
			tr.rimEdge(t, (idx+1)%3),
			tr.rimEdge(t, (idx+2)%3),
			tr.rimEdge(o, (oe+1)%3),
			tr.rimEdge(o, (oe+2)%3),
		}
		tr.killTriangle(t)
		tr.killTriangle(o)
		created = tr.fan(id, ring)
		if constrained {
			for _, end := range []int{a, b} {
				if ct, ce, ok := tr.findEdge(id, end); ok {
					tr.setConstrained(ct, ce, true)
				}
			}
		}
	}

	stack := make([][2]int, 0, 2*len(created))
	for _, c := range created {
		stack = append(stack, [2]int{c, 2})
	}
	tr.legalize(stack)
	tr.last = tr.verts[id].tri
	return id, nil
}

func (tr *Triangulation) rimEdge(t, e int) boundaryEdge {
	T := tr.tris[t]
	return boundaryEdge{u: T.v[(e+1)%3], w: T.v[(e+2)%3], link: tr.outerLink(t, e)}
}

// fan fills a closed star-shaped cavity around vertex p. Triangle k is
// (ring[k].u, ring[k].w, p) so its edge 2 faces the rim.
func (tr *Triangulation) fan(p int, ring []boundaryEdge) []int {
	ids := make([]int, len(ring))
	for k, e := range ring {
		ids[k] = tr.newTriangle(e.u, e.w, p)
		tr.link(ids[k], 2, e.link.t, e.link.e, e.link.c)
	}
	for k := range ids {
		tr.link(ids[k], 0, ids[(k+1)%len(ids)], 1, false)
	}
	return ids
}

// locate finds the triangle containing p by walking from the last visited
// triangle, falling back to a linear scan if the walk does not settle.
func (tr *Triangulation) locate(p r2.Point) (t int, kind location, idx int, err error) {
	t = tr.last
	if t < 0 || t >= len(tr.tris) || tr.tris[t].dead {
		t = tr.anyTriangle()
	}
	limit := 4*len(tr.tris) + 16
	for step := 0; step < limit; step++ {
		T := tr.tris[t]
		moved := false
		for k := 0; k < 3; k++ {
			e := (k + step) % 3
			a, b := tr.verts[T.v[(e+1)%3]].p, tr.verts[T.v[(e+2)%3]].p
			if orient(a, b, p) < 0 {
				if T.n[e] == noTriangle {
					return -1, 0, 0, fmt.Errorf("%w: (%v, %v)", ErrOutOfBounds, p.X, p.Y)
				}
				t = T.n[e]
				moved = true
				break
			}
		}
		if !moved {
			tr.last = t
			kind, idx = tr.classifyIn(t, p)
			return t, kind, idx, nil
		}
	}
	return tr.locateLinear(p)
}

func (tr *Triangulation) locateLinear(p r2.Point) (int, location, int, error) {
	for t, T := range tr.tris {
		if T.dead {
			continue
		}
		a, b, c := tr.verts[T.v[0]].p, tr.verts[T.v[1]].p, tr.verts[T.v[2]].p
		if orient(b, c, p) >= 0 && orient(c, a, p) >= 0 && orient(a, b, p) >= 0 {
			tr.last = t
			kind, idx := tr.classifyIn(t, p)
			return t, kind, idx, nil
		}
	}
	return -1, 0, 0, fmt.Errorf("%w: (%v, %v)", ErrOutOfBounds, p.X, p.Y)
}

// classifyIn refines a point known to lie in the closed triangle t.
func (tr *Triangulation) classifyIn(t int, p r2.Point) (location, int) {
	T := tr.tris[t]
	best, bestD := -1, tr.eps*tr.eps
	for i, v := range T.v {
		if d := norm2(tr.verts[v].p.Sub(p)); d <= bestD {
			best, bestD = i, d
		}
	}
	if best >= 0 {
		return locVertex, best
	}

	zeros, edge := 0, -1
	for e := 0; e < 3; e++ {
		a, b := tr.verts[T.v[(e+1)%3]].p, tr.verts[T.v[(e+2)%3]].p
		if orient(a, b, p) == 0 {
			zeros++
			edge = e
		}
	}
	switch {
	case zeros == 1:
		return locEdge, edge
	case zeros > 1:
		// Exactly on a vertex that eps did not catch.
		best, bestD = 0, norm2(tr.verts[T.v[0]].p.Sub(p))
		for i := 1; i < 3; i++ {
			if d := norm2(tr.verts[T.v[i]].p.Sub(p)); d < bestD {
				best, bestD = i, d
			}
		}
		return locVertex, best
	}
	return locInside, -1
}

func (tr *Triangulation) anyTriangle() int {
	for t, T := range tr.tris {
		if !T.dead {
			return t
		}
	}
	return noTriangle
}

// legalize restores the Delaunay property by flipping the queued edges.
// Each entry is a triangle and the index of the edge to test.
func (tr *Triangulation) legalize(stack [][2]int) {
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t, e := top[0], top[1]
		T := tr.tris[t]
		if T.dead || T.c[e] || T.n[e] == noTriangle {
			continue
		}
		o := T.n[e]
		d := tr.verts[tr.tris[o].v[tr.edgeIndex(o, t)]].p
		p := tr.verts[T.v[e]].p
		a, b := tr.verts[T.v[(e+1)%3]].p, tr.verts[T.v[(e+2)%3]].p
		if inCircle(p, a, b, d) <= delaunayTolerance(p, a, b) {
			continue
		}
		if orient(p, a, d) <= 0 || orient(p, d, b) <= 0 {
			continue
		}
		tr.flip(t, e)
		stack = append(stack, [2]int{t, 0}, [2]int{o, 0})
	}
}

// flip replaces the edge e of t and its twin with the other diagonal of the
// quad. With p = t.v[e] the result is t = (p, a, d) and o = (p, d, b), so
// edge 0 of both faces away from p.
func (tr *Triangulation) flip(t, e int) {
	T := tr.tris[t]
	p, a, b := T.v[e], T.v[(e+1)%3], T.v[(e+2)%3]
	o := T.n[e]
	j := tr.edgeIndex(o, t)
	O := tr.tris[o]
	d := O.v[j]

	x1 := tr.outerLink(t, (e+1)%3) // b-p
	x2 := tr.outerLink(t, (e+2)%3) // p-a
	y1 := tr.outerLink(o, (j+1)%3) // a-d
	y2 := tr.outerLink(o, (j+2)%3) // d-b

	tr.tris[t] = triangle{v: [3]int{p, a, d}, n: [3]int{noTriangle, noTriangle, noTriangle}}
	tr.tris[o] = triangle{v: [3]int{p, d, b}, n: [3]int{noTriangle, noTriangle, noTriangle}}

	tr.link(t, 0, y1.t, y1.e, y1.c)
	tr.link(t, 1, o, 2, false)
	tr.link(t, 2, x2.t, x2.e, x2.c)
	tr.link(o, 0, y2.t, y2.e, y2.c)
	tr.link(o, 1, x1.t, x1.e, x1.c)

	tr.verts[p].tri = t
	tr.verts[a].tri = t
	tr.verts[d].tri = t
	tr.verts[b].tri = o
}
