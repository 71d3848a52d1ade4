// Package delaunay implements an incremental constrained Delaunay
// triangulation over elevation points with greedy point-removal
// simplification.
//
// The triangulation starts from four auxiliary vertices at the corners of a
// bounding rectangle. Every inserted point must lie inside that rectangle.
// Edges can be constrained; constrained edges are never flipped and split
// into constrained halves when a point is inserted on them.
package delaunay

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r2"

	tmath "github.com/Faultbox/terramesh/pkg/math"
)

var (
	ErrOutOfBounds        = errors.New("point outside triangulation bounds")
	ErrInvalidBounds      = errors.New("invalid triangulation bounds")
	ErrConstraintCrossing = errors.New("constraint crosses a constrained edge")
	ErrConstraintBlocked  = errors.New("constraint passes through a vertex")
	ErrNotRemovable       = errors.New("vertex cannot be removed")
)

const noTriangle = -1

// vertex is a triangulation node. Auxiliary vertices span the bounds and are
// never reported to callers.
type vertex struct {
	p       r2.Point
	z       float64
	weight  int32
	aux     bool
	removed bool
	tri     int // some alive triangle incident to the vertex
}

// triangle stores vertices counter-clockwise. n[i] and c[i] describe the
// edge opposite v[i], running from v[i+1] to v[i+2].
type triangle struct {
	v    [3]int
	n    [3]int
	c    [3]bool
	dead bool
}

// Triangulation is a constrained Delaunay triangulation. It is not safe for
// concurrent use.
type Triangulation struct {
	verts  []vertex
	tris   []triangle
	free   []int
	bounds r2.Rect
	eps    float64
	last   int
	alive  int
}

// New creates an empty triangulation covering bounds. Points closer than eps
// to an existing vertex are merged into it.
func New(bounds r2.Rect, eps float64) (*Triangulation, error) {
	if !bounds.IsValid() || bounds.IsEmpty() || bounds.Size().X <= 0 || bounds.Size().Y <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBounds, bounds)
	}
	tr := &Triangulation{bounds: bounds, eps: eps}
	for _, p := range bounds.Vertices() {
		tr.verts = append(tr.verts, vertex{p: p, aux: true, weight: tmath.WeightCorner})
	}
	// Vertices() runs counter-clockwise from the lower left corner.
	t0 := tr.newTriangle(0, 1, 2)
	t1 := tr.newTriangle(0, 2, 3)
	tr.link(t0, 1, t1, 2, false)
	tr.last = t0
	return tr, nil
}

// Bounds returns the rectangle spanned by the auxiliary vertices.
func (tr *Triangulation) Bounds() r2.Rect {
	return tr.bounds
}

// NumPoints returns the number of live non-auxiliary vertices.
func (tr *Triangulation) NumPoints() int {
	return tr.alive
}

func (tr *Triangulation) newTriangle(a, b, c int) int {
	t := triangle{v: [3]int{a, b, c}, n: [3]int{noTriangle, noTriangle, noTriangle}}
	var id int
	if k := len(tr.free); k > 0 {
		id = tr.free[k-1]
		tr.free = tr.free[:k-1]
		tr.tris[id] = t
	} else {
		id = len(tr.tris)
		tr.tris = append(tr.tris, t)
	}
	tr.verts[a].tri = id
	tr.verts[b].tri = id
	tr.verts[c].tri = id
	return id
}

func (tr *Triangulation) killTriangle(t int) {
	tr.tris[t].dead = true
	tr.free = append(tr.free, t)
}

// link connects edge e1 of t1 with edge e2 of t2. Either side may be
// noTriangle.
func (tr *Triangulation) link(t1, e1, t2, e2 int, constrained bool) {
	if t1 != noTriangle {
		tr.tris[t1].n[e1] = t2
		tr.tris[t1].c[e1] = constrained
	}
	if t2 != noTriangle {
		tr.tris[t2].n[e2] = t1
		tr.tris[t2].c[e2] = constrained
	}
}

// edgeIndex returns the index of the edge of t that faces neighbour o.
func (tr *Triangulation) edgeIndex(t, o int) int {
	for i, n := range tr.tris[t].n {
		if n == o {
			return i
		}
	}
	return -1
}

// vertexIndex returns the slot of vertex v in triangle t.
func (tr *Triangulation) vertexIndex(t, v int) int {
	for i, w := range tr.tris[t].v {
		if w == v {
			return i
		}
	}
	return -1
}

func (tr *Triangulation) setConstrained(t, e int, constrained bool) {
	tr.tris[t].c[e] = constrained
	if o := tr.tris[t].n[e]; o != noTriangle {
		tr.tris[o].c[tr.edgeIndex(o, t)] = constrained
	}
}

func (tr *Triangulation) hasAux(t int) bool {
	v := tr.tris[t].v
	return tr.verts[v[0]].aux || tr.verts[v[1]].aux || tr.verts[v[2]].aux
}

// Validate checks the structural invariants: counter-clockwise triangles,
// symmetric adjacency and constraint flags, and the empty circumcircle
// property across every unconstrained edge.
func (tr *Triangulation) Validate() error {
	for id, t := range tr.tris {
		if t.dead {
			continue
		}
		a, b, c := tr.verts[t.v[0]].p, tr.verts[t.v[1]].p, tr.verts[t.v[2]].p
		if orient(a, b, c) <= 0 {
			return fmt.Errorf("triangle %d %v is not counter-clockwise", id, t.v)
		}
		for e, o := range t.n {
			if o == noTriangle {
				continue
			}
			if tr.tris[o].dead {
				return fmt.Errorf("triangle %d links dead triangle %d", id, o)
			}
			back := tr.edgeIndex(o, id)
			if back < 0 {
				return fmt.Errorf("triangle %d neighbour %d does not link back", id, o)
			}
			if tr.tris[o].c[back] != t.c[e] {
				return fmt.Errorf("triangles %d and %d disagree on constraint", id, o)
			}
			u, w := t.v[(e+1)%3], t.v[(e+2)%3]
			ot := tr.tris[o]
			if ot.v[(back+1)%3] != w || ot.v[(back+2)%3] != u {
				return fmt.Errorf("triangles %d and %d share mismatched edge", id, o)
			}
			if !t.c[e] && inCircle(a, b, c, tr.verts[ot.v[back]].p) > delaunayTolerance(a, b, c) {
				return fmt.Errorf("edge %d-%d of triangle %d is not locally Delaunay", u, w, id)
			}
		}
	}
	return nil
}
