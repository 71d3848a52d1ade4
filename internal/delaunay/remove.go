package delaunay

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// Reduce removes up to n vertices, least significant first, and returns the
// number removed. A vertex's significance is the vertical error its removal
// would introduce. Corner-tagged and auxiliary vertices are never removed,
// and a vertex with constrained edges is only removed when it sits on a
// straight constrained line.
func (tr *Triangulation) Reduce(n int) int {
	if n <= 0 {
		return 0
	}
	q := &errorQueue{}
	versions := make([]int, len(tr.verts))
	for v := range tr.verts {
		if e := tr.vertexError(v); !math.IsInf(e, 1) {
			heap.Push(q, candidate{v: v, err: e})
		}
	}

	removed := 0
	for removed < n && q.Len() > 0 {
		c := heap.Pop(q).(candidate)
		if c.version != versions[c.v] || tr.verts[c.v].removed {
			continue
		}
		ring := append([]int(nil), tr.starOf(c.v).ring...)
		if err := tr.removeVertex(c.v); err != nil {
			versions[c.v]++
			continue
		}
		removed++
		for _, r := range ring {
			versions[r]++
			if e := tr.vertexError(r); !math.IsInf(e, 1) {
				heap.Push(q, candidate{v: r, err: e, version: versions[r]})
			}
		}
	}
	return removed
}

// Remove deletes a single vertex.
func (tr *Triangulation) Remove(v int) error {
	if v < 0 || v >= len(tr.verts) {
		return fmt.Errorf("%w: no vertex %d", ErrNotRemovable, v)
	}
	if tr.verts[v].aux || tr.verts[v].weight == tmath.WeightCorner {
		return fmt.Errorf("%w: vertex %d is locked", ErrNotRemovable, v)
	}
	return tr.removeVertex(v)
}

func (tr *Triangulation) removeVertex(v int) error {
	if tr.verts[v].removed {
		return fmt.Errorf("%w: vertex %d already removed", ErrNotRemovable, v)
	}
	s := tr.starOf(v)
	if !s.closed {
		return fmt.Errorf("%w: vertex %d is on the hull", ErrNotRemovable, v)
	}
	spokes := tr.constrainedSpokes(v, s)
	if len(spokes) != 0 && len(spokes) != 2 {
		return fmt.Errorf("%w: vertex %d joins %d constrained edges", ErrNotRemovable, v, len(spokes))
	}

	m := len(s.ring)
	links := make([]edgeLink, m)
	for i, t := range s.tris {
		links[i] = tr.outerLink(t, tr.vertexIndex(t, v))
	}
	for _, t := range s.tris {
		tr.killTriangle(t)
	}
	tr.verts[v].removed = true
	tr.alive--

	var created []int
	if len(spokes) == 0 {
		created = tr.triangulatePolygon(s.ring, links)
	} else {
		s0, s1 := spokes[0], spokes[1]
		first, firstLinks := cyclicSpan(s.ring, links, s0, s1)
		second, secondLinks := cyclicSpan(s.ring, links, s1, s0)

		// The split line becomes a single constrained edge shared by both
		// halves.
		var closing edgeLink
		if len(first) == 2 {
			closing = firstLinks[0]
		} else {
			firstLinks = append(firstLinks, edgeLink{t: noTriangle, e: -1, c: true})
			created = tr.triangulatePolygon(first, firstLinks)
			closing, _ = tr.edgeIn(created, s.ring[s1], s.ring[s0])
		}
		closing.c = true
		if len(second) == 2 {
			other := secondLinks[0]
			tr.link(closing.t, closing.e, other.t, other.e, true)
		} else {
			secondLinks = append(secondLinks, closing)
			created = append(created, tr.triangulatePolygon(second, secondLinks)...)
		}
	}

	if len(created) > 0 {
		tr.last = created[0]
		tr.legalizeAll(created)
	} else {
		tr.last = tr.anyTriangle()
	}
	return nil
}

// cyclicSpan returns ring[from..to] inclusive, wrapping around, with the
// links of the edges between those vertices.
func cyclicSpan(ring []int, links []edgeLink, from, to int) ([]int, []edgeLink) {
	m := len(ring)
	poly := []int{ring[from]}
	var pl []edgeLink
	for i := from; i != to; i = (i + 1) % m {
		pl = append(pl, links[i])
		poly = append(poly, ring[(i+1)%m])
	}
	return poly, pl
}

// vertexError is the absolute elevation change at v if it were removed, or
// +Inf when v cannot be removed.
func (tr *Triangulation) vertexError(v int) float64 {
	vx := tr.verts[v]
	if vx.removed || vx.aux || vx.weight == tmath.WeightCorner {
		return math.Inf(1)
	}
	s := tr.starOf(v)
	if !s.closed {
		return math.Inf(1)
	}

	switch spokes := tr.constrainedSpokes(v, s); len(spokes) {
	case 0:
		return math.Abs(vx.z - tr.interpolateWithout(v, s.ring))
	case 2:
		a, b := tr.verts[s.ring[spokes[0]]], tr.verts[s.ring[spokes[1]]]
		if orient(a.p, b.p, vx.p) != 0 {
			return math.Inf(1)
		}
		d := b.p.Sub(a.p)
		t := vx.p.Sub(a.p).Dot(d) / norm2(d)
		return math.Abs(vx.z - (a.z + t*(b.z-a.z)))
	}
	return math.Inf(1)
}

// interpolateWithout estimates the elevation at v from the triangulation of
// its link ring.
func (tr *Triangulation) interpolateWithout(v int, ring []int) float64 {
	p := tr.verts[v].p
	for _, t := range tr.earTriangles(ring) {
		a, b, c := tr.verts[t[0]], tr.verts[t[1]], tr.verts[t[2]]
		if a.aux || b.aux || c.aux {
			continue
		}
		wa, wb, wc, ok := barycentric(a.p, b.p, c.p, p)
		if !ok || wa < -1e-9 || wb < -1e-9 || wc < -1e-9 {
			continue
		}
		return wa*a.z + wb*b.z + wc*c.z
	}
	return tr.inverseDistance(p, ring)
}

// inverseDistance weights the non-auxiliary ring vertices by 1/d².
func (tr *Triangulation) inverseDistance(p r2.Point, ring []int) float64 {
	var sum, wsum float64
	for _, r := range ring {
		vr := tr.verts[r]
		if vr.aux {
			continue
		}
		d := norm2(vr.p.Sub(p))
		if d == 0 {
			return vr.z
		}
		sum += vr.z / d
		wsum += 1 / d
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

type candidate struct {
	v       int
	err     float64
	version int
}

// errorQueue is a min-heap on error, ties broken by vertex id.
type errorQueue []candidate

func (q errorQueue) Len() int { return len(q) }
func (q errorQueue) Less(i, j int) bool {
	if q[i].err != q[j].err {
		return q[i].err < q[j].err
	}
	return q[i].v < q[j].v
}
func (q errorQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *errorQueue) Push(x any)   { *q = append(*q, x.(candidate)) }
func (q *errorQueue) Pop() any {
	old := *q
	c := old[len(old)-1]
	*q = old[:len(old)-1]
	return c
}
