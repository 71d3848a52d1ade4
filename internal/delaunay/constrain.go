package delaunay

import "fmt"

// Constrain forces the segment between vertices a and b into the
// triangulation and marks it constrained. Triangles crossed by the segment
// are removed and the two pseudo-polygons on either side retriangulated.
func (tr *Triangulation) Constrain(a, b int) error {
	if a == b {
		return nil
	}
	if t, e, ok := tr.findEdge(a, b); ok {
		tr.setConstrained(t, e, true)
		return nil
	}

	pa, pb := tr.verts[a].p, tr.verts[b].p
	for v := range tr.verts {
		if v == a || v == b || tr.verts[v].removed {
			continue
		}
		if onSegment(pa, pb, tr.verts[v].p) {
			return fmt.Errorf("%w: vertex %d on segment %d-%d", ErrConstraintBlocked, v, a, b)
		}
	}

	crossed := make(map[int]bool)
	var order []int
	for t, T := range tr.tris {
		if T.dead {
			continue
		}
		for e := 0; e < 3; e++ {
			u, w := T.v[(e+1)%3], T.v[(e+2)%3]
			if !segmentsCross(pa, pb, tr.verts[u].p, tr.verts[w].p) {
				continue
			}
			if T.c[e] {
				return fmt.Errorf("%w: %d-%d crosses %d-%d", ErrConstraintCrossing, a, b, u, w)
			}
			if !crossed[t] {
				crossed[t] = true
				order = append(order, t)
			}
		}
	}
	if len(crossed) == 0 {
		return fmt.Errorf("%w: no path from %d to %d", ErrConstraintBlocked, a, b)
	}

	// Rim edges of the crossed region keyed by their start vertex.
	rim := make(map[int]boundaryEdge)
	for _, t := range order {
		for e := 0; e < 3; e++ {
			if crossed[tr.tris[t].n[e]] {
				continue
			}
			edge := tr.rimEdge(t, e)
			rim[edge.u] = edge
		}
	}

	upper, upperLinks, ok := walkRim(rim, a, b)
	if !ok {
		return fmt.Errorf("%w: open region between %d and %d", ErrConstraintBlocked, a, b)
	}
	lower, lowerLinks, ok := walkRim(rim, b, a)
	if !ok {
		return fmt.Errorf("%w: open region between %d and %d", ErrConstraintBlocked, b, a)
	}

	for _, t := range order {
		tr.killTriangle(t)
	}

	// Close each chain with the new segment; the first side leaves it
	// unlinked, the second links to it.
	upperLinks = append(upperLinks, edgeLink{t: noTriangle, e: -1, c: true})
	created := tr.triangulatePolygon(upper, upperLinks)
	closing, _ := tr.edgeIn(created, b, a)
	closing.c = true
	lowerLinks = append(lowerLinks, closing)
	created = append(created, tr.triangulatePolygon(lower, lowerLinks)...)

	tr.last = created[0]
	tr.legalizeAll(created)
	return nil
}

// walkRim follows rim edges from 'from' until it reaches 'to'. The returned
// polygon starts at from and ends at to.
func walkRim(rim map[int]boundaryEdge, from, to int) ([]int, []edgeLink, bool) {
	poly := []int{from}
	var links []edgeLink
	v := from
	for guard := 0; guard <= len(rim); guard++ {
		edge, ok := rim[v]
		if !ok {
			return nil, nil, false
		}
		links = append(links, edge.link)
		v = edge.w
		poly = append(poly, v)
		if v == to {
			return poly, links, true
		}
	}
	return nil, nil, false
}
