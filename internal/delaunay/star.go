package delaunay

// star lists the triangles around a vertex counter-clockwise. Triangle i
// spans (v, ring[i], ring[i+1]). An open star belongs to a hull vertex and
// its ring has one more entry than tris.
type star struct {
	tris   []int
	ring   []int
	closed bool
}

func (tr *Triangulation) starOf(v int) star {
	var s star
	start := tr.verts[v].tri
	if start < 0 || tr.tris[start].dead || tr.vertexIndex(start, v) < 0 {
		return s
	}

	t := start
	for guard := 0; guard <= len(tr.tris); guard++ {
		k := tr.vertexIndex(t, v)
		T := tr.tris[t]
		s.tris = append(s.tris, t)
		s.ring = append(s.ring, T.v[(k+1)%3])
		next := T.n[(k+1)%3]
		if next == start {
			s.closed = true
			return s
		}
		if next == noTriangle {
			s.ring = append(s.ring, T.v[(k+2)%3])
			break
		}
		t = next
	}

	// Hull vertex: collect the triangles clockwise of start as well.
	t = start
	for guard := 0; guard <= len(tr.tris); guard++ {
		k := tr.vertexIndex(t, v)
		prev := tr.tris[t].n[(k+2)%3]
		if prev == noTriangle {
			break
		}
		pk := tr.vertexIndex(prev, v)
		s.tris = append([]int{prev}, s.tris...)
		s.ring = append([]int{tr.tris[prev].v[(pk+1)%3]}, s.ring...)
		t = prev
	}
	return s
}

// findEdge returns a triangle and edge index for the edge between u and w.
func (tr *Triangulation) findEdge(u, w int) (int, int, bool) {
	for _, t := range tr.starOf(u).tris {
		T := tr.tris[t]
		k := tr.vertexIndex(t, u)
		if T.v[(k+1)%3] == w {
			return t, (k + 2) % 3, true
		}
		if T.v[(k+2)%3] == w {
			return t, (k + 1) % 3, true
		}
	}
	return noTriangle, -1, false
}

// constrainedSpokes returns the positions in s.ring whose edge to v is
// constrained.
func (tr *Triangulation) constrainedSpokes(v int, s star) []int {
	var out []int
	for i, t := range s.tris {
		k := tr.vertexIndex(t, v)
		// Edge v -> ring[i] is opposite the third vertex of triangle i.
		if tr.tris[t].c[(k+2)%3] {
			out = append(out, i)
		}
	}
	return out
}
