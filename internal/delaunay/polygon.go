package delaunay

import (
	"math"

	"github.com/golang/geo/r2"
)

// chooseEar picks the ear of a counter-clockwise polygon to clip next.
// Ears whose circumcircle holds no other polygon vertex are preferred so the
// result is Delaunay inside the polygon.
func (tr *Triangulation) chooseEar(poly []int) int {
	n := len(poly)
	fallback := -1
	widest, widestArea := 0, math.Inf(-1)
	for i := range poly {
		a := tr.verts[poly[(i+n-1)%n]].p
		b := tr.verts[poly[i]].p
		c := tr.verts[poly[(i+1)%n]].p
		area := orient(a, b, c)
		if area > widestArea {
			widest, widestArea = i, area
		}
		if area <= 0 || tr.earBlocked(poly, i) {
			continue
		}
		if fallback < 0 {
			fallback = i
		}
		if tr.earIsDelaunay(poly, i, a, b, c) {
			return i
		}
	}
	if fallback >= 0 {
		return fallback
	}
	return widest
}

// earBlocked reports whether another polygon vertex lies in the closed ear.
func (tr *Triangulation) earBlocked(poly []int, i int) bool {
	n := len(poly)
	ia, ib, ic := poly[(i+n-1)%n], poly[i], poly[(i+1)%n]
	a, b, c := tr.verts[ia].p, tr.verts[ib].p, tr.verts[ic].p
	for _, q := range poly {
		if q == ia || q == ib || q == ic {
			continue
		}
		p := tr.verts[q].p
		if orient(a, b, p) >= 0 && orient(b, c, p) >= 0 && orient(c, a, p) >= 0 {
			return true
		}
	}
	return false
}

func (tr *Triangulation) earIsDelaunay(poly []int, i int, a, b, c r2.Point) bool {
	n := len(poly)
	tol := delaunayTolerance(a, b, c)
	for j, q := range poly {
		if j == i || j == (i+n-1)%n || j == (i+1)%n {
			continue
		}
		if inCircle(a, b, c, tr.verts[q].p) > tol {
			return false
		}
	}
	return true
}

// earTriangles triangulates a polygon without touching the mesh.
func (tr *Triangulation) earTriangles(poly []int) [][3]int {
	poly = append([]int(nil), poly...)
	var out [][3]int
	for len(poly) > 3 {
		i := tr.chooseEar(poly)
		n := len(poly)
		out = append(out, [3]int{poly[(i+n-1)%n], poly[i], poly[(i+1)%n]})
		poly = append(poly[:i], poly[i+1:]...)
	}
	if len(poly) == 3 {
		out = append(out, [3]int{poly[0], poly[1], poly[2]})
	}
	return out
}

// triangulatePolygon fills a counter-clockwise polygon hole. links[i]
// describes the far side of edge poly[i] -> poly[i+1]. It returns the new
// triangles.
func (tr *Triangulation) triangulatePolygon(poly []int, links []edgeLink) []int {
	poly = append([]int(nil), poly...)
	links = append([]edgeLink(nil), links...)
	var created []int
	for len(poly) > 3 {
		i := tr.chooseEar(poly)
		n := len(poly)
		prev, next := (i+n-1)%n, (i+1)%n
		t := tr.newTriangle(poly[prev], poly[i], poly[next])
		tr.link(t, 2, links[prev].t, links[prev].e, links[prev].c)
		tr.link(t, 0, links[i].t, links[i].e, links[i].c)
		// The new diagonal prev -> next is edge 1 of t.
		links[prev] = edgeLink{t: t, e: 1}
		poly = append(poly[:i], poly[i+1:]...)
		links = append(links[:i], links[i+1:]...)
		created = append(created, t)
	}
	if len(poly) == 3 {
		t := tr.newTriangle(poly[0], poly[1], poly[2])
		tr.link(t, 2, links[0].t, links[0].e, links[0].c)
		tr.link(t, 0, links[1].t, links[1].e, links[1].c)
		tr.link(t, 1, links[2].t, links[2].e, links[2].c)
		created = append(created, t)
	}
	return created
}

// edgeIn finds the directed edge u -> w among the given triangles.
func (tr *Triangulation) edgeIn(tris []int, u, w int) (edgeLink, bool) {
	for _, t := range tris {
		T := tr.tris[t]
		for e := 0; e < 3; e++ {
			if T.v[(e+1)%3] == u && T.v[(e+2)%3] == w {
				return edgeLink{t: t, e: e, c: T.c[e]}, true
			}
		}
	}
	return edgeLink{t: noTriangle, e: -1}, false
}

// legalizeAll queues every edge of the given triangles.
func (tr *Triangulation) legalizeAll(tris []int) {
	stack := make([][2]int, 0, 3*len(tris))
	for _, t := range tris {
		for e := 0; e < 3; e++ {
			stack = append(stack, [2]int{t, e})
		}
	}
	tr.legalize(stack)
}
