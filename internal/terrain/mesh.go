package terrain

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/Faultbox/terramesh/pkg/formats"
	"github.com/Faultbox/terramesh/pkg/geodesy"
	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// Vertex is an emitted mesh vertex. Position is relative to Mesh.Offset.
type Vertex struct {
	Position tmath.Vec3
	TexCoord tmath.Vec2
}

// Mesh holds a precomputed tile ready for a renderer.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
	// Offset is the geocentric position of the north-west corner.
	Offset r3.Vector
	// Bounds is the bounding box of all vertices in the offset frame.
	Bounds Bounds
	// CurtainStart is the index of the first curtain vertex. It equals
	// len(Vertices) for meshes without a curtain.
	CurtainStart int
}

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min r3.Vector
	Max r3.Vector
}

// Contains reports whether p lies in the closed box.
func (b Bounds) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func emptyBounds() Bounds {
	inf := math.Inf(1)
	return Bounds{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

func updateBounds(b *Bounds, p r3.Vector) {
	b.Min = r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
}

// meshBuilder accumulates vertices relative to an offset.
type meshBuilder struct {
	tile *Tile
	mesh *Mesh
}

// add appends a vertex for mercator position (x, y) at elevation h and
// returns its index. The bounding box grows with the stored single
// precision position so it always contains what a reader sees.
func (b *meshBuilder) add(x, y, h float64) uint32 {
	cx, cy, cz := geodesy.MercatorToCartesian(x, y, h)
	local := tmath.FromR3(r3.Vector{X: cx, Y: cy, Z: cz}.Sub(b.mesh.Offset))
	updateBounds(&b.mesh.Bounds, local.R3())

	e := b.tile.extent
	uv := tmath.Vec2{
		X: float32((x - e.X.Lo) / (e.X.Hi - e.X.Lo)),
		Y: float32((e.Y.Hi - y) / (e.Y.Hi - e.Y.Lo)),
	}
	b.mesh.Vertices = append(b.mesh.Vertices, Vertex{Position: local, TexCoord: uv})
	return uint32(len(b.mesh.Vertices) - 1)
}

// Precompute triangulates the tile and converts it to a renderable mesh in
// a frame centered on the north-west corner. With withCurtain a skirt is
// hung from the tile border down to CurtainDepth below the lowest vertex.
func (t *Tile) Precompute(withCurtain bool) (*Mesh, error) {
	tr, err := t.CreateTriangulation()
	if err != nil {
		return nil, fmt.Errorf("precomputing tile: %w", err)
	}
	pts := tr.Points()

	nw := t.Corners[formats.CornerNW]
	ox, oy, oz := geodesy.MercatorToCartesian(nw.X, nw.Y, nw.Elevation)
	m := &Mesh{
		Vertices: make([]Vertex, 0, len(pts)),
		Offset:   r3.Vector{X: ox, Y: oy, Z: oz},
		Bounds:   emptyBounds(),
	}
	b := &meshBuilder{tile: t, mesh: m}

	surface := make(map[[2]float64]float64, len(pts))
	minElevation := math.Inf(1)
	for _, p := range pts {
		b.add(p.X, p.Y, p.Elevation)
		surface[[2]float64{p.X, p.Y}] = p.Elevation
		minElevation = math.Min(minElevation, p.Elevation)
	}
	m.Indices = tr.Triangles()
	m.CurtainStart = len(m.Vertices)

	if withCurtain {
		t.buildCurtain(b, surface, minElevation-t.CurtainDepth)
	}
	return m, nil
}

// borderLoop walks the tile border counter-clockwise starting at SW:
// south to SE, east to NE, north to NW and west back to SW.
func (t *Tile) borderLoop() []tmath.ElevationPoint {
	loop := make([]tmath.ElevationPoint, 0, t.NumPoints()-len(t.Middle))
	loop = append(loop, t.Corners[formats.CornerSW])
	loop = append(loop, t.South...)
	loop = append(loop, t.Corners[formats.CornerSE])
	loop = append(loop, t.East...)
	loop = append(loop, t.Corners[formats.CornerNE])
	for i := len(t.North) - 1; i >= 0; i-- {
		loop = append(loop, t.North[i])
	}
	loop = append(loop, t.Corners[formats.CornerNW])
	for i := len(t.West) - 1; i >= 0; i-- {
		loop = append(loop, t.West[i])
	}
	return loop
}

// buildCurtain hangs the skirt from the border vertices present in surface,
// which maps triangulated positions to their elevation.
func (t *Tile) buildCurtain(b *meshBuilder, surface map[[2]float64]float64, curtainElevation float64) {
	var loop []tmath.ElevationPoint
	for _, p := range t.borderLoop() {
		if h, ok := surface[[2]float64{p.X, p.Y}]; ok {
			p.Elevation = h
			loop = append(loop, p)
		}
	}

	// Curtain vertices come in top/bottom pairs after the surface so the
	// curtain never shares an index with it.
	tops := make([]uint32, len(loop))
	bottoms := make([]uint32, len(loop))
	for i, p := range loop {
		tops[i] = b.add(p.X, p.Y, p.Elevation)
		bottoms[i] = b.add(p.X, p.Y, curtainElevation)
	}

	// Each border segment A->B becomes two outward facing triangles.
	for i := range loop {
		j := (i + 1) % len(loop)
		at, bt := tops[i], tops[j]
		ab, bb := bottoms[i], bottoms[j]
		b.mesh.Indices = append(b.mesh.Indices, at, ab, bb, at, bb, bt)
	}
}
