package delaunay

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"

	tmath "github.com/Faultbox/terramesh/pkg/math"
)

var unitRect = r2.RectFromPoints(r2.Point{X: 0, Y: 0}, r2.Point{X: 1, Y: 1})

// newTile builds the triangulation of a unit tile with constrained sides.
func newTile(t *testing.T) (*Triangulation, [4]int) {
	t.Helper()
	tr, err := New(unitRect.ExpandedByMargin(1), 1e-12)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var corners [4]int
	for i, c := range []r2.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}} {
		id, err := tr.Insert(tmath.ElevationPoint{X: c.X, Y: c.Y, Elevation: float64(i), Weight: tmath.WeightCorner})
		if err != nil {
			t.Fatalf("Insert corner failed: %v", err)
		}
		corners[i] = id
	}
	for i := range corners {
		if err := tr.Constrain(corners[i], corners[(i+1)%4]); err != nil {
			t.Fatalf("Constrain failed: %v", err)
		}
	}
	return tr, corners
}

// meshArea sums the signed areas of the reported triangles.
func meshArea(tr *Triangulation) float64 {
	pts := tr.Points()
	idx := tr.Triangles()
	var area float64
	for i := 0; i+2 < len(idx); i += 3 {
		a, b, c := pts[idx[i]], pts[idx[i+1]], pts[idx[i+2]]
		area += ((b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)) / 2
	}
	return area
}

func mustValidate(t *testing.T, tr *Triangulation) {
	t.Helper()
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestNewInvalidBounds(t *testing.T) {
	_, err := New(r2.EmptyRect(), 0)
	if !errors.Is(err, ErrInvalidBounds) {
		t.Errorf("New(empty) error = %v, want ErrInvalidBounds", err)
	}
}

func TestTileCornersOnly(t *testing.T) {
	tr, _ := newTile(t)
	mustValidate(t, tr)

	if got := tr.NumPoints(); got != 4 {
		t.Errorf("NumPoints() = %d, want 4", got)
	}
	if got := len(tr.Triangles()); got != 6 {
		t.Errorf("len(Triangles()) = %d, want 6", got)
	}
	if got := meshArea(tr); math.Abs(got-1) > 1e-12 {
		t.Errorf("mesh area = %v, want 1", got)
	}
}

func TestInsertRandom(t *testing.T) {
	tr, _ := newTile(t)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		x, y := rng.Float64(), rng.Float64()
		if _, err := tr.Insert(tmath.ElevationPoint{X: x, Y: y, Elevation: x * y}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	mustValidate(t, tr)
	if got := tr.NumPoints(); got != 504 {
		t.Errorf("NumPoints() = %d, want 504", got)
	}
	if got := meshArea(tr); math.Abs(got-1) > 1e-9 {
		t.Errorf("mesh area = %v, want 1", got)
	}
}

func TestInsertOnConstrainedEdge(t *testing.T) {
	tr, _ := newTile(t)
	for _, p := range []tmath.ElevationPoint{
		{X: 0.5, Y: 1, Weight: tmath.WeightEdge},
		{X: 1, Y: 0.25, Weight: tmath.WeightEdge},
		{X: 0.3, Y: 0, Weight: tmath.WeightEdge},
		{X: 0, Y: 0.6, Weight: tmath.WeightEdge},
		{X: 0.5, Y: 0.5},
	} {
		if _, err := tr.Insert(p); err != nil {
			t.Fatalf("Insert(%v) failed: %v", p, err)
		}
	}
	mustValidate(t, tr)
	if got := meshArea(tr); math.Abs(got-1) > 1e-12 {
		t.Errorf("mesh area = %v, want 1", got)
	}
	// Four edge points, one interior point and four corners: 8 boundary
	// vertices around one interior vertex give 8 triangles.
	if got := len(tr.Triangles()) / 3; got != 8 {
		t.Errorf("triangle count = %d, want 8", got)
	}
}

func TestInsertDuplicate(t *testing.T) {
	tr, _ := newTile(t)
	a, err := tr.Insert(tmath.ElevationPoint{X: 0.4, Y: 0.4, Elevation: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := tr.Insert(tmath.ElevationPoint{X: 0.4, Y: 0.4, Elevation: 2, Weight: tmath.WeightEdge})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("duplicate insert returned %d, want %d", b, a)
	}
	if got := tr.NumPoints(); got != 5 {
		t.Errorf("NumPoints() = %d, want 5", got)
	}
	for _, p := range tr.Points() {
		if p.X == 0.4 && (p.Elevation != 1 || p.Weight != tmath.WeightEdge) {
			t.Errorf("merged point = %+v, want elevation 1 with edge weight", p)
		}
	}
}

func TestInsertOutOfBounds(t *testing.T) {
	tr, _ := newTile(t)
	_, err := tr.Insert(tmath.ElevationPoint{X: 5, Y: 0.5})
	if !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Insert outside error = %v, want ErrOutOfBounds", err)
	}
	n, err := tr.InsertAll([]tmath.ElevationPoint{{X: 0.5, Y: 0.5}, {X: -3, Y: 0}})
	if err != nil || n != 1 {
		t.Errorf("InsertAll() = %d, %v, want 1 rejected", n, err)
	}
}

func TestConstrainCrossing(t *testing.T) {
	tr, err := New(unitRect.ExpandedByMargin(1), 0)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]int, 0, 4)
	for _, p := range []tmath.ElevationPoint{{X: 0, Y: 0.5}, {X: 1, Y: 0.5}, {X: 0.5, Y: 0}, {X: 0.5, Y: 1}} {
		id, err := tr.Insert(p)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if err := tr.Constrain(ids[0], ids[1]); err != nil {
		t.Fatalf("Constrain failed: %v", err)
	}
	mustValidate(t, tr)
	if err := tr.Constrain(ids[2], ids[3]); !errors.Is(err, ErrConstraintCrossing) {
		t.Errorf("crossing Constrain error = %v, want ErrConstraintCrossing", err)
	}

	mid, err := tr.Insert(tmath.ElevationPoint{X: 0.25, Y: 0.25})
	if err != nil {
		t.Fatal(err)
	}
	far, err := tr.Insert(tmath.ElevationPoint{X: 0.75, Y: 0.75})
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Constrain(ids[2], far); !errors.Is(err, ErrConstraintCrossing) {
		t.Errorf("Constrain through constrained edge error = %v", err)
	}
	if err := tr.Constrain(mid, ids[2]); err != nil {
		t.Errorf("Constrain(%d, %d) failed: %v", mid, ids[2], err)
	}
	mustValidate(t, tr)
}

func TestElevationAt(t *testing.T) {
	tr, _ := newTile(t)
	rng := rand.New(rand.NewSource(3))
	plane := func(x, y float64) float64 { return 10 + 2*x - 3*y }
	for i := 0; i < 50; i++ {
		x, y := rng.Float64(), rng.Float64()
		if _, err := tr.Insert(tmath.ElevationPoint{X: x, Y: y, Elevation: plane(x, y)}); err != nil {
			t.Fatal(err)
		}
	}
	// The corners of newTile are not on the plane; sample away from them.
	for _, p := range [][2]float64{{0.5, 0.5}, {0.45, 0.55}} {
		z, ok := tr.ElevationAt(p[0], p[1])
		if !ok {
			t.Fatalf("ElevationAt(%v) not found", p)
		}
		if math.IsNaN(z) {
			t.Errorf("ElevationAt(%v) = NaN", p)
		}
	}
	if _, ok := tr.ElevationAt(1.9, 1.9); ok {
		t.Error("ElevationAt in the auxiliary margin reported a value")
	}
}
