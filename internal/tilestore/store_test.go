package tilestore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Faultbox/terramesh/internal/terrain"
	tmath "github.com/Faultbox/terramesh/pkg/math"
	"github.com/Faultbox/terramesh/pkg/quadtree"
)

func TestPaths(t *testing.T) {
	s := New("/data/alps", nil)
	c := quadtree.TileCoord{X: 34, Y: 22, LOD: 6}

	tests := []struct {
		kind Kind
		want string
	}{
		{KindMesh, "/data/alps/tiles/6/34/22.json"},
		{KindTRI, "/data/alps/temp/tiles/6/34/22.tri"},
		{KindPTS, "/data/alps/temp/tiles/6/34/22.pts"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := s.Path(tt.kind, c); got != filepath.FromSlash(tt.want) {
				t.Errorf("Path = %s, want %s", got, tt.want)
			}
		})
	}
}

func testTile(c quadtree.TileCoord) *terrain.Tile {
	ext := c.Extent()
	tile := terrain.NewTile(ext)
	cx, cy := ext.Center().X, ext.Center().Y
	tile.Setup([]tmath.ElevationPoint{
		{X: ext.X.Lo, Y: ext.Y.Lo, Elevation: 10},
		{X: ext.X.Hi, Y: ext.Y.Hi, Elevation: 30},
		{X: cx, Y: cy, Elevation: 55},
		{X: cx, Y: ext.Y.Hi, Elevation: 20},
	})
	return tile
}

func TestTileRoundTrip(t *testing.T) {
	s := New(t.TempDir(), nil)
	c := quadtree.TileCoord{X: 5, Y: 9, LOD: 4}

	missing, err := s.ReadTile(c)
	if err != nil || missing != nil {
		t.Fatalf("ReadTile on empty store = %v, %v; want nil, nil", missing, err)
	}

	tile := testTile(c)
	if err := s.WriteTile(c, tile); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}
	got, err := s.ReadTile(c)
	if err != nil {
		t.Fatalf("ReadTile: %v", err)
	}
	if diff := cmp.Diff(tile.Points(), got.Points()); diff != "" {
		t.Errorf("points differ (-want +got):\n%s", diff)
	}
	if got.Extent() != tile.Extent() {
		t.Errorf("extent = %v, want %v", got.Extent(), tile.Extent())
	}
}

func TestWriteMesh(t *testing.T) {
	s := New(t.TempDir(), nil)
	c := quadtree.TileCoord{X: 1, Y: 2, LOD: 3}

	mesh, err := testTile(c).Precompute(true)
	if err != nil {
		t.Fatalf("Precompute: %v", err)
	}
	if err := s.WriteMesh(c, mesh); err != nil {
		t.Fatalf("WriteMesh: %v", err)
	}
	if !s.Exists(KindMesh, c) {
		t.Fatal("mesh file missing after write")
	}
	doc, err := s.ReadMesh(c)
	if err != nil {
		t.Fatalf("ReadMesh: %v", err)
	}
	if doc.NumVertices() != len(mesh.Vertices) {
		t.Errorf("vertices = %d, want %d", doc.NumVertices(), len(mesh.Vertices))
	}
	if len(doc.Indices) != len(mesh.Indices) {
		t.Errorf("indices = %d, want %d", len(doc.Indices), len(mesh.Indices))
	}
}

func TestTilesListing(t *testing.T) {
	s := New(t.TempDir(), nil)
	coords := []quadtree.TileCoord{
		{X: 3, Y: 1, LOD: 2},
		{X: 0, Y: 3, LOD: 2},
		{X: 0, Y: 0, LOD: 2},
		{X: 1, Y: 1, LOD: 1},
	}
	for _, c := range coords {
		if err := s.WriteTile(c, testTile(c)); err != nil {
			t.Fatal(err)
		}
	}
	// Stray files are ignored.
	if err := os.WriteFile(filepath.Join(s.TempDir(), "2", "0", "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Tiles(KindTRI, 2)
	if err != nil {
		t.Fatalf("Tiles: %v", err)
	}
	want := []quadtree.TileCoord{{X: 0, Y: 0, LOD: 2}, {X: 0, Y: 3, LOD: 2}, {X: 3, Y: 1, LOD: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tiles mismatch (-want +got):\n%s", diff)
	}

	none, err := s.Tiles(KindMesh, 2)
	if err != nil || len(none) != 0 {
		t.Errorf("Tiles(KindMesh) = %v, %v; want empty", none, err)
	}
}

func TestAppendAndReadNeighbourhood(t *testing.T) {
	s := New(t.TempDir(), nil)
	ctx := context.Background()
	center := quadtree.TileCoord{X: 0, Y: 1, LOD: 2}

	buckets := []struct {
		c   quadtree.TileCoord
		pts []tmath.ElevationPoint
	}{
		{center, []tmath.ElevationPoint{{X: 0.1, Y: 0.2, Elevation: 1}}},
		{quadtree.TileCoord{X: 1, Y: 1, LOD: 2}, []tmath.ElevationPoint{{X: 0.3, Y: 0.4, Elevation: 2}, {X: 0.5, Y: 0.6, Elevation: 3}}},
		{quadtree.TileCoord{X: 0, Y: 0, LOD: 2}, []tmath.ElevationPoint{{X: 0.7, Y: 0.8, Elevation: 4}}},
		{quadtree.TileCoord{X: 3, Y: 3, LOD: 2}, []tmath.ElevationPoint{{X: 0.9, Y: 0.9, Elevation: 5}}},
	}
	for _, b := range buckets {
		if err := s.AppendPoints(ctx, b.c, b.pts); err != nil {
			t.Fatalf("AppendPoints %s: %v", b.c, err)
		}
	}
	if err := s.AppendPoints(ctx, center, []tmath.ElevationPoint{{X: 0.15, Y: 0.25, Elevation: 6}}); err != nil {
		t.Fatal(err)
	}

	own, err := s.ReadPoints(center)
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 2 {
		t.Errorf("center bucket has %d points, want 2", len(own))
	}

	all, err := s.ReadNeighbourhood(center)
	if err != nil {
		t.Fatalf("ReadNeighbourhood: %v", err)
	}
	// (3,3) is not adjacent to (0,1).
	if len(all) != 5 {
		t.Errorf("neighbourhood has %d points, want 5", len(all))
	}
	if _, err := os.Stat(s.Path(KindPTS, center) + LockSuffix); !os.IsNotExist(err) {
		t.Error("lock marker left behind after append")
	}
}

func TestAppendPointsConcurrent(t *testing.T) {
	s := New(t.TempDir(), &Locker{RetryInterval: time.Millisecond})
	c := quadtree.TileCoord{X: 2, Y: 2, LOD: 3}

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pts := []tmath.ElevationPoint{
				{X: float64(i), Y: 0, Elevation: float64(i)},
				{X: float64(i), Y: 1, Elevation: float64(i)},
			}
			errs <- s.AppendPoints(context.Background(), c, pts)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AppendPoints: %v", err)
		}
	}

	pts, err := s.ReadPoints(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 2*writers {
		t.Errorf("bucket has %d points, want %d", len(pts), 2*writers)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "tile.json")
	if err := WriteFileAtomic(path, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("second")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the target", len(entries))
	}
}
