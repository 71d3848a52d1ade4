package pipeline

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/atomic"

	"github.com/Faultbox/terramesh/internal/layer"
	"github.com/Faultbox/terramesh/internal/source"
	"github.com/Faultbox/terramesh/internal/tilestore"
	"github.com/Faultbox/terramesh/pkg/formats"
	tmath "github.com/Faultbox/terramesh/pkg/math"
	"github.com/Faultbox/terramesh/pkg/quadtree"
)

const testMaxPoints = 40

// newLayer creates a layer of 2x2 tiles at lod 3 around the map center.
func newLayer(t *testing.T) (*layer.Settings, *tilestore.Store) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "test")
	s := &layer.Settings{
		Name:   "test",
		Type:   layer.TypeElevation,
		SRS:    source.SRSNormMercator,
		MaxLOD: 3,
		Extent: [4]int64{3, 3, 4, 4},
	}
	if err := layer.Create(dir, s, false); err != nil {
		t.Fatalf("creating layer: %v", err)
	}
	return s, tilestore.New(dir, &tilestore.Locker{RetryInterval: time.Millisecond})
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Workers = 3
	opts.MaxPoints = testMaxPoints
	return opts
}

func surface(x, y float64) float64 {
	return 500 + 800*math.Sin(4*x)*math.Cos(3*y)
}

// samples scatters n points over [-0.3, 0.3]^2, slightly wider than the
// layer extent [-0.25, 0.25]^2.
func samples(n int, seed int64) []tmath.ElevationPoint {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]tmath.ElevationPoint, n)
	for i := range pts {
		x := -0.3 + 0.6*rng.Float64()
		y := -0.3 + 0.6*rng.Float64()
		pts[i] = tmath.ElevationPoint{X: x, Y: y, Elevation: surface(x, y)}
	}
	return pts
}

func identity(t *testing.T) *source.Reprojector {
	t.Helper()
	r, err := source.NewReprojector(source.SRSNormMercator)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func checkReport(t *testing.T, r Report, processed, skipped int64) {
	t.Helper()
	if r.Err != nil {
		t.Fatalf("%s lod %d failed: %v", r.Stage, r.LOD, r.Err)
	}
	if r.Processed != processed || r.Skipped != skipped || r.Failed != 0 {
		t.Fatalf("%v; want %d written, %d skipped", r, processed, skipped)
	}
}

func TestIngest(t *testing.T) {
	s, store := newLayer(t)
	p := New(s, store, testOptions())

	pts := append(samples(1500, 1), tmath.ElevationPoint{X: 3, Y: 0, Elevation: 1})
	r := p.Ingest(context.Background(), identity(t), pts)
	checkReport(t, r.Report, 4, 0)

	if r.Read != len(pts) || r.OutsideMap != 1 {
		t.Errorf("read %d outside map %d; want %d and 1", r.Read, r.OutsideMap, len(pts))
	}
	if r.OutsideLayer == 0 {
		t.Error("expected samples outside the layer extent")
	}
	if r.Stored+r.OutsideLayer+r.OutsideMap != r.Read {
		t.Errorf("stored %d + outside %d + %d != read %d", r.Stored, r.OutsideLayer, r.OutsideMap, r.Read)
	}

	total := 0
	for _, c := range s.Tiles(s.MaxLOD) {
		bucket, err := store.ReadPoints(c)
		if err != nil {
			t.Fatal(err)
		}
		ext := c.Extent()
		for _, q := range bucket {
			if q.X < ext.X.Lo || q.X > ext.X.Hi || q.Y < ext.Y.Lo || q.Y > ext.Y.Hi {
				t.Fatalf("sample %+v stored in wrong bucket %s", q, c)
			}
		}
		total += len(bucket)
	}
	if total != r.Stored {
		t.Errorf("buckets hold %d samples, report says %d", total, r.Stored)
	}
}

func TestTriangulateAndResample(t *testing.T) {
	s, store := newLayer(t)
	var calls atomic.Int64
	opts := testOptions()
	opts.Progress = func(Progress) { calls.Inc() }
	p := New(s, store, opts)
	ctx := context.Background()

	checkReport(t, p.Ingest(ctx, identity(t), samples(2000, 2)).Report, 4, 0)
	calls.Store(0)

	checkReport(t, p.Triangulate(ctx, StoreProvider{Store: store}), 4, 0)
	if calls.Load() != 4 {
		t.Errorf("progress called %d times, want 4", calls.Load())
	}
	for _, c := range s.Tiles(s.MaxLOD) {
		tile, err := store.ReadTile(c)
		if err != nil || tile == nil {
			t.Fatalf("tile %s: %v", c, err)
		}
		if n := tile.NumPoints(); n > testMaxPoints || n < 4 {
			t.Errorf("tile %s has %d points", c, n)
		}
		if !store.Exists(tilestore.KindMesh, c) {
			t.Errorf("mesh %s missing", c)
		}
	}

	reports := p.Resample(ctx)
	if len(reports) != 3 {
		t.Fatalf("got %d level reports, want 3", len(reports))
	}
	for i, want := range []int64{4, 4, 1} {
		if reports[i].LOD != 2-i {
			t.Errorf("report %d is for lod %d", i, reports[i].LOD)
		}
		checkReport(t, reports[i], want, 0)
	}
	if err := Failed(reports); err != nil {
		t.Fatal(err)
	}

	// Tile 2/1/1 has a single child in the extent, 3/3/3 in its south-east.
	parent, err := store.ReadTile(quadtree.TileCoord{X: 1, Y: 1, LOD: 2})
	if err != nil || parent == nil {
		t.Fatalf("reading parent: %v", err)
	}
	child, err := store.ReadTile(quadtree.TileCoord{X: 3, Y: 3, LOD: 3})
	if err != nil || child == nil {
		t.Fatalf("reading child: %v", err)
	}
	if parent.Corners[formats.CornerSE] != child.Corners[formats.CornerSE] {
		t.Errorf("parent SE corner %+v differs from child %+v", parent.Corners[formats.CornerSE], child.Corners[formats.CornerSE])
	}

	root, err := store.ReadMesh(quadtree.TileCoord{LOD: 0})
	if err != nil {
		t.Fatalf("reading root mesh: %v", err)
	}
	if root.NumVertices() == 0 || len(root.Indices) == 0 {
		t.Error("root mesh is empty")
	}
}

func TestResampleIsolatesFailures(t *testing.T) {
	s, store := newLayer(t)
	p := New(s, store, testOptions())
	ctx := context.Background()

	p.Ingest(ctx, identity(t), samples(1200, 3))
	checkReport(t, p.Triangulate(ctx, StoreProvider{Store: store}), 4, 0)

	broken := store.Path(tilestore.KindTRI, quadtree.TileCoord{X: 4, Y: 4, LOD: 3})
	if err := os.WriteFile(broken, []byte("not a tile"), 0644); err != nil {
		t.Fatal(err)
	}

	r := p.ResampleLevel(ctx, 2)
	if r.Failed != 1 || r.Processed != 3 {
		t.Fatalf("%v; want 3 written and 1 failed", r)
	}
	if r.Err == nil || !strings.Contains(r.Err.Error(), "2/2/2") {
		t.Errorf("error %v does not name the failed tile", r.Err)
	}
	if store.Exists(tilestore.KindTRI, quadtree.TileCoord{X: 2, Y: 2, LOD: 2}) {
		t.Error("failed tile was written")
	}
}

func TestEmptyLayerSkipsTiles(t *testing.T) {
	s, store := newLayer(t)
	p := New(s, store, testOptions())
	ctx := context.Background()

	checkReport(t, p.Triangulate(ctx, StoreProvider{Store: store}), 0, 4)
	for _, r := range p.Resample(ctx) {
		if r.Processed != 0 || r.Failed != 0 {
			t.Errorf("%v; want nothing written", r)
		}
	}
	tiles, err := store.Tiles(tilestore.KindMesh, 0)
	if err != nil || len(tiles) != 0 {
		t.Errorf("empty layer produced tiles %v (%v)", tiles, err)
	}
}

func TestBuildFromIndex(t *testing.T) {
	s, store := newLayer(t)
	p := New(s, store, testOptions())

	ix := source.NewIndex()
	ix.Insert(samples(1500, 4)...)

	reports := p.Build(context.Background(), ix)
	if len(reports) != 4 {
		t.Fatalf("got %d reports, want 4", len(reports))
	}
	checkReport(t, reports[0], 4, 0)
	if err := Failed(reports); err != nil {
		t.Fatal(err)
	}
	for lod := 0; lod <= s.MaxLOD; lod++ {
		tiles, err := store.Tiles(tilestore.KindTRI, lod)
		if err != nil {
			t.Fatal(err)
		}
		if want := len(s.Tiles(lod)); len(tiles) != want {
			t.Errorf("lod %d has %d tiles, want %d", lod, len(tiles), want)
		}
	}
}

func TestCancelledRun(t *testing.T) {
	s, store := newLayer(t)
	p := New(s, store, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := p.Triangulate(ctx, StoreProvider{Store: store})
	if !errors.Is(r.Err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", r.Err)
	}
	if r.Processed != 0 {
		t.Errorf("cancelled run wrote %d tiles", r.Processed)
	}
	if got := p.ResampleRange(ctx, 2, 0); len(got) != 1 {
		t.Errorf("cancelled resample ran %d levels, want 1", len(got))
	}
}
