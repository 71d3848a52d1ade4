package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r2"
	"go.uber.org/zap"

	"github.com/Faultbox/terramesh/internal/layer"
	"github.com/Faultbox/terramesh/internal/logger"
	"github.com/Faultbox/terramesh/internal/pipeline"
	"github.com/Faultbox/terramesh/internal/source"
	"github.com/Faultbox/terramesh/internal/terrain"
	"github.com/Faultbox/terramesh/pkg/formats"
	"github.com/Faultbox/terramesh/pkg/geodesy"
	tmath "github.com/Faultbox/terramesh/pkg/math"
	"github.com/Faultbox/terramesh/pkg/quadtree"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func cmdCreateLayer(args []string) error {
	fs := flag.NewFlagSet("createlayer", flag.ExitOnError)
	name := fs.String("name", "", "Layer name")
	lod := fs.Int("lod", 0, "Maximum level of detail")
	extent := fs.String("extent", "", "Tile extent x0,y0,x1,y1 at lod")
	wgs84 := fs.String("wgs84", "", "Geographic bound lng0,lat0,lng1,lat1")
	srs := fs.String("srs", source.SRSWGS84, "Reference system of the input data")
	force := fs.Bool("force", false, "Replace an existing layer")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}

	srsName, err := source.ParseSRS(*srs)
	if err != nil {
		return err
	}
	settings := &layer.Settings{Name: *name, Type: layer.TypeElevation, SRS: srsName, MaxLOD: *lod}

	switch {
	case *extent != "" && *wgs84 != "":
		return fmt.Errorf("use either -extent or -wgs84")
	case *extent != "":
		v, err := parseFloats(*extent, 4)
		if err != nil {
			return err
		}
		for i := range v {
			settings.Extent[i] = int64(v[i])
		}
	case *wgs84 != "":
		v, err := parseFloats(*wgs84, 4)
		if err != nil {
			return err
		}
		if settings.Extent, err = layer.ExtentFromLngLat(v[0], v[1], v[2], v[3], *lod); err != nil {
			return err
		}
	default:
		return fmt.Errorf("extent is not specified")
	}

	dir := layer.Dir(cfg.Processing.DataDir, *name)
	if err := layer.Create(dir, settings, *force); err != nil {
		return err
	}
	logger.Info("layer created",
		zap.String("layer", settings.Name),
		zap.String("dir", dir),
		zap.Int("maxlod", settings.MaxLOD),
		zap.Int64s("extent", settings.Extent[:]))
	return nil
}

func cmdCalcExtent(args []string) error {
	fs := flag.NewFlagSet("calcextent", flag.ExitOnError)
	lod := fs.Int("lod", 0, "Level of detail")
	wgs84 := fs.String("wgs84", "", "Geographic bound lng0,lat0,lng1,lat1")
	srs := fs.String("srs", "", "Reference system of the input files")
	if _, err := setup(fs, args); err != nil {
		return err
	}

	var extent [4]int64
	switch {
	case *wgs84 != "":
		v, err := parseFloats(*wgs84, 4)
		if err != nil {
			return err
		}
		if extent, err = layer.ExtentFromLngLat(v[0], v[1], v[2], v[3], *lod); err != nil {
			return err
		}
	case *srs != "" && fs.NArg() > 0:
		if *lod < layer.MinExtentLOD || *lod > layer.MaxExtentLOD {
			return fmt.Errorf("%w: lod %d", layer.ErrInvalidBounds, *lod)
		}
		pts, err := readInputs(*srs, fs.Args())
		if err != nil {
			return err
		}
		if len(pts) == 0 {
			return fmt.Errorf("no samples inside the map")
		}
		bounds := r2.EmptyRect()
		for _, p := range pts {
			bounds = bounds.AddPoint(r2.Point{X: p.X, Y: p.Y})
		}
		extent = layer.ExtentFromBounds(bounds, *lod)
	default:
		return fmt.Errorf("use -wgs84 with -lod, or -srs with input files")
	}

	fmt.Printf("Tile extent at lod %d: %d,%d,%d,%d\n", *lod, extent[0], extent[1], extent[2], extent[3])
	fmt.Printf("Tiles: %d\n", (extent[2]-extent[0]+1)*(extent[3]-extent[1]+1))
	return nil
}

// readInputs reads and reprojects the samples of all files.
func readInputs(srs string, files []string) ([]tmath.ElevationPoint, error) {
	proj, err := source.NewReprojector(srs)
	if err != nil {
		return nil, err
	}
	var all []tmath.ElevationPoint
	for _, f := range files {
		pts, err := source.ReadFile(f)
		if err != nil {
			return nil, err
		}
		kept, dropped := proj.Points(pts)
		logger.Info("input read", zap.String("file", f), zap.Int("samples", len(pts)), zap.Int("outside_map", dropped))
		all = append(all, kept...)
	}
	return all, nil
}

func cmdAddData(args []string) error {
	fs := flag.NewFlagSet("adddata", flag.ExitOnError)
	name := fs.String("layer", "", "Layer name")
	srs := fs.String("srs", "", "Reference system of the input files (default: layer srs)")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no input files")
	}

	settings, store, err := openLayer(cfg, *name)
	if err != nil {
		return err
	}
	if *srs == "" {
		*srs = settings.SRS
	}
	proj, err := source.NewReprojector(*srs)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	p := newPipeline(cfg, settings, store)
	for _, f := range fs.Args() {
		pts, err := source.ReadFile(f)
		if err != nil {
			return err
		}
		r := p.Ingest(ctx, proj, pts)
		fmt.Printf("%s: %d samples, %d stored, %d outside layer, %d outside map\n",
			filepath.Base(f), r.Read, r.Stored, r.OutsideLayer, r.OutsideMap)
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

func cmdTriangulate(args []string) error {
	fs := flag.NewFlagSet("triangulate", flag.ExitOnError)
	name := fs.String("layer", "", "Layer name")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	settings, store, err := openLayer(cfg, *name)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	p := newPipeline(cfg, settings, store)
	return printReports(p.Triangulate(ctx, pipeline.StoreProvider{Store: store}))
}

func cmdResample(args []string) error {
	fs := flag.NewFlagSet("resample", flag.ExitOnError)
	name := fs.String("layer", "", "Layer name")
	from := fs.Int("from", -1, "Finest level to rebuild (default maxlod-1)")
	to := fs.Int("to", 0, "Coarsest level to rebuild")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	settings, store, err := openLayer(cfg, *name)
	if err != nil {
		return err
	}
	if *from < 0 {
		*from = settings.MaxLOD - 1
	}

	ctx, cancel := signalContext()
	defer cancel()
	p := newPipeline(cfg, settings, store)
	return printReports(p.ResampleRange(ctx, *from, *to)...)
}

func cmdBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	name := fs.String("layer", "", "Layer name")
	srs := fs.String("srs", "", "Reference system of the input files (default: layer srs)")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no input files")
	}
	settings, store, err := openLayer(cfg, *name)
	if err != nil {
		return err
	}
	if *srs == "" {
		*srs = settings.SRS
	}

	pts, err := readInputs(*srs, fs.Args())
	if err != nil {
		return err
	}
	ix := source.NewIndex()
	ix.Insert(pts...)
	logger.Info("samples indexed", zap.Int("samples", ix.Len()))

	ctx, cancel := signalContext()
	defer cancel()
	p := newPipeline(cfg, settings, store)
	return printReports(p.Build(ctx, ix)...)
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	objPath := fs.String("obj", "", "Write the tile mesh as Wavefront OBJ")
	noCurtain := fs.Bool("nocurtain", false, "Leave the curtain out of the OBJ")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: terramesh info [-obj out.obj] <file.tri|file.json>")
	}
	path := fs.Arg(0)

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc, err := terrain.ParseMeshJSON(data)
		if err != nil {
			return err
		}
		fmt.Printf("Mesh:      %s\n", path)
		fmt.Printf("Vertices:  %d\n", doc.NumVertices())
		fmt.Printf("Triangles: %d\n", len(doc.Indices)/3)
		fmt.Printf("Curtain:   from vertex %d\n", doc.CurtainIndex)
		fmt.Printf("Offset:    %.3f %.3f %.3f\n", doc.Offset[0], doc.Offset[1], doc.Offset[2])
		return nil
	}

	tri, err := formats.ParseTRIFile(path)
	if err != nil {
		return err
	}
	tile := terrain.FromTRI(tri)
	ext := tile.Extent()
	lng0, lat0 := geodesy.MercatorToLngLat(ext.X.Lo, ext.Y.Lo, 0)
	lng1, lat1 := geodesy.MercatorToLngLat(ext.X.Hi, ext.Y.Hi, 0)

	fmt.Printf("Tile:     %s (version %s)\n", path, tri.Version)
	fmt.Printf("Extent:   %.9f %.9f %.9f %.9f\n", ext.X.Lo, ext.Y.Lo, ext.X.Hi, ext.Y.Hi)
	fmt.Printf("WGS84:    %.6f %.6f %.6f %.6f\n", lng0, lat0, lng1, lat1)
	fmt.Printf("Points:   %d (N %d, E %d, S %d, W %d, M %d)\n", tile.NumPoints(),
		len(tile.North), len(tile.East), len(tile.South), len(tile.West), len(tile.Middle))
	for i, label := range []string{"NW", "NE", "SE", "SW"} {
		fmt.Printf("Corner %s: %.3f\n", label, tile.Corners[i].Elevation)
	}

	if *objPath == "" {
		return nil
	}
	mesh, err := tile.Precompute(!*noCurtain)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := mesh.WriteOBJ(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(*objPath, buf.Bytes(), 0644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d vertices, %d triangles)\n", *objPath, len(mesh.Vertices), len(mesh.Indices)/3)
	return nil
}

func cmdQuadkey(args []string) error {
	fs := flag.NewFlagSet("quadkey", flag.ExitOnError)
	tile := fs.String("tile", "", "Tile as lod/x/y")
	lnglat := fs.String("lnglat", "", "WGS84 position lng,lat")
	lod := fs.Int("lod", 0, "Level of detail for -lnglat")
	fs.Parse(args)

	var c quadtree.TileCoord
	switch {
	case *tile != "":
		var err error
		if c, err = parseTile(*tile); err != nil {
			return err
		}
	case *lnglat != "":
		v, err := parseFloats(*lnglat, 2)
		if err != nil {
			return err
		}
		if *lod < 0 || *lod > quadtree.MaxLevel {
			return fmt.Errorf("%w: %d", quadtree.ErrInvalidLevel, *lod)
		}
		x, y := geodesy.LngLatToMercator(v[0], v[1], 0)
		c = quadtree.MercatorToTileCoord(x, y, *lod)
	case fs.NArg() == 1:
		var err error
		if c, err = quadtree.QuadkeyToTileCoord(fs.Arg(0)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("usage: terramesh quadkey <quadkey> | -tile lod/x/y | -lnglat lng,lat -lod n")
	}

	ext := c.Extent()
	center := ext.Center()
	lng, lat := geodesy.MercatorToLngLat(center.X, center.Y, 0)
	fmt.Printf("Quadkey:    %s\n", c.Quadkey())
	fmt.Printf("Tile:       %s\n", c)
	fmt.Printf("Mercator:   %.12f %.12f %.12f %.12f\n", ext.X.Lo, ext.Y.Lo, ext.X.Hi, ext.Y.Hi)
	fmt.Printf("Center:     %.6f %.6f\n", lng, lat)
	fmt.Printf("Resolution: %.3f m/pixel (256 px tiles)\n", geodesy.GroundResolution(lat, c.LOD, 256))
	if parent, ok := quadtree.Parent(c.Quadkey()); ok {
		fmt.Printf("Parent:     %s\n", parent)
	}
	children := quadtree.Children(c.Quadkey())
	fmt.Printf("Children:   %s\n", strings.Join(children[:], " "))
	return nil
}

func parseTile(s string) (quadtree.TileCoord, error) {
	var c quadtree.TileCoord
	if _, err := fmt.Sscanf(s, "%d/%d/%d", &c.LOD, &c.X, &c.Y); err != nil {
		return c, fmt.Errorf("tile %q: want lod/x/y", s)
	}
	if c.LOD < 0 || c.LOD > quadtree.MaxLevel {
		return c, fmt.Errorf("%w: %d", quadtree.ErrInvalidLevel, c.LOD)
	}
	n := int64(1) << uint(c.LOD)
	if c.X < 0 || c.Y < 0 || c.X >= n || c.Y >= n {
		return c, fmt.Errorf("tile %q outside the quadtree", s)
	}
	return c, nil
}
