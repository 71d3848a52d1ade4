// terramesh builds quadtree elevation tiles from raw elevation samples.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/terramesh/internal/config"
	"github.com/Faultbox/terramesh/internal/layer"
	"github.com/Faultbox/terramesh/internal/logger"
	"github.com/Faultbox/terramesh/internal/pipeline"
	"github.com/Faultbox/terramesh/internal/tilestore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "createlayer":
		err = cmdCreateLayer(args)
	case "calcextent":
		err = cmdCalcExtent(args)
	case "adddata":
		err = cmdAddData(args)
	case "triangulate":
		err = cmdTriangulate(args)
	case "resample":
		err = cmdResample(args)
	case "build":
		err = cmdBuild(args)
	case "info":
		err = cmdInfo(args)
	case "quadkey", "qk":
		err = cmdQuadkey(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`terramesh - quadtree elevation tile builder

Usage:
  terramesh <command> [options]

Commands:
  createlayer -name <layer> -lod <n> (-extent x0,y0,x1,y1 | -wgs84 lng0,lat0,lng1,lat1) [-srs EPSG:4326] [-force]
  calcextent  -lod <n> (-wgs84 lng0,lat0,lng1,lat1 | -srs <srs> <files...>)
  adddata     -layer <layer> [-srs <srs>] <files...>
  triangulate -layer <layer>
  resample    -layer <layer> [-from <lod>] [-to <lod>]
  build       -layer <layer> [-srs <srs>] <files...>
  info        [-obj out.obj] [-nocurtain] <file.tri|file.json>
  quadkey     <quadkey> | -tile lod/x/y | -lnglat lng,lat -lod <n>

Common options:
  -config <file>   Config file (default ./terramesh.yaml)
  -data <dir>      Data directory holding the layers
  -workers <n>     Worker count
  -maxpoints <n>   Point budget per tile (33..2047)
  -debug           Debug logging
  -log <file>      Also log to a rotating file

Examples:
  terramesh createlayer -name alps -lod 12 -wgs84 5.9,45.8,10.5,47.8
  terramesh adddata -layer alps dem_a.xyz dem_b.xyz
  terramesh triangulate -layer alps
  terramesh resample -layer alps
  terramesh quadkey 120210233`)
}

// setup parses a subcommand's flags and brings up config and logging.
func setup(fs *flag.FlagSet, args []string) (*config.Config, error) {
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger.Debug("configuration loaded", zap.Any("config", cfg))
	return cfg, nil
}

// openLayer loads a layer and its tile store.
func openLayer(cfg *config.Config, name string) (*layer.Settings, *tilestore.Store, error) {
	if name == "" {
		return nil, nil, fmt.Errorf("layer name is not specified")
	}
	dir := layer.Dir(cfg.Processing.DataDir, name)
	settings, err := layer.Load(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w (create it with 'createlayer')", err)
	}
	locker := &tilestore.Locker{RetryInterval: cfg.Lock.RetryInterval, Timeout: cfg.Lock.Timeout}
	return settings, tilestore.New(dir, locker), nil
}

func newPipeline(cfg *config.Config, settings *layer.Settings, store *tilestore.Store) *pipeline.Pipeline {
	opts := pipeline.Options{
		Workers:      cfg.WorkerCount(),
		MaxPoints:    cfg.Processing.MaxPoints,
		Curtain:      cfg.Processing.Curtain,
		CurtainDepth: cfg.Processing.CurtainDepth,
	}
	return pipeline.New(settings, store, opts)
}

func printReports(reports ...pipeline.Report) error {
	for _, r := range reports {
		fmt.Println(r)
	}
	return pipeline.Failed(reports)
}

// parseFloats parses a comma separated list of exactly n numbers.
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated values, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d of %q: %w", i+1, s, err)
		}
		out[i] = v
	}
	return out, nil
}
