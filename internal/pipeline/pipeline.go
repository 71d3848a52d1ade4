// Package pipeline runs the tile stages of a layer: ingesting samples into
// point buckets, triangulating the finest level and resampling coarser
// levels from their children.
//
// Tiles of one level are processed concurrently by a bounded worker pool.
// A level is complete before the next coarser level starts. A failing tile
// is recorded in the level's Report and never stops its siblings.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/terramesh/internal/layer"
	"github.com/Faultbox/terramesh/internal/logger"
	"github.com/Faultbox/terramesh/internal/terrain"
	"github.com/Faultbox/terramesh/internal/tilestore"
	"github.com/Faultbox/terramesh/pkg/quadtree"
)

// Options controls a pipeline run.
type Options struct {
	Workers      int     // 0 = one per CPU
	MaxPoints    int     // per-tile point budget
	Curtain      bool    // emit curtain geometry in JSON tiles
	CurtainDepth float64 // curtain drop in meters

	// Progress, when set, is called after every tile from worker
	// goroutines. It must be safe for concurrent use.
	Progress func(Progress)
}

// DefaultOptions returns the stock processing options.
func DefaultOptions() Options {
	return Options{
		MaxPoints:    512,
		Curtain:      true,
		CurtainDepth: terrain.DefaultCurtainDepth,
	}
}

// Progress reports how far a stage is through one level.
type Progress struct {
	Stage string
	LOD   int
	Done  int64
	Total int64
}

// Report summarizes one stage over one level.
type Report struct {
	Stage     string
	LOD       int
	Processed int64
	Skipped   int64
	Failed    int64
	Duration  time.Duration
	// Err combines the failures of individual tiles.
	Err error
}

func (r Report) String() string {
	return fmt.Sprintf("%s lod %d: %d written, %d skipped, %d failed in %v",
		r.Stage, r.LOD, r.Processed, r.Skipped, r.Failed, r.Duration.Round(time.Millisecond))
}

// Pipeline processes the tiles of one layer.
type Pipeline struct {
	settings *layer.Settings
	store    *tilestore.Store
	opts     Options
	runID    string
	log      *zap.Logger
}

// New returns a pipeline for the layer described by settings and stored in
// store.
func New(settings *layer.Settings, store *tilestore.Store, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.CurtainDepth == 0 {
		opts.CurtainDepth = terrain.DefaultCurtainDepth
	}
	runID := uuid.NewString()
	return &Pipeline{
		settings: settings,
		store:    store,
		opts:     opts,
		runID:    runID,
		log: logger.Named("pipeline").With(
			zap.String("run_id", runID),
			zap.String("layer", settings.Name),
		),
	}
}

// RunID identifies this pipeline instance in logs.
func (p *Pipeline) RunID() string {
	return p.runID
}

// tileFunc processes one tile. wrote=false marks a tile with nothing to do.
type tileFunc func(ctx context.Context, c quadtree.TileCoord) (wrote bool, err error)

// runLevel applies fn to every tile with at most Options.Workers in flight
// and waits for all of them. Cancelling ctx stops scheduling further tiles;
// tiles already running finish.
func (p *Pipeline) runLevel(ctx context.Context, stage string, lod int, tiles []quadtree.TileCoord, fn tileFunc) Report {
	start := time.Now()
	log := p.log.With(zap.String("stage", stage), zap.Int("lod", lod))
	log.Info("level started", zap.Int("tiles", len(tiles)), zap.Int("workers", p.opts.Workers))

	var (
		processed, skipped, failed, done atomic.Int64
		mu                               sync.Mutex
		errs                             error
	)
	total := int64(len(tiles))

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for _, c := range tiles {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			wrote, err := fn(ctx, c)
			switch {
			case err != nil:
				failed.Inc()
				log.Warn("tile failed", zap.String("tile", c.String()), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("tile %s: %w", c, err))
				mu.Unlock()
			case wrote:
				processed.Inc()
			default:
				skipped.Inc()
			}
			n := done.Inc()
			if p.opts.Progress != nil {
				p.opts.Progress(Progress{Stage: stage, LOD: lod, Done: n, Total: total})
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		errs = multierr.Append(errs, err)
	}
	r := Report{
		Stage:     stage,
		LOD:       lod,
		Processed: processed.Load(),
		Skipped:   skipped.Load(),
		Failed:    failed.Load(),
		Duration:  time.Since(start),
		Err:       errs,
	}
	log.Info("level finished",
		zap.Int64("processed", r.Processed),
		zap.Int64("skipped", r.Skipped),
		zap.Int64("failed", r.Failed),
		zap.Duration("elapsed", r.Duration))
	return r
}

// writeTile stores the binary tile used for resampling and the renderer
// mesh.
func (p *Pipeline) writeTile(c quadtree.TileCoord, t *terrain.Tile) error {
	t.CurtainDepth = p.opts.CurtainDepth
	mesh, err := t.Precompute(p.opts.Curtain)
	if err != nil {
		return fmt.Errorf("building mesh: %w", err)
	}
	if err := p.store.WriteTile(c, t); err != nil {
		return err
	}
	if err := p.store.WriteMesh(c, mesh); err != nil {
		return err
	}
	p.log.Debug("tile written",
		zap.String("tile", c.String()),
		zap.String("quadkey", c.Quadkey()),
		zap.Int("points", t.NumPoints()),
		zap.Int("triangles", len(mesh.Indices)/3))
	return nil
}
