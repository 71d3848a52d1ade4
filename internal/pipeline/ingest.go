package pipeline

import (
	"context"
	"sort"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Faultbox/terramesh/internal/source"
	tmath "github.com/Faultbox/terramesh/pkg/math"
	"github.com/Faultbox/terramesh/pkg/quadtree"
)

// IngestReport summarizes one Ingest call.
type IngestReport struct {
	Report
	Read         int // samples handed in
	OutsideMap   int // dropped by reprojection
	OutsideLayer int // outside the layer extent
	Stored       int
}

// Ingest reprojects samples and appends them to the point buckets of the
// max lod tiles they fall into. Samples outside the layer extent are
// dropped.
func (p *Pipeline) Ingest(ctx context.Context, proj *source.Reprojector, samples []tmath.ElevationPoint) IngestReport {
	projected, outsideMap := proj.Points(samples)

	lod := p.settings.MaxLOD
	buckets := make(map[quadtree.TileCoord][]tmath.ElevationPoint)
	outsideLayer := 0
	for _, s := range projected {
		s.Weight = tmath.WeightNone
		c := quadtree.MercatorToTileCoord(s.X, s.Y, lod)
		if !p.settings.Contains(c) {
			outsideLayer++
			continue
		}
		buckets[c] = append(buckets[c], s)
	}

	tiles := make([]quadtree.TileCoord, 0, len(buckets))
	for c := range buckets {
		tiles = append(tiles, c)
	}
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].X != tiles[j].X {
			return tiles[i].X < tiles[j].X
		}
		return tiles[i].Y < tiles[j].Y
	})

	var stored atomic.Int64
	r := p.runLevel(ctx, "ingest", lod, tiles, func(ctx context.Context, c quadtree.TileCoord) (bool, error) {
		if err := p.store.AppendPoints(ctx, c, buckets[c]); err != nil {
			return false, err
		}
		stored.Add(int64(len(buckets[c])))
		return true, nil
	})
	p.log.Info("samples ingested",
		zap.String("srs", proj.SRS()),
		zap.Int("read", len(samples)),
		zap.Int("outside_map", outsideMap),
		zap.Int("outside_layer", outsideLayer),
		zap.Int("buckets", len(tiles)))

	return IngestReport{
		Report:       r,
		Read:         len(samples),
		OutsideMap:   outsideMap,
		OutsideLayer: outsideLayer,
		Stored:       int(stored.Load()),
	}
}
