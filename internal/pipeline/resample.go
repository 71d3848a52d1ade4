package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/terramesh/internal/source"
	"github.com/Faultbox/terramesh/internal/terrain"
	"github.com/Faultbox/terramesh/pkg/quadtree"
)

// ResampleLevel rebuilds every tile of the layer extent at lod from its four
// children at lod+1. Missing children contribute nothing; a tile with no
// children at all is skipped.
func (p *Pipeline) ResampleLevel(ctx context.Context, lod int) Report {
	return p.runLevel(ctx, "resample", lod, p.settings.Tiles(lod), func(ctx context.Context, c quadtree.TileCoord) (bool, error) {
		var children [4]*terrain.Tile
		found := false
		for i, key := range quadtree.Children(c.Quadkey()) {
			cc, err := quadtree.QuadkeyToTileCoord(key)
			if err != nil {
				return false, err
			}
			child, err := p.store.ReadTile(cc)
			if err != nil {
				return false, fmt.Errorf("child %d: %w", i, err)
			}
			children[i] = child
			found = found || child != nil
		}
		if !found {
			return false, nil
		}

		parent, err := terrain.CreateFromParent(c.Extent(), children[:], p.opts.MaxPoints)
		if err != nil {
			return false, err
		}
		return true, p.writeTile(c, parent)
	})
}

// ResampleRange resamples levels from down to to, finest first. Each level
// completes before the next starts. Levels are clamped to 0..MaxLOD-1.
func (p *Pipeline) ResampleRange(ctx context.Context, from, to int) []Report {
	from = min(from, p.settings.MaxLOD-1)
	to = max(to, 0)

	var reports []Report
	for lod := from; lod >= to; lod-- {
		reports = append(reports, p.ResampleLevel(ctx, lod))
		if ctx.Err() != nil {
			break
		}
	}
	return reports
}

// Resample rebuilds all levels below max lod.
func (p *Pipeline) Resample(ctx context.Context) []Report {
	return p.ResampleRange(ctx, p.settings.MaxLOD-1, 0)
}

// Build triangulates the finest level from an in-memory index and
// resamples all coarser levels.
func (p *Pipeline) Build(ctx context.Context, ix *source.Index) []Report {
	reports := []Report{p.Triangulate(ctx, IndexProvider{Index: ix})}
	if ctx.Err() != nil {
		return reports
	}
	return append(reports, p.Resample(ctx)...)
}

// Failed returns the combined error of reports, or nil when every tile
// succeeded.
func Failed(reports []Report) error {
	var err error
	for _, r := range reports {
		err = multierr.Append(err, r.Err)
	}
	return err
}
