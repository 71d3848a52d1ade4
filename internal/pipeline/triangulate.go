package pipeline

import (
	"context"
	"fmt"

	"github.com/Faultbox/terramesh/internal/source"
	"github.com/Faultbox/terramesh/internal/terrain"
	"github.com/Faultbox/terramesh/internal/tilestore"
	tmath "github.com/Faultbox/terramesh/pkg/math"
	"github.com/Faultbox/terramesh/pkg/quadtree"
)

// PointProvider supplies the samples around a max lod tile.
type PointProvider interface {
	// Samples returns at least the samples within the tile and its eight
	// neighbours.
	Samples(c quadtree.TileCoord) ([]tmath.ElevationPoint, error)
}

// StoreProvider reads the 3x3 bucket neighbourhood written by Ingest.
type StoreProvider struct {
	Store *tilestore.Store
}

// Samples implements PointProvider.
func (sp StoreProvider) Samples(c quadtree.TileCoord) ([]tmath.ElevationPoint, error) {
	return sp.Store.ReadNeighbourhood(c)
}

// IndexProvider queries an in-memory sample index.
type IndexProvider struct {
	Index *source.Index
}

// Samples implements PointProvider.
func (ip IndexProvider) Samples(c quadtree.TileCoord) ([]tmath.ElevationPoint, error) {
	return ip.Index.Query(terrain.NeighbourhoodBounds(c.Extent())), nil
}

// Triangulate builds every tile of the layer extent at max lod from the
// samples of its neighbourhood. Tiles without samples are skipped.
func (p *Pipeline) Triangulate(ctx context.Context, provider PointProvider) Report {
	lod := p.settings.MaxLOD
	return p.runLevel(ctx, "triangulate", lod, p.settings.Tiles(lod), func(ctx context.Context, c quadtree.TileCoord) (bool, error) {
		samples, err := provider.Samples(c)
		if err != nil {
			return false, err
		}
		tile, err := terrain.IntersectTile(c.Extent(), samples)
		if err != nil {
			return false, err
		}
		if !tile.Categorized() {
			return false, nil
		}
		if err := tile.Reduce(p.opts.MaxPoints); err != nil {
			return false, fmt.Errorf("reducing: %w", err)
		}
		return true, p.writeTile(c, tile)
	})
}
