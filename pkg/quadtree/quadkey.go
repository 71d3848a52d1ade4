// Package quadtree addresses tiles of the normalized mercator quadtree by
// quadkey and octree cells by octocode.
//
// Normalized mercator covers [-1, 1] on both axes with y pointing north.
// Tile coordinates count y from the top row, so tile (0, 0) is the north-west
// tile of every level.
package quadtree

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb/maptile"
)

// MaxLevel is the deepest supported level of detail.
const MaxLevel = 30

var (
	ErrInvalidQuadkey = errors.New("invalid quadkey")
	ErrInvalidLevel   = errors.New("invalid level of detail")
)

// TileCoord is a tile position on one level.
type TileCoord struct {
	X, Y int64
	LOD  int
}

func (c TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.LOD, c.X, c.Y)
}

// Quadkey returns the quadkey of the tile.
func (c TileCoord) Quadkey() string {
	return TileCoordToQuadkey(c.X, c.Y, c.LOD)
}

// Extent returns the tile rectangle in normalized mercator.
func (c TileCoord) Extent() r2.Rect {
	return TileExtent(c.X, c.Y, c.LOD)
}

// Maptile converts to the orb tile type; both count rows from the north.
func (c TileCoord) Maptile() maptile.Tile {
	return maptile.New(uint32(c.X), uint32(c.Y), maptile.Zoom(c.LOD))
}

// FromMaptile converts an orb tile.
func FromMaptile(t maptile.Tile) TileCoord {
	return TileCoord{X: int64(t.X), Y: int64(t.Y), LOD: int(t.Z)}
}

// TileCoordToQuadkey encodes a tile position. Digit bit 0 carries x, bit 1
// carries y.
func TileCoordToQuadkey(tx, ty int64, lod int) string {
	key := make([]byte, 0, lod)
	for i := lod; i > 0; i-- {
		digit := byte('0')
		mask := int64(1) << uint(i-1)
		if tx&mask != 0 {
			digit++
		}
		if ty&mask != 0 {
			digit += 2
		}
		key = append(key, digit)
	}
	return string(key)
}

// QuadkeyToTileCoord decodes a quadkey. The empty quadkey is the root tile.
func QuadkeyToTileCoord(quadkey string) (TileCoord, error) {
	if len(quadkey) > MaxLevel {
		return TileCoord{}, fmt.Errorf("%w: %q longer than %d", ErrInvalidQuadkey, quadkey, MaxLevel)
	}
	c := TileCoord{LOD: len(quadkey)}
	for i := 0; i < len(quadkey); i++ {
		c.X <<= 1
		c.Y <<= 1
		switch quadkey[i] {
		case '0':
		case '1':
			c.X |= 1
		case '2':
			c.Y |= 1
		case '3':
			c.X |= 1
			c.Y |= 1
		default:
			return TileCoord{}, fmt.Errorf("%w: %q has digit %q", ErrInvalidQuadkey, quadkey, quadkey[i])
		}
	}
	return c, nil
}

// QuadkeyToNormalized returns the tile rectangle in [0, 1] with y up.
func QuadkeyToNormalized(quadkey string) (r2.Rect, error) {
	c, err := QuadkeyToTileCoord(quadkey)
	if err != nil {
		return r2.Rect{}, err
	}
	scale := 1 / float64(int64(1)<<uint(c.LOD))
	x0 := float64(c.X) * scale
	y0 := 1 - float64(c.Y+1)*scale
	return r2.RectFromPoints(r2.Point{X: x0, Y: y0}, r2.Point{X: x0 + scale, Y: y0 + scale}), nil
}

// QuadkeyToMercator returns the tile rectangle in normalized mercator.
func QuadkeyToMercator(quadkey string) (r2.Rect, error) {
	n, err := QuadkeyToNormalized(quadkey)
	if err != nil {
		return r2.Rect{}, err
	}
	return r2.RectFromPoints(
		r2.Point{X: 2*n.X.Lo - 1, Y: 2*n.Y.Lo - 1},
		r2.Point{X: 2*n.X.Hi - 1, Y: 2*n.Y.Hi - 1},
	), nil
}

// TileExtent returns the normalized mercator rectangle of a tile.
func TileExtent(tx, ty int64, lod int) r2.Rect {
	r, _ := QuadkeyToMercator(TileCoordToQuadkey(tx, ty, lod))
	return r
}

// MercatorToTileCoord returns the tile containing a normalized mercator
// position. Positions on the outer boundary are clamped into the grid.
func MercatorToTileCoord(x, y float64, lod int) TileCoord {
	n := int64(1) << uint(lod)
	tx := int64(math.Floor((x + 1) / 2 * float64(n)))
	ty := int64(math.Floor((1 - y) / 2 * float64(n)))
	return TileCoord{X: clamp(tx, 0, n-1), Y: clamp(ty, 0, n-1), LOD: lod}
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Parent drops the last digit. The root has no parent.
func Parent(quadkey string) (string, bool) {
	if quadkey == "" {
		return "", false
	}
	return quadkey[:len(quadkey)-1], true
}

// Children returns the four child quadkeys in digit order.
func Children(quadkey string) [4]string {
	return [4]string{quadkey + "0", quadkey + "1", quadkey + "2", quadkey + "3"}
}

// Position returns the index of the tile within its parent (the last digit).
func Position(quadkey string) int {
	if quadkey == "" {
		return -1
	}
	return int(quadkey[len(quadkey)-1] - '0')
}
