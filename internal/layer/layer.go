// Package layer manages the settings sidecar and directory of an elevation
// layer.
package layer

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/Faultbox/terramesh/internal/tilestore"
	"github.com/Faultbox/terramesh/pkg/geodesy"
	"github.com/Faultbox/terramesh/pkg/quadtree"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SettingsFile is the sidecar name inside the layer directory.
const SettingsFile = "layersettings.json"

// TypeElevation is the only layer type this module processes.
const TypeElevation = "elevation"

// Extent limits accepted by ExtentFromLngLat.
const (
	MinExtentLOD = 4
	MaxExtentLOD = 23
)

// Layer errors.
var (
	ErrInvalidLayer         = errors.New("invalid layer settings")
	ErrLayerExists          = errors.New("layer already exists")
	ErrNoSettings           = errors.New("layer settings not found")
	ErrUnsupportedLayerType = errors.New("unsupported layer type")
	ErrInvalidBounds        = errors.New("invalid geographic bounds")
)

// Settings describes a layer. Extent holds the inclusive tile range
// x0, y0, x1, y1 at MaxLOD.
type Settings struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	SRS    string   `json:"srs"`
	MaxLOD int      `json:"maxlod"`
	Extent [4]int64 `json:"extent"`
}

// Validate checks that the settings describe a processable layer.
func (s *Settings) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidLayer)
	}
	if s.Type != TypeElevation {
		return fmt.Errorf("%w: %q", ErrUnsupportedLayerType, s.Type)
	}
	if s.MaxLOD < 1 || s.MaxLOD > quadtree.MaxLevel {
		return fmt.Errorf("%w: maxlod %d", ErrInvalidLayer, s.MaxLOD)
	}
	n := int64(1) << uint(s.MaxLOD)
	x0, y0, x1, y1 := s.Extent[0], s.Extent[1], s.Extent[2], s.Extent[3]
	if x0 < 0 || y0 < 0 || x1 >= n || y1 >= n || x0 > x1 || y0 > y1 {
		return fmt.Errorf("%w: extent %v at lod %d", ErrInvalidLayer, s.Extent, s.MaxLOD)
	}
	return nil
}

// TileRange returns the inclusive tile range covering the extent at lod.
func (s *Settings) TileRange(lod int) (x0, y0, x1, y1 int64) {
	shift := uint(s.MaxLOD - lod)
	return s.Extent[0] >> shift, s.Extent[1] >> shift, s.Extent[2] >> shift, s.Extent[3] >> shift
}

// Tiles lists the tiles of the extent at lod, column by column.
func (s *Settings) Tiles(lod int) []quadtree.TileCoord {
	x0, y0, x1, y1 := s.TileRange(lod)
	out := make([]quadtree.TileCoord, 0, (x1-x0+1)*(y1-y0+1))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			out = append(out, quadtree.TileCoord{X: x, Y: y, LOD: lod})
		}
	}
	return out
}

// Contains reports whether tile c lies inside the extent.
func (s *Settings) Contains(c quadtree.TileCoord) bool {
	if c.LOD < 0 || c.LOD > s.MaxLOD {
		return false
	}
	x0, y0, x1, y1 := s.TileRange(c.LOD)
	return c.X >= x0 && c.X <= x1 && c.Y >= y0 && c.Y <= y1
}

// Bounds returns the extent in normalized mercator.
func (s *Settings) Bounds() r2.Rect {
	nw := quadtree.TileExtent(s.Extent[0], s.Extent[1], s.MaxLOD)
	se := quadtree.TileExtent(s.Extent[2], s.Extent[3], s.MaxLOD)
	return nw.Union(se)
}

// Dir returns the directory of layer name under dataDir.
func Dir(dataDir, name string) string {
	return filepath.Join(dataDir, name)
}

// Create writes a new layer directory with its settings. An existing layer
// is replaced only with force.
func Create(dir string, s *Settings, force bool) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(dir); err == nil {
		if !force {
			return fmt.Errorf("%w: %s", ErrLayerExists, dir)
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing old layer: %w", err)
		}
	}

	store := tilestore.New(dir, nil)
	for _, d := range []string{store.TilesDir(), store.TempDir()} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating layer directory: %w", err)
		}
	}
	return s.Save(dir)
}

// Load reads and validates the settings of the layer in dir.
func Load(dir string) (*Settings, error) {
	data, err := os.ReadFile(filepath.Join(dir, SettingsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoSettings, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading layer settings: %w", err)
	}

	s := &Settings{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayer, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the settings sidecar into dir.
func (s *Settings) Save(dir string) error {
	data, err := json.MarshalIndent(s, "", "   ")
	if err != nil {
		return err
	}
	return tilestore.WriteFileAtomic(filepath.Join(dir, SettingsFile), append(data, '\n'))
}

// ExtentFromLngLat returns the tile extent at lod covering a WGS84 bound.
func ExtentFromLngLat(lng0, lat0, lng1, lat1 float64, lod int) ([4]int64, error) {
	if lod < MinExtentLOD || lod > MaxExtentLOD {
		return [4]int64{}, fmt.Errorf("%w: lod %d outside %d..%d", ErrInvalidBounds, lod, MinExtentLOD, MaxExtentLOD)
	}
	if lng0 >= lng1 {
		return [4]int64{}, fmt.Errorf("%w: lng1 must be greater than lng0", ErrInvalidBounds)
	}
	if lat0 >= lat1 {
		return [4]int64{}, fmt.Errorf("%w: lat1 must be greater than lat0", ErrInvalidBounds)
	}

	clampLat := func(lat float64) float64 {
		return math.Max(-geodesy.MaxLatitude, math.Min(geodesy.MaxLatitude, lat))
	}
	clampLng := func(lng float64) float64 {
		return math.Max(-180, math.Min(180, lng))
	}
	z := maptile.Zoom(lod)
	nw := quadtree.FromMaptile(maptile.At(orb.Point{clampLng(lng0), clampLat(lat1)}, z))
	se := quadtree.FromMaptile(maptile.At(orb.Point{clampLng(lng1), clampLat(lat0)}, z))

	last := int64(1)<<uint(lod) - 1
	clamp := func(v int64) int64 { return max(0, min(last, v)) }
	return [4]int64{clamp(nw.X), clamp(nw.Y), clamp(se.X), clamp(se.Y)}, nil
}

// ExtentFromBounds returns the tile extent at lod covering a normalized
// mercator rectangle, for example the bounds of an indexed data set.
func ExtentFromBounds(r r2.Rect, lod int) [4]int64 {
	nw := quadtree.MercatorToTileCoord(r.X.Lo, r.Y.Hi, lod)
	se := quadtree.MercatorToTileCoord(r.X.Hi, r.Y.Lo, lod)
	return [4]int64{nw.X, nw.Y, se.X, se.Y}
}
