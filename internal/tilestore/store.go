// Package tilestore maps tiles of a layer onto its directory tree.
//
// Output meshes live under <layer>/tiles/<lod>/<x>/<y>.json. Intermediate
// artifacts (binary tiles and raw point buckets) live under
// <layer>/temp/tiles/<lod>/<x>/<y>.tri and .pts.
package tilestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Faultbox/terramesh/internal/terrain"
	"github.com/Faultbox/terramesh/pkg/formats"
	tmath "github.com/Faultbox/terramesh/pkg/math"
	"github.com/Faultbox/terramesh/pkg/quadtree"
)

// Kind selects one of the per-tile artifacts.
type Kind int

const (
	KindMesh Kind = iota // renderer JSON
	KindTRI              // binary tile used for resampling
	KindPTS              // raw point bucket
)

// Ext returns the file extension of the artifact.
func (k Kind) Ext() string {
	switch k {
	case KindMesh:
		return ".json"
	case KindTRI:
		return ".tri"
	case KindPTS:
		return ".pts"
	default:
		return ""
	}
}

func (k Kind) String() string {
	return strings.TrimPrefix(k.Ext(), ".")
}

// Store reads and writes the tiles of one layer.
type Store struct {
	dir    string
	locker *Locker
}

// New returns a store rooted at layerDir. A nil locker uses DefaultLocker.
func New(layerDir string, locker *Locker) *Store {
	if locker == nil {
		locker = DefaultLocker()
	}
	return &Store{dir: layerDir, locker: locker}
}

// Dir returns the layer directory.
func (s *Store) Dir() string {
	return s.dir
}

// TilesDir returns the root of the output meshes.
func (s *Store) TilesDir() string {
	return filepath.Join(s.dir, "tiles")
}

// TempDir returns the root of the intermediate artifacts.
func (s *Store) TempDir() string {
	return filepath.Join(s.dir, "temp", "tiles")
}

func (s *Store) root(kind Kind) string {
	if kind == KindMesh {
		return s.TilesDir()
	}
	return s.TempDir()
}

// Path returns the file holding artifact kind of tile c.
func (s *Store) Path(kind Kind, c quadtree.TileCoord) string {
	return filepath.Join(s.root(kind),
		strconv.Itoa(c.LOD),
		strconv.FormatInt(c.X, 10),
		strconv.FormatInt(c.Y, 10)+kind.Ext())
}

// Exists reports whether artifact kind of tile c has been written.
func (s *Store) Exists(kind Kind, c quadtree.TileCoord) bool {
	_, err := os.Stat(s.Path(kind, c))
	return err == nil
}

// Tiles lists the tiles at lod that have artifact kind, ordered by x then y.
func (s *Store) Tiles(kind Kind, lod int) ([]quadtree.TileCoord, error) {
	levelDir := filepath.Join(s.root(kind), strconv.Itoa(lod))
	xs, err := os.ReadDir(levelDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing level %d: %w", lod, err)
	}

	var out []quadtree.TileCoord
	for _, xe := range xs {
		if !xe.IsDir() {
			continue
		}
		x, err := strconv.ParseInt(xe.Name(), 10, 64)
		if err != nil {
			continue
		}
		ys, err := os.ReadDir(filepath.Join(levelDir, xe.Name()))
		if err != nil {
			return nil, fmt.Errorf("listing level %d column %d: %w", lod, x, err)
		}
		for _, ye := range ys {
			name := ye.Name()
			if ye.IsDir() || filepath.Ext(name) != kind.Ext() {
				continue
			}
			y, err := strconv.ParseInt(strings.TrimSuffix(name, kind.Ext()), 10, 64)
			if err != nil {
				continue
			}
			out = append(out, quadtree.TileCoord{X: x, Y: y, LOD: lod})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out, nil
}

// WriteMesh stores the renderer JSON of tile c.
func (s *Store) WriteMesh(c quadtree.TileCoord, m *terrain.Mesh) error {
	var buf bytes.Buffer
	if err := m.WriteJSON(&buf); err != nil {
		return fmt.Errorf("encoding mesh %s: %w", c, err)
	}
	return WriteFileAtomic(s.Path(KindMesh, c), buf.Bytes())
}

// WriteTile stores the binary form of tile c.
func (s *Store) WriteTile(c quadtree.TileCoord, t *terrain.Tile) error {
	data, err := t.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding tile %s: %w", c, err)
	}
	return WriteFileAtomic(s.Path(KindTRI, c), data)
}

// ReadTile loads the binary tile c. A tile that was never written returns
// nil without error.
func (s *Store) ReadTile(c quadtree.TileCoord) (*terrain.Tile, error) {
	data, err := os.ReadFile(s.Path(KindTRI, c))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tile %s: %w", c, err)
	}
	t := &terrain.Tile{}
	if err := t.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decoding tile %s: %w", c, err)
	}
	return t, nil
}

// ReadMesh loads the renderer JSON of tile c.
func (s *Store) ReadMesh(c quadtree.TileCoord) (*terrain.MeshDocument, error) {
	data, err := os.ReadFile(s.Path(KindMesh, c))
	if err != nil {
		return nil, fmt.Errorf("reading mesh %s: %w", c, err)
	}
	return terrain.ParseMeshJSON(data)
}

// AppendPoints adds samples to the bucket of tile c. Concurrent writers,
// including other processes, are serialized by the bucket's lock marker.
func (s *Store) AppendPoints(ctx context.Context, c quadtree.TileCoord, pts []tmath.ElevationPoint) error {
	if len(pts) == 0 {
		return nil
	}
	path := s.Path(KindPTS, c)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating bucket directory: %w", err)
	}
	return s.locker.WithLock(ctx, path, func() error {
		return formats.AppendPTSFile(path, pts)
	})
}

// ReadPoints loads the bucket of tile c; a missing bucket is empty.
func (s *Store) ReadPoints(c quadtree.TileCoord) ([]tmath.ElevationPoint, error) {
	return formats.ParsePTSFile(s.Path(KindPTS, c))
}

// ReadNeighbourhood loads the buckets of c and its eight neighbours. Tiles
// beyond the edge of the level are skipped.
func (s *Store) ReadNeighbourhood(c quadtree.TileCoord) ([]tmath.ElevationPoint, error) {
	n := int64(1) << uint(c.LOD)
	var out []tmath.ElevationPoint
	for dy := int64(-1); dy <= 1; dy++ {
		for dx := int64(-1); dx <= 1; dx++ {
			nc := quadtree.TileCoord{X: c.X + dx, Y: c.Y + dy, LOD: c.LOD}
			if nc.X < 0 || nc.Y < 0 || nc.X >= n || nc.Y >= n {
				continue
			}
			pts, err := s.ReadPoints(nc)
			if err != nil {
				return nil, fmt.Errorf("reading bucket %s: %w", nc, err)
			}
			out = append(out, pts...)
		}
	}
	return out, nil
}

// WriteFileAtomic writes data to a temporary sibling of path and renames it
// into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
