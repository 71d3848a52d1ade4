package terrain

import (
	"github.com/golang/geo/r2"

	"github.com/Faultbox/terramesh/pkg/formats"
)

// TRI converts the tile to its binary file form.
func (t *Tile) TRI() *formats.TRI {
	return &formats.TRI{
		Version: formats.TRICurrentVersion,
		Extent:  [4]float64{t.extent.X.Lo, t.extent.Y.Lo, t.extent.X.Hi, t.extent.Y.Hi},
		Corners: t.Corners,
		North:   t.North,
		East:    t.East,
		South:   t.South,
		West:    t.West,
		Middle:  t.Middle,
	}
}

// FromTRI restores a tile exactly as it was written.
func FromTRI(tri *formats.TRI) *Tile {
	extent := r2.RectFromPoints(
		r2.Point{X: tri.Extent[0], Y: tri.Extent[1]},
		r2.Point{X: tri.Extent[2], Y: tri.Extent[3]},
	)
	t := NewTile(extent)
	t.Corners = tri.Corners
	t.North = tri.North
	t.East = tri.East
	t.South = tri.South
	t.West = tri.West
	t.Middle = tri.Middle
	t.categorized = true
	return t
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (t *Tile) MarshalBinary() ([]byte, error) {
	return t.TRI().Encode(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (t *Tile) UnmarshalBinary(data []byte) error {
	tri, err := formats.ParseTRI(data)
	if err != nil {
		return err
	}
	depth := t.CurtainDepth
	*t = *FromTRI(tri)
	if depth != 0 {
		t.CurtainDepth = depth
	}
	return nil
}
