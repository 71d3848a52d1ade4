package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// TRI format errors.
var (
	ErrInvalidTRIMagic       = errors.New("invalid TRI magic: expected 'ETRI'")
	ErrUnsupportedTRIVersion = errors.New("unsupported TRI version")
	ErrTruncatedTRIData      = errors.New("truncated TRI data")
)

// TRIMagic identifies an elevation tile file.
const TRIMagic = "ETRI"

// TRICurrentVersion is written by Encode.
var TRICurrentVersion = Version{Major: 1, Minor: 0}

// triHeaderSize covers magic, version, extent, corners and counts.
const triHeaderSize = 4 + 2 + 4*8 + 4*3*8 + 5*4

// Corner indices into TRI.Corners.
const (
	CornerNW = iota
	CornerNE
	CornerSE
	CornerSW
)

// TRI is the compact form of a classified elevation tile. It keeps enough
// information to rebuild the tile without re-reading source data.
type TRI struct {
	Version Version
	// Extent is x0, y0, x1, y1 in normalized mercator.
	Extent  [4]float64
	Corners [4]tmath.ElevationPoint
	North   []tmath.ElevationPoint
	East    []tmath.ElevationPoint
	South   []tmath.ElevationPoint
	West    []tmath.ElevationPoint
	Middle  []tmath.ElevationPoint
}

// NumPoints returns the total point count including corners.
func (t *TRI) NumPoints() int {
	return 4 + len(t.North) + len(t.East) + len(t.South) + len(t.West) + len(t.Middle)
}

// ParseTRI parses a TRI file from raw bytes. Weights are restored from the
// section a point was stored in.
func ParseTRI(data []byte) (*TRI, error) {
	if len(data) < triHeaderSize {
		return nil, ErrTruncatedTRIData
	}
	if string(data[0:4]) != TRIMagic {
		return nil, ErrInvalidTRIMagic
	}

	t := &TRI{Version: Version{Major: data[5], Minor: data[4]}}
	if t.Version.Major != TRICurrentVersion.Major {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTRIVersion, t.Version)
	}

	r := bytes.NewReader(data[6:])
	if err := binary.Read(r, binary.LittleEndian, &t.Extent); err != nil {
		return nil, fmt.Errorf("%w: reading extent", ErrTruncatedTRIData)
	}
	for i := range t.Corners {
		var c [3]float64
		if err := binary.Read(r, binary.LittleEndian, &c); err != nil {
			return nil, fmt.Errorf("%w: reading corner %d", ErrTruncatedTRIData, i)
		}
		t.Corners[i] = tmath.ElevationPoint{X: c[0], Y: c[1], Elevation: c[2], Weight: tmath.WeightCorner}
	}

	var counts [5]uint32
	if err := binary.Read(r, binary.LittleEndian, &counts); err != nil {
		return nil, fmt.Errorf("%w: reading counts", ErrTruncatedTRIData)
	}

	sections := []struct {
		name   string
		dst    *[]tmath.ElevationPoint
		weight int32
	}{
		{"north", &t.North, tmath.WeightEdge},
		{"east", &t.East, tmath.WeightEdge},
		{"south", &t.South, tmath.WeightEdge},
		{"west", &t.West, tmath.WeightEdge},
		{"middle", &t.Middle, tmath.WeightNone},
	}
	for i, s := range sections {
		pts, err := readPoints(r, counts[i], s.weight)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s points", ErrTruncatedTRIData, s.name)
		}
		*s.dst = pts
	}

	return t, nil
}

// ParseTRIFile parses a TRI file from disk.
func ParseTRIFile(path string) (*TRI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading TRI file: %w", err)
	}
	return ParseTRI(data)
}

// Encode serializes the tile with the current version.
func (t *TRI) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, triHeaderSize+24*(t.NumPoints()-4)))
	buf.WriteString(TRIMagic)
	buf.WriteByte(TRICurrentVersion.Minor)
	buf.WriteByte(TRICurrentVersion.Major)

	_ = binary.Write(buf, binary.LittleEndian, t.Extent)
	for _, c := range t.Corners {
		_ = binary.Write(buf, binary.LittleEndian, [3]float64{c.X, c.Y, c.Elevation})
	}
	counts := [5]uint32{
		uint32(len(t.North)),
		uint32(len(t.East)),
		uint32(len(t.South)),
		uint32(len(t.West)),
		uint32(len(t.Middle)),
	}
	_ = binary.Write(buf, binary.LittleEndian, counts)

	writePoints(buf, t.North)
	writePoints(buf, t.East)
	writePoints(buf, t.South)
	writePoints(buf, t.West)
	writePoints(buf, t.Middle)
	return buf.Bytes()
}
