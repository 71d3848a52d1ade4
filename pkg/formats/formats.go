// Package formats reads and writes the binary artifacts of the tile
// pipeline: elevation tiles (.tri) and raw point buckets (.pts).
//
// All multi-byte values are little-endian.
package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// Version represents a file format version stored as [minor, major].
type Version struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// readPoints reads n (x, y, elevation) float64 tuples tagged with weight.
func readPoints(r *bytes.Reader, n uint32, weight int32) ([]tmath.ElevationPoint, error) {
	if int64(n)*24 > int64(r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	if n == 0 {
		return nil, nil
	}
	pts := make([]tmath.ElevationPoint, n)
	var rec [3]float64
	for i := range pts {
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, err
		}
		pts[i] = tmath.ElevationPoint{X: rec[0], Y: rec[1], Elevation: rec[2], Weight: weight}
	}
	return pts, nil
}

func writePoints(buf *bytes.Buffer, pts []tmath.ElevationPoint) {
	for _, p := range pts {
		_ = binary.Write(buf, binary.LittleEndian, [3]float64{p.X, p.Y, p.Elevation})
	}
}
