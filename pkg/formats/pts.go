package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// PTS format errors.
var (
	ErrTruncatedPTSData = errors.New("truncated PTS data")
	ErrInvalidPTSRecord = errors.New("invalid PTS record")
)

// PTSRecordSize is the size of one x, y, elevation, weight record.
const PTSRecordSize = 4 * 8

// ParsePTS parses a headerless bucket of point records.
func ParsePTS(data []byte) ([]tmath.ElevationPoint, error) {
	if len(data)%PTSRecordSize != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrTruncatedPTSData, len(data)%PTSRecordSize)
	}

	n := len(data) / PTSRecordSize
	pts := make([]tmath.ElevationPoint, 0, n)
	r := bytes.NewReader(data)
	var rec [4]float64
	for i := 0; i < n; i++ {
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("%w: record %d", ErrTruncatedPTSData, i)
		}
		if math.IsNaN(rec[0]) || math.IsNaN(rec[1]) || math.IsNaN(rec[2]) {
			return nil, fmt.Errorf("%w: record %d is NaN", ErrInvalidPTSRecord, i)
		}
		pts = append(pts, tmath.ElevationPoint{X: rec[0], Y: rec[1], Elevation: rec[2], Weight: int32(rec[3])})
	}
	return pts, nil
}

// ParsePTSFile parses a point bucket from disk. A missing file is an empty
// bucket.
func ParsePTSFile(path string) ([]tmath.ElevationPoint, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading PTS file: %w", err)
	}
	return ParsePTS(data)
}

// EncodePTS serializes points as bucket records.
func EncodePTS(pts []tmath.ElevationPoint) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(pts)*PTSRecordSize))
	for _, p := range pts {
		_ = binary.Write(buf, binary.LittleEndian, [4]float64{p.X, p.Y, p.Elevation, float64(p.Weight)})
	}
	return buf.Bytes()
}

// AppendPTSFile appends points to a bucket, creating it if needed. Callers
// serialize access with the tile store lock.
func AppendPTSFile(path string, pts []tmath.ElevationPoint) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening PTS file: %w", err)
	}
	if _, err := f.Write(EncodePTS(pts)); err != nil {
		f.Close()
		return fmt.Errorf("appending PTS records: %w", err)
	}
	return f.Close()
}
