package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// createTestTRI builds a small tile with points on every section.
func createTestTRI() *TRI {
	corner := func(x, y, e float64) tmath.ElevationPoint {
		return tmath.ElevationPoint{X: x, Y: y, Elevation: e, Weight: tmath.WeightCorner}
	}
	edge := func(x, y, e float64) tmath.ElevationPoint {
		return tmath.ElevationPoint{X: x, Y: y, Elevation: e, Weight: tmath.WeightEdge}
	}
	return &TRI{
		Version: TRICurrentVersion,
		Extent:  [4]float64{0, 0, 1, 1},
		Corners: [4]tmath.ElevationPoint{
			corner(0, 1, 10), corner(1, 1, 11), corner(1, 0, 12), corner(0, 0, 13),
		},
		North:  []tmath.ElevationPoint{edge(0.5, 1, 20)},
		East:   []tmath.ElevationPoint{edge(1, 0.25, 21), edge(1, 0.75, 22)},
		South:  nil,
		West:   []tmath.ElevationPoint{edge(0, 0.5, 23)},
		Middle: []tmath.ElevationPoint{{X: 0.5, Y: 0.5, Elevation: 99.125}},
	}
}

func TestTRIRoundTrip(t *testing.T) {
	want := createTestTRI()
	data := want.Encode()

	got, err := ParseTRI(data)
	if err != nil {
		t.Fatalf("ParseTRI failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseTRI mismatch (-want +got):\n%s", diff)
	}
	if again := got.Encode(); !bytes.Equal(again, data) {
		t.Error("re-encoding a parsed tile changed its bytes")
	}
	if got.NumPoints() != 9 {
		t.Errorf("NumPoints() = %d, want 9", got.NumPoints())
	}
}

func TestParseTRI_Errors(t *testing.T) {
	valid := createTestTRI().Encode()

	badMagic := bytes.Clone(valid)
	copy(badMagic, "XTRI")

	badVersion := bytes.Clone(valid)
	badVersion[5] = 9

	overCount := bytes.Clone(valid)
	binary.LittleEndian.PutUint32(overCount[triHeaderSize-4:], 1000)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncatedTRIData},
		{"bad magic", badMagic, ErrInvalidTRIMagic},
		{"bad version", badVersion, ErrUnsupportedTRIVersion},
		{"truncated body", valid[:len(valid)-3], ErrTruncatedTRIData},
		{"count overflow", overCount, ErrTruncatedTRIData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTRI(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("ParseTRI() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseTRIFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.tri")
	if err := os.WriteFile(path, createTestTRI().Encode(), 0644); err != nil {
		t.Fatal(err)
	}
	tri, err := ParseTRIFile(path)
	if err != nil {
		t.Fatalf("ParseTRIFile failed: %v", err)
	}
	if tri.Corners[CornerSW].Elevation != 13 {
		t.Errorf("SW corner elevation = %v, want 13", tri.Corners[CornerSW].Elevation)
	}
	if _, err := ParseTRIFile(filepath.Join(t.TempDir(), "missing.tri")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ParseTRIFile(missing) error = %v, want ErrNotExist", err)
	}
}
