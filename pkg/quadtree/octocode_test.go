package quadtree

import (
	"errors"
	"testing"
)

func TestOctocodeRoundTrip(t *testing.T) {
	tests := []struct {
		c    OctoCoord
		want string
	}{
		{OctoCoord{LOD: 0}, ""},
		{OctoCoord{X: 1, LOD: 1}, "1"},
		{OctoCoord{Y: 1, LOD: 1}, "2"},
		{OctoCoord{Z: 1, LOD: 1}, "4"},
		{OctoCoord{X: 3, Y: 1, Z: 2, LOD: 2}, "53"},
	}
	for _, tt := range tests {
		got := tt.c.Octocode()
		if got != tt.want {
			t.Errorf("%v.Octocode() = %q, want %q", tt.c, got, tt.want)
		}
		back, err := ParseOctocode(got)
		if err != nil || back != tt.c {
			t.Errorf("ParseOctocode(%q) = %v, %v", got, back, err)
		}
	}
	if _, err := ParseOctocode("8"); !errors.Is(err, ErrInvalidOctocode) {
		t.Errorf("ParseOctocode(\"8\") error = %v", err)
	}
}

func TestOctocodeBox(t *testing.T) {
	lo, hi, err := OctocodeToNormalizedBox("7")
	if err != nil {
		t.Fatal(err)
	}
	if lo.X != 0.5 || lo.Y != 0.5 || lo.Z != 0.5 || hi.X != 1 || hi.Y != 1 || hi.Z != 1 {
		t.Errorf("OctocodeToNormalizedBox(\"7\") = %v, %v", lo, hi)
	}
	if p, ok := OctocodeParent("71"); !ok || p != "7" {
		t.Errorf("OctocodeParent(\"71\") = %q, %v", p, ok)
	}
}

func TestOctoArrayIndex(t *testing.T) {
	c := OctoCoord{X: 3, Y: 2, Z: 1, LOD: 2}
	idx, err := c.ArrayIndex()
	if err != nil {
		t.Fatal(err)
	}
	if idx != 16+8+3 {
		t.Errorf("ArrayIndex() = %d, want 27", idx)
	}
	back, err := OctoCoordFromArrayIndex(idx, 2)
	if err != nil || back != c {
		t.Errorf("OctoCoordFromArrayIndex(%d) = %v, %v", idx, back, err)
	}
	if _, err := (OctoCoord{LOD: 25}).ArrayIndex(); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("ArrayIndex() at level 25 error = %v", err)
	}
	if _, err := OctoCoordFromArrayIndex(64, 2); !errors.Is(err, ErrInvalidOctocode) {
		t.Errorf("OctoCoordFromArrayIndex(64, 2) error = %v", err)
	}
}
