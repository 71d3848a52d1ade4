package main

import (
	"testing"

	"github.com/Faultbox/terramesh/pkg/quadtree"
)

func TestParseFloats(t *testing.T) {
	v, err := parseFloats("5.9, 45.8,10.5,47.8", 4)
	if err != nil {
		t.Fatal(err)
	}
	if v[0] != 5.9 || v[1] != 45.8 || v[2] != 10.5 || v[3] != 47.8 {
		t.Errorf("parseFloats = %v", v)
	}
	if _, err := parseFloats("1,2,3", 4); err == nil {
		t.Error("expected error for wrong count")
	}
	if _, err := parseFloats("1,2,x,4", 4); err == nil {
		t.Error("expected error for non-number")
	}
}

func TestParseTile(t *testing.T) {
	c, err := parseTile("6/34/22")
	if err != nil {
		t.Fatal(err)
	}
	if c != (quadtree.TileCoord{X: 34, Y: 22, LOD: 6}) {
		t.Errorf("parseTile = %+v", c)
	}
	for _, bad := range []string{"6/64/0", "3/1", "-1/0/0", "40/0/0"} {
		if _, err := parseTile(bad); err == nil {
			t.Errorf("parseTile(%q) accepted", bad)
		}
	}
}
