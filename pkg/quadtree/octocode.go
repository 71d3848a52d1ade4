package quadtree

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
)

var ErrInvalidOctocode = errors.New("invalid octocode")

// maxArrayIndexLevel bounds levels whose cells fit a flat int64 array index.
const maxArrayIndexLevel = 20

// OctoCoord is an octree cell position on one level.
type OctoCoord struct {
	X, Y, Z int64
	LOD     int
}

// Octocode encodes the cell. Digit bit 0 carries x, bit 1 y and bit 2 z.
func (c OctoCoord) Octocode() string {
	key := make([]byte, 0, c.LOD)
	for i := c.LOD; i > 0; i-- {
		mask := int64(1) << uint(i-1)
		digit := byte('0')
		if c.X&mask != 0 {
			digit |= 1
		}
		if c.Y&mask != 0 {
			digit |= 2
		}
		if c.Z&mask != 0 {
			digit |= 4
		}
		key = append(key, digit)
	}
	return string(key)
}

// ParseOctocode decodes an octocode into its cell position.
func ParseOctocode(code string) (OctoCoord, error) {
	if len(code) > MaxLevel {
		return OctoCoord{}, fmt.Errorf("%w: %q longer than %d", ErrInvalidOctocode, code, MaxLevel)
	}
	c := OctoCoord{LOD: len(code)}
	for i := 0; i < len(code); i++ {
		d := code[i]
		if d < '0' || d > '7' {
			return OctoCoord{}, fmt.Errorf("%w: %q has digit %q", ErrInvalidOctocode, code, d)
		}
		v := int64(d - '0')
		c.X = c.X<<1 | v&1
		c.Y = c.Y<<1 | (v>>1)&1
		c.Z = c.Z<<1 | (v>>2)&1
	}
	return c, nil
}

// OctocodeParent drops the last digit.
func OctocodeParent(code string) (string, bool) {
	if code == "" {
		return "", false
	}
	return code[:len(code)-1], true
}

// OctocodeToNormalizedBox returns the cell as a box inside the unit cube.
func OctocodeToNormalizedBox(code string) (lo, hi r3.Vector, err error) {
	c, err := ParseOctocode(code)
	if err != nil {
		return lo, hi, err
	}
	s := 1 / float64(int64(1)<<uint(c.LOD))
	lo = r3.Vector{X: float64(c.X) * s, Y: float64(c.Y) * s, Z: float64(c.Z) * s}
	hi = lo.Add(r3.Vector{X: s, Y: s, Z: s})
	return lo, hi, nil
}

// ArrayIndex flattens the cell into n*n*z + n*y + x with n = 2^lod.
func (c OctoCoord) ArrayIndex() (int64, error) {
	if c.LOD > maxArrayIndexLevel {
		return 0, fmt.Errorf("%w: %d exceeds %d for array indexing", ErrInvalidLevel, c.LOD, maxArrayIndexLevel)
	}
	n := int64(1) << uint(c.LOD)
	return n*n*c.Z + n*c.Y + c.X, nil
}

// OctoCoordFromArrayIndex inverts ArrayIndex.
func OctoCoordFromArrayIndex(idx int64, lod int) (OctoCoord, error) {
	if lod > maxArrayIndexLevel || lod < 0 {
		return OctoCoord{}, fmt.Errorf("%w: %d", ErrInvalidLevel, lod)
	}
	n := int64(1) << uint(lod)
	if idx < 0 || idx >= n*n*n {
		return OctoCoord{}, fmt.Errorf("%w: array index %d out of range", ErrInvalidOctocode, idx)
	}
	return OctoCoord{X: idx % n, Y: (idx / n) % n, Z: idx / (n * n), LOD: lod}, nil
}
