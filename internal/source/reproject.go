package source

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/Faultbox/terramesh/pkg/geodesy"
	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// ErrUnsupportedSRS is returned for source reference systems that cannot be
// projected into normalized mercator.
var ErrUnsupportedSRS = errors.New("unsupported spatial reference system")

// Supported source reference systems.
const (
	SRSWGS84         = "EPSG:4326"
	SRSWebMercator   = "EPSG:3857"
	SRSNormMercator  = "MERCATOR"
	mercatorHalfSize = math.Pi * orb.EarthRadius
)

var srsAliases = map[string]string{
	"EPSG:4326":   SRSWGS84,
	"4326":        SRSWGS84,
	"WGS84":       SRSWGS84,
	"EPSG:3857":   SRSWebMercator,
	"3857":        SRSWebMercator,
	"EPSG:900913": SRSWebMercator,
	"MERCATOR":    SRSNormMercator,
	"NORMALIZED":  SRSNormMercator,
}

// ParseSRS normalizes an SRS name.
func ParseSRS(name string) (string, error) {
	srs, ok := srsAliases[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSRS, name)
	}
	return srs, nil
}

// Reprojector maps samples from a source SRS to normalized mercator.
type Reprojector struct {
	srs     string
	project func(orb.Point) orb.Point
}

// NewReprojector returns a reprojector for srs.
func NewReprojector(srs string) (*Reprojector, error) {
	name, err := ParseSRS(srs)
	if err != nil {
		return nil, err
	}
	r := &Reprojector{srs: name}
	switch name {
	case SRSWGS84:
		maxLat := geodesy.MaxLatitude
		r.project = func(p orb.Point) orb.Point {
			p[1] = math.Max(-maxLat, math.Min(maxLat, p[1]))
			q := scaleMercator(project.Point(p, project.WGS84.ToMercator))
			q[0] = math.Max(-1, math.Min(1, q[0]))
			q[1] = math.Max(-1, math.Min(1, q[1]))
			return q
		}
	case SRSWebMercator:
		r.project = scaleMercator
	default:
		r.project = func(p orb.Point) orb.Point { return p }
	}
	return r, nil
}

func scaleMercator(p orb.Point) orb.Point {
	return orb.Point{p[0] / mercatorHalfSize, p[1] / mercatorHalfSize}
}

// SRS returns the normalized source reference system name.
func (r *Reprojector) SRS() string {
	return r.srs
}

// Point reprojects one sample. ok is false when the result lies outside the
// normalized mercator square.
func (r *Reprojector) Point(p tmath.ElevationPoint) (tmath.ElevationPoint, bool) {
	q := r.project(orb.Point{p.X, p.Y})
	if math.Abs(q[0]) > 1 || math.Abs(q[1]) > 1 || math.IsNaN(q[0]) || math.IsNaN(q[1]) {
		return p, false
	}
	p.X, p.Y = q[0], q[1]
	return p, true
}

// Points reprojects samples in place order, dropping those outside the map.
// It returns the kept samples and the number dropped.
func (r *Reprojector) Points(pts []tmath.ElevationPoint) ([]tmath.ElevationPoint, int) {
	out := make([]tmath.ElevationPoint, 0, len(pts))
	for _, p := range pts {
		if q, ok := r.Point(p); ok {
			out = append(out, q)
		}
	}
	return out, len(pts) - len(out)
}
