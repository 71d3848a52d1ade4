// Package geodesy converts between geodetic coordinates, geocentric
// cartesian coordinates and normalized web mercator.
//
// Angles are degrees at the API boundary. Cartesian output is in meters.
package geodesy

import (
	"math"

	"github.com/golang/geo/r3"
)

// Ellipsoid describes a reference ellipsoid by its semi-major axis and first
// eccentricity squared.
type Ellipsoid struct {
	A  float64
	E2 float64
}

// Reference ellipsoids.
var (
	WGS84  = Ellipsoid{A: 6378137.0, E2: 0.006694379990197}
	Sphere = Ellipsoid{A: 6378137.0, E2: 0}
)

const fromCartesianIterations = 10

// E returns the first eccentricity.
func (e Ellipsoid) E() float64 {
	return math.Sqrt(e.E2)
}

// B returns the semi-minor axis.
func (e Ellipsoid) B() float64 {
	return e.A * math.Sqrt(1-e.E2)
}

// primeVerticalRadius is the radius of curvature in the prime vertical at the
// given latitude in radians.
func (e Ellipsoid) primeVerticalRadius(lat float64) float64 {
	s := math.Sin(lat)
	return e.A / math.Sqrt(1-e.E2*s*s)
}

// ToCartesian converts longitude, latitude (degrees) and ellipsoidal height
// (meters) to geocentric cartesian coordinates.
func (e Ellipsoid) ToCartesian(lng, lat, h float64) r3.Vector {
	lngR := Radians(lng)
	latR := Radians(lat)
	rn := e.primeVerticalRadius(latR)
	cosLat := math.Cos(latR)
	return r3.Vector{
		X: (rn + h) * cosLat * math.Cos(lngR),
		Y: (rn + h) * cosLat * math.Sin(lngR),
		Z: ((1-e.E2)*rn + h) * math.Sin(latR),
	}
}

// FromCartesian converts geocentric cartesian coordinates back to longitude,
// latitude (degrees) and height (meters).
func (e Ellipsoid) FromCartesian(v r3.Vector) (lng, lat, h float64) {
	p := math.Hypot(v.X, v.Y)
	if p < 1e-9 {
		// On the polar axis longitude is undefined.
		if v.Z >= 0 {
			return 0, 90, v.Z - e.B()
		}
		return 0, -90, -v.Z - e.B()
	}

	lngR := math.Atan2(v.Y, v.X)
	latR := math.Atan2(v.Z, p*(1-e.E2))
	for i := 0; i < fromCartesianIterations; i++ {
		rn := e.primeVerticalRadius(latR)
		h = p/math.Cos(latR) - rn
		latR = math.Atan2(v.Z, p*(1-e.E2*rn/(rn+h)))
	}
	rn := e.primeVerticalRadius(latR)
	h = p/math.Cos(latR) - rn
	return Degrees(lngR), Degrees(latR), h
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
