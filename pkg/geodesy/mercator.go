package geodesy

import "math"

// MaxLatitude is the latitude at which normalized mercator y reaches ±1.
var MaxLatitude = Degrees(2*math.Atan(math.Exp(math.Pi)) - math.Pi/2)

// LngLatToMercator projects longitude and latitude (degrees) to normalized
// mercator in [-1, 1]. e is the eccentricity of the projection ellipsoid, 0
// for the spherical web mercator.
func LngLatToMercator(lng, lat, e float64) (x, y float64) {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	latR := Radians(lat)
	x = lng / 180
	t := math.Tan(math.Pi/4 + latR/2)
	if e != 0 {
		es := e * math.Sin(latR)
		t *= math.Pow((1-es)/(1+es), e/2)
	}
	y = math.Log(t) / math.Pi
	return x, y
}

// MercatorToLngLat is the inverse of LngLatToMercator.
func MercatorToLngLat(x, y, e float64) (lng, lat float64) {
	lng = x * 180
	ts := math.Exp(-y * math.Pi)
	phi := math.Pi/2 - 2*math.Atan(ts)
	if e != 0 {
		for i := 0; i < 15; i++ {
			es := e * math.Sin(phi)
			next := math.Pi/2 - 2*math.Atan(ts*math.Pow((1-es)/(1+es), e/2))
			if math.Abs(next-phi) < 1e-14 {
				phi = next
				break
			}
			phi = next
		}
	}
	return lng, Degrees(phi)
}

// MercatorToCartesian is the composition used for tile vertices: normalized
// spherical mercator to WGS84 geocentric coordinates at height h.
func MercatorToCartesian(x, y, h float64) (cx, cy, cz float64) {
	lng, lat := MercatorToLngLat(x, y, 0)
	v := WGS84.ToCartesian(lng, lat, h)
	return v.X, v.Y, v.Z
}

// MapSize returns the pixel width of the world at a level of detail.
func MapSize(lod int, tileSize int) uint64 {
	return uint64(tileSize) << uint(lod)
}

// GroundResolution returns meters per pixel at latitude lat (degrees).
func GroundResolution(lat float64, lod int, tileSize int) float64 {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	return math.Cos(Radians(lat)) * 2 * math.Pi * WGS84.A / float64(MapSize(lod, tileSize))
}
