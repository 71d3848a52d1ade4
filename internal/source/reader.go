// Package source reads raw elevation samples, reprojects them into
// normalized mercator and indexes them for per-tile queries.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Faultbox/terramesh/pkg/formats"
	tmath "github.com/Faultbox/terramesh/pkg/math"
)

// Reader errors.
var (
	ErrMalformedLine     = errors.New("malformed sample line")
	ErrUnsupportedFormat = errors.New("unsupported sample format")
)

// ElevationProperties are the GeoJSON property keys read as elevation, in
// order of preference.
var ElevationProperties = []string{"elevation", "ele", "height", "z"}

// ReadXYZ parses text lines of "x y z" triples. Fields may be separated by
// whitespace, commas or semicolons. Blank lines and lines starting with '#'
// are skipped, as is a single leading header line that does not parse.
func ReadXYZ(r io.Reader, fn func(tmath.ElevationPoint) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	sawData := false
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		p, err := parseXYZLine(text)
		if err != nil {
			if !sawData && line == 1 {
				continue
			}
			return fmt.Errorf("%w: line %d: %v", ErrMalformedLine, line, err)
		}
		sawData = true
		if err := fn(p); err != nil {
			return err
		}
	}
	return sc.Err()
}

func parseXYZLine(text string) (tmath.ElevationPoint, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	if len(fields) < 3 {
		return tmath.ElevationPoint{}, fmt.Errorf("want 3 fields, got %d", len(fields))
	}
	var v [3]float64
	for i := range v {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return tmath.ElevationPoint{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return tmath.ElevationPoint{}, fmt.Errorf("field %d is not finite", i+1)
		}
		v[i] = f
	}
	return tmath.ElevationPoint{X: v[0], Y: v[1], Elevation: v[2]}, nil
}

// ReadGeoJSON collects Point and MultiPoint features of a feature
// collection. The elevation comes from the first of ElevationProperties
// present on the feature; features without one are skipped.
func ReadGeoJSON(data []byte) ([]tmath.ElevationPoint, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing GeoJSON: %w", err)
	}

	var out []tmath.ElevationPoint
	for _, f := range fc.Features {
		h, ok := featureElevation(f)
		if !ok {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Point:
			out = append(out, tmath.ElevationPoint{X: g.Lon(), Y: g.Lat(), Elevation: h})
		case orb.MultiPoint:
			for _, p := range g {
				out = append(out, tmath.ElevationPoint{X: p.Lon(), Y: p.Lat(), Elevation: h})
			}
		}
	}
	return out, nil
}

func featureElevation(f *geojson.Feature) (float64, bool) {
	for _, key := range ElevationProperties {
		if _, ok := f.Properties[key]; !ok {
			continue
		}
		h := f.Properties.MustFloat64(key, math.NaN())
		if math.IsNaN(h) {
			return 0, false
		}
		return h, true
	}
	return 0, false
}

// ReadFile reads all samples of a file, choosing the parser by extension:
// .xyz, .txt and .csv are text triples, .geojson and .json feature
// collections, .pts raw bucket records.
func ReadFile(path string) ([]tmath.ElevationPoint, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xyz", ".txt", ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var pts []tmath.ElevationPoint
		err = ReadXYZ(f, func(p tmath.ElevationPoint) error {
			pts = append(pts, p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return pts, nil
	case ".geojson", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return ReadGeoJSON(data)
	case ".pts":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return formats.ParsePTS(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}
