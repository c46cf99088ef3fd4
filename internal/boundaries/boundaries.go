package boundaries

import (
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// codeKeys are the feature property keys checked, in order, for the
// ISO 3166-1 alpha-2 code of a boundary feature.
var codeKeys = []string{"ISO3166-1:alpha2", "iso_a2", "ISO_A2", "code"}

type boundary struct {
	code string
	geom orb.Geometry
}

// Index answers point-to-country-code queries against a static set of
// country boundaries. It is immutable after construction and safe for
// concurrent reads.
type Index struct {
	boundaries []boundary
}

// NewIndexFromFile loads a boundary dataset from a GeoJSON file. A load
// failure is unrecoverable for the process; callers are expected to abort.
func NewIndexFromFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open boundary dataset %s: %w", path, err)
	}
	defer f.Close()
	return NewIndex(f)
}

// NewIndex builds an Index from a GeoJSON FeatureCollection of country
// features. Features without a recognizable country code or without a
// polygonal geometry are rejected, not skipped: a partial dataset would
// silently drop POIs downstream.
func NewIndex(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read boundary dataset: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boundary dataset: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("boundary dataset contains no features")
	}

	idx := &Index{boundaries: make([]boundary, 0, len(fc.Features))}
	for i, feature := range fc.Features {
		code := countryCode(feature)
		if code == "" {
			return nil, fmt.Errorf("boundary feature %d has no country code property", i)
		}
		switch feature.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("boundary feature %d (%s) is not polygonal", i, code)
		}
		idx.boundaries = append(idx.boundaries, boundary{code: code, geom: feature.Geometry})
	}
	return idx, nil
}

func countryCode(feature *geojson.Feature) string {
	for _, key := range codeKeys {
		if value, ok := feature.Properties[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

// Len reports the number of loaded boundaries.
func (idx *Index) Len() int {
	return len(idx.boundaries)
}

// Resolve maps a coordinate to the country code of the enclosing boundary.
// When the point falls inside several overlapping boundaries the last match
// in dataset order wins. Out-of-range coordinates and points outside every
// boundary resolve to nothing.
func (idx *Index) Resolve(lon, lat float64) (string, bool) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", false
	}

	point := orb.Point{lon, lat}
	code := ""
	found := false
	for _, b := range idx.boundaries {
		if contains(b.geom, point) {
			code = b.code
			found = true
		}
	}
	return code, found
}

func contains(geom orb.Geometry, point orb.Point) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, point)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, point)
	default:
		return false
	}
}
