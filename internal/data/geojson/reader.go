// Package geojson loads river-basin feature collections from GeoJSON files.
package geojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// MonthKeys lists the twelve monthly scarcity property keys in calendar order.
var MonthKeys = [12]string{
	"jan", "feb", "mar", "apr", "may", "jun",
	"jul", "aug", "sep", "oct", "nov", "dec",
}

// Ring is a closed sequence of lon/lat positions.
type Ring [][2]float64

// Polygon is an outer ring followed by optional holes.
type Polygon []Ring

// Geometry holds the polygons of a basin. MultiPolygon features are
// normalized to a slice of polygons.
type Geometry struct {
	Polygons []Polygon
}

// Feature is one river basin. Nil statistic pointers mean the property is
// absent in the source data.
type Feature struct {
	Name       string
	Continent  string
	Population *float64
	Average    *float64
	Months     [12]*float64
	Geometry   Geometry
}

// Month returns the scarcity value for month index i (0-11), if present.
func (f *Feature) Month(i int) (float64, bool) {
	if i < 0 || i > 11 || f.Months[i] == nil {
		return 0, false
	}
	return *f.Months[i], true
}

// Bounds is the lon/lat bounding box of a collection.
type Bounds struct {
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
}

// FeatureCollection is an ordered, immutable set of basins. Basin names are
// unique within a collection; they are the join key across all views.
type FeatureCollection struct {
	features []Feature
	bounds   Bounds
	index    map[string]int
}

// New builds a collection from features, validating name uniqueness.
func New(features []Feature) (*FeatureCollection, error) {
	fc := &FeatureCollection{
		features: features,
		index:    make(map[string]int, len(features)),
	}
	for i := range features {
		name := features[i].Name
		if name == "" {
			return nil, fmt.Errorf("geojson: feature %d has no basin name", i)
		}
		if _, dup := fc.index[name]; dup {
			return nil, fmt.Errorf("geojson: duplicate basin name %q", name)
		}
		fc.index[name] = i
	}
	fc.bounds = computeBounds(features)
	return fc, nil
}

// Load reads a GeoJSON FeatureCollection from path. Files ending in .gz are
// decompressed transparently.
func Load(path string) (*FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geojson: open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("geojson: gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	return Parse(r)
}

// Parse decodes a GeoJSON FeatureCollection from r.
func Parse(r io.Reader) (*FeatureCollection, error) {
	var raw struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
			Geometry   struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("geojson: decode: %w", err)
	}
	if raw.Type != "" && raw.Type != "FeatureCollection" {
		return nil, fmt.Errorf("geojson: unexpected root type %q", raw.Type)
	}

	features := make([]Feature, 0, len(raw.Features))
	for i, rf := range raw.Features {
		ft := Feature{
			Name:       stringProp(rf.Properties, "name"),
			Continent:  stringProp(rf.Properties, "continent"),
			Population: numProp(rf.Properties, "population"),
			Average:    numProp(rf.Properties, "avg"),
		}
		for m, key := range MonthKeys {
			ft.Months[m] = numProp(rf.Properties, key)
		}

		geom, err := parseGeometry(rf.Geometry.Type, rf.Geometry.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("geojson: feature %d (%s): %w", i, ft.Name, err)
		}
		ft.Geometry = geom
		features = append(features, ft)
	}

	return New(features)
}

func stringProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func numProp(props map[string]any, key string) *float64 {
	if v, ok := props[key].(float64); ok {
		return &v
	}
	return nil
}

func parseGeometry(typ string, coords json.RawMessage) (Geometry, error) {
	if len(coords) == 0 {
		return Geometry{}, nil
	}
	switch typ {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(coords, &rings); err != nil {
			return Geometry{}, fmt.Errorf("polygon coordinates: %w", err)
		}
		return Geometry{Polygons: []Polygon{toPolygon(rings)}}, nil
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(coords, &polys); err != nil {
			return Geometry{}, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		g := Geometry{Polygons: make([]Polygon, 0, len(polys))}
		for _, p := range polys {
			g.Polygons = append(g.Polygons, toPolygon(p))
		}
		return g, nil
	case "":
		return Geometry{}, nil
	default:
		return Geometry{}, fmt.Errorf("unsupported geometry type %q", typ)
	}
}

func toPolygon(rings [][][]float64) Polygon {
	poly := make(Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make(Ring, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				continue
			}
			r = append(r, [2]float64{pos[0], pos[1]})
		}
		poly = append(poly, r)
	}
	return poly
}

func computeBounds(features []Feature) Bounds {
	b := Bounds{}
	first := true
	for i := range features {
		for _, poly := range features[i].Geometry.Polygons {
			for _, ring := range poly {
				for _, pos := range ring {
					if first {
						b = Bounds{MinLon: pos[0], MaxLon: pos[0], MinLat: pos[1], MaxLat: pos[1]}
						first = false
						continue
					}
					if pos[0] < b.MinLon {
						b.MinLon = pos[0]
					}
					if pos[0] > b.MaxLon {
						b.MaxLon = pos[0]
					}
					if pos[1] < b.MinLat {
						b.MinLat = pos[1]
					}
					if pos[1] > b.MaxLat {
						b.MaxLat = pos[1]
					}
				}
			}
		}
	}
	return b
}

// Len returns the number of basins.
func (fc *FeatureCollection) Len() int { return len(fc.features) }

// Features returns the basins in load order.
func (fc *FeatureCollection) Features() []Feature { return fc.features }

// Get resolves a basin by name.
func (fc *FeatureCollection) Get(name string) (*Feature, bool) {
	i, ok := fc.index[name]
	if !ok {
		return nil, false
	}
	return &fc.features[i], true
}

// Names returns all basin names in load order.
func (fc *FeatureCollection) Names() []string {
	names := make([]string, len(fc.features))
	for i := range fc.features {
		names[i] = fc.features[i].Name
	}
	return names
}

// Continents returns the sorted distinct continents in the collection.
func (fc *FeatureCollection) Continents() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range fc.features {
		c := fc.features[i].Continent
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Bounds returns the collection's lon/lat bounding box.
func (fc *FeatureCollection) Bounds() Bounds { return fc.bounds }
