// Package geojson reads and writes the small subset of RFC 7946 the
// pipeline exchanges with the outside world: FeatureCollections of Polygon
// and MultiPolygon geometries. Rings are closed on the wire (first point
// repeated last) and open in memory.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/ironsheep/terrace-detect/internal/geometry"
)

// Geometry is a GeoJSON geometry object. Coordinates stay raw until the
// type is known.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature pairs a geometry with its properties.
type Feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Geometry   *Geometry      `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection is the top-level document.
type FeatureCollection struct {
	Type     string     `json:"type"`
	Name     string     `json:"name,omitempty"`
	Features []*Feature `json:"features"`
}

// NewFeatureCollection returns an empty, correctly typed collection.
func NewFeatureCollection(name string) *FeatureCollection {
	return &FeatureCollection{Type: "FeatureCollection", Name: name, Features: []*Feature{}}
}

// PolygonGeometry encodes a polygon, rounding coordinates to prec decimal
// places. Two decimals suffice for metric CRS, six for degrees.
func PolygonGeometry(p *geometry.Polygon, prec int) (*Geometry, error) {
	coords := make([][][2]float64, 0, 1+len(p.Holes))
	coords = append(coords, closeRing(p.Exterior, prec))
	for _, hole := range p.Holes {
		coords = append(coords, closeRing(hole, prec))
	}
	raw, err := json.Marshal(coords)
	if err != nil {
		return nil, err
	}
	return &Geometry{Type: "Polygon", Coordinates: raw}, nil
}

// Polygons decodes a Polygon or MultiPolygon geometry into the in-memory
// representation, tagging each polygon with crs. Ring closure on the wire is
// tolerated but not required.
func (g *Geometry) Polygons(crs string) ([]*geometry.Polygon, error) {
	if g == nil {
		return nil, fmt.Errorf("geojson: missing geometry")
	}
	switch g.Type {
	case "Polygon":
		var rings [][][2]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("geojson: decoding Polygon coordinates: %w", err)
		}
		p, err := polygonFromRings(rings, crs)
		if err != nil {
			return nil, err
		}
		return []*geometry.Polygon{p}, nil
	case "MultiPolygon":
		var polys [][][][2]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("geojson: decoding MultiPolygon coordinates: %w", err)
		}
		out := make([]*geometry.Polygon, 0, len(polys))
		for _, rings := range polys {
			p, err := polygonFromRings(rings, crs)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("geojson: unsupported geometry type %q", g.Type)
	}
}

// ReadFile parses a FeatureCollection document. A bare Feature or bare
// geometry is wrapped into a single-feature collection, since boundary
// files exported by desktop GIS tools come in all three shapes.
func ReadFile(path string) (*FeatureCollection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("geojson: reading %s: %w", path, err)
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("geojson: parsing %s: %w", path, err)
	}
	switch probe.Type {
	case "FeatureCollection":
		var fc FeatureCollection
		if err := json.Unmarshal(raw, &fc); err != nil {
			return nil, fmt.Errorf("geojson: parsing %s: %w", path, err)
		}
		return &fc, nil
	case "Feature":
		var f Feature
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("geojson: parsing %s: %w", path, err)
		}
		fc := NewFeatureCollection("")
		fc.Features = append(fc.Features, &f)
		return fc, nil
	case "Polygon", "MultiPolygon":
		var g Geometry
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("geojson: parsing %s: %w", path, err)
		}
		fc := NewFeatureCollection("")
		fc.Features = append(fc.Features, &Feature{Type: "Feature", Geometry: &g})
		return fc, nil
	default:
		return nil, fmt.Errorf("geojson: %s has unsupported top-level type %q", path, probe.Type)
	}
}

// WriteFile writes the collection to path.
func WriteFile(path string, fc *FeatureCollection) error {
	raw, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("geojson: encoding: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("geojson: writing %s: %w", path, err)
	}
	return nil
}

// ReadBoundary loads every polygon from a boundary file and tags it with
// crs. At least one polygon must be present, and each must pass validation;
// a corrupt study boundary would silently select the wrong tiles.
func ReadBoundary(path, crs string) ([]*geometry.Polygon, error) {
	fc, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []*geometry.Polygon
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		polys, err := f.Geometry.Polygons(crs)
		if err != nil {
			return nil, fmt.Errorf("geojson: boundary %s: %w", path, err)
		}
		out = append(out, polys...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("geojson: boundary %s contains no polygons", path)
	}
	for i, p := range out {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("geojson: boundary %s polygon %d: %w", path, i, err)
		}
	}
	return out, nil
}

func closeRing(r geometry.Ring, prec int) [][2]float64 {
	out := make([][2]float64, 0, len(r)+1)
	for _, pt := range r {
		out = append(out, [2]float64{roundTo(pt.X, prec), roundTo(pt.Y, prec)})
	}
	if len(out) > 0 && out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}

func polygonFromRings(rings [][][2]float64, crs string) (*geometry.Polygon, error) {
	if len(rings) == 0 {
		return nil, fmt.Errorf("geojson: polygon with no rings")
	}
	p := &geometry.Polygon{CRS: crs}
	p.Exterior = openRing(rings[0])
	for _, r := range rings[1:] {
		p.Holes = append(p.Holes, openRing(r))
	}
	return p, nil
}

func openRing(coords [][2]float64) geometry.Ring {
	if len(coords) > 1 && coords[0] == coords[len(coords)-1] {
		coords = coords[:len(coords)-1]
	}
	r := make(geometry.Ring, len(coords))
	for i, c := range coords {
		r[i] = geometry.Point{X: c[0], Y: c[1]}
	}
	return r
}

func roundTo(v float64, prec int) float64 {
	scale := math.Pow10(prec)
	return math.Round(v*scale) / scale
}
