package enrich

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/terrace-detect/internal/geojson"
	"github.com/ironsheep/terrace-detect/internal/geometry"
	"github.com/ironsheep/terrace-detect/internal/proj"
)

// WriteGeoJSON writes the features as a WGS84 FeatureCollection, the layer
// web maps consume directly. Polygons in Lambert-93 are reprojected; any
// other CRS is written as-is, since only EPSG:2154 has a known transform
// here.
func WriteGeoJSON(path string, feats []TerraceFeature) error {
	fc := geojson.NewFeatureCollection("terrasses")
	for _, f := range feats {
		poly := f.Polygon
		prec := 2
		if poly.CRS == proj.Lambert93CRS {
			reproj, err := reproject(poly)
			if err != nil {
				return fmt.Errorf("enrich: feature %s: %w", f.ID, err)
			}
			poly = reproj
			prec = 6
		}
		g, err := geojson.PolygonGeometry(poly, prec)
		if err != nil {
			return fmt.Errorf("enrich: feature %s: %w", f.ID, err)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Type:     "Feature",
			ID:       f.ID,
			Geometry: g,
			Properties: map[string]any{
				"class":             f.Class,
				"area_m2":           round2(f.AreaM2),
				"perimeter_m":       round2(f.PerimeterM),
				"mean_slope_deg":    round2(f.MeanSlopeDeg),
				"heatmap_score":     round2(f.HeatmapScore),
				"compactness":       round2(f.Compactness),
				"delta_elevation_m": round2(f.DeltaElevation),
			},
		})
	}
	return geojson.WriteFile(path, fc)
}

func reproject(p *geometry.Polygon) (*geometry.Polygon, error) {
	out := &geometry.Polygon{CRS: proj.WGS84CRS}
	var err error
	out.Exterior, err = reprojectRing(p.Exterior)
	if err != nil {
		return nil, err
	}
	for _, hole := range p.Holes {
		r, err := reprojectRing(hole)
		if err != nil {
			return nil, err
		}
		out.Holes = append(out.Holes, r)
	}
	return out, nil
}

func reprojectRing(r geometry.Ring) (geometry.Ring, error) {
	out := make(geometry.Ring, len(r))
	for i, pt := range r {
		lon, lat, err := proj.Inverse(pt.X, pt.Y)
		if err != nil {
			return nil, err
		}
		out[i] = geometry.Point{X: lon, Y: lat}
	}
	return out, nil
}

// WriteBoundaryGeoJSON exports the study boundary next to the detections,
// reprojected to WGS84 when it is in Lambert-93, so a web map can show the
// study area and the terraces from one directory.
func WriteBoundaryGeoJSON(path string, boundary []*geometry.Polygon) error {
	fc := geojson.NewFeatureCollection("emprise")
	for i, p := range boundary {
		prec := 2
		if p.CRS == proj.Lambert93CRS {
			reproj, err := reproject(p)
			if err != nil {
				return fmt.Errorf("enrich: boundary polygon %d: %w", i, err)
			}
			p = reproj
			prec = 6
		}
		g, err := geojson.PolygonGeometry(p, prec)
		if err != nil {
			return fmt.Errorf("enrich: boundary polygon %d: %w", i, err)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Type:       "Feature",
			Geometry:   g,
			Properties: map[string]any{"role": "boundary"},
		})
	}
	return geojson.WriteFile(path, fc)
}

// Summary is the header block of the enriched report: the numbers a reader
// checks before looking at any individual feature.
type Summary struct {
	RunID       string         `json:"run_id"`
	GeneratedAt string         `json:"generated_at"`
	CRS         string         `json:"crs"`
	Count       int            `json:"count"`
	TotalAreaM2 float64        `json:"total_area_m2"`
	ByClass     map[string]int `json:"by_class"`
	BySector    map[string]int `json:"by_sector"`
}

// Report is the terrasses_enriched.json document.
type Report struct {
	Summary  Summary          `json:"summary"`
	Features []TerraceFeature `json:"features"`
}

// BuildReport assembles the enriched report. Sectors are assigned from each
// feature's bearing off the study-area centroid, giving a coarse answer to
// "which flank of the massif holds the terraces".
func BuildReport(feats []TerraceFeature, boundary []*geometry.Polygon, crs string) *Report {
	r := &Report{
		Summary: Summary{
			RunID:       uuid.NewString(),
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			CRS:         crs,
			Count:       len(feats),
			ByClass:     map[string]int{},
			BySector:    map[string]int{},
		},
		Features: feats,
	}
	if r.Features == nil {
		r.Features = []TerraceFeature{}
	}

	cx, cy, haveCenter := boundaryCentroid(boundary)
	for _, f := range feats {
		r.Summary.TotalAreaM2 += f.AreaM2
		r.Summary.ByClass[f.Class]++
		if haveCenter {
			c := f.Polygon.Centroid()
			r.Summary.BySector[sector(c.X-cx, c.Y-cy)]++
		}
	}
	r.Summary.TotalAreaM2 = round2(r.Summary.TotalAreaM2)
	return r
}

// WriteEnrichedJSON writes the report to path.
func WriteEnrichedJSON(path string, rep *Report) error {
	raw, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("enrich: encoding report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("enrich: writing %s: %w", path, err)
	}
	return nil
}

func boundaryCentroid(boundary []*geometry.Polygon) (x, y float64, ok bool) {
	var totalArea float64
	for _, p := range boundary {
		a := p.Area()
		c := p.Centroid()
		x += c.X * a
		y += c.Y * a
		totalArea += a
	}
	if totalArea <= 0 {
		return 0, 0, false
	}
	return x / totalArea, y / totalArea, true
}

func sector(dx, dy float64) string {
	if math.Abs(dy) >= math.Abs(dx) {
		if dy >= 0 {
			return "N"
		}
		return "S"
	}
	if dx >= 0 {
		return "E"
	}
	return "W"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
