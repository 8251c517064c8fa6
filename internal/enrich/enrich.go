package enrich

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/terrace-detect/internal/geometry"
	"github.com/ironsheep/terrace-detect/internal/raster"
	"github.com/ironsheep/terrace-detect/internal/vectorize"
)

// Classes assigned from compactness: an elongated outline reads as a
// terrace tread following the contour line, a compact one as a freestanding
// wall or ruin.
const (
	ClassTerrace = "t"
	ClassWall    = "m"
)

// Config tunes classification and the asymmetry probe.
type Config struct {
	// CompactnessThreshold splits the two classes: Gravelius index above
	// it means ClassTerrace, at or below means ClassWall.
	CompactnessThreshold float64 `yaml:"compactness_threshold" json:"compactness_threshold"`

	// SliverRatio flags degenerate outlines: candidates with
	// perimeter/sqrt(area) above it are tile-seam artifacts. They stay in
	// the output, classified as walls, with no asymmetry probe.
	SliverRatio float64 `yaml:"sliver_ratio" json:"sliver_ratio"`

	// ProbeDistance is how far, in meters, each side of the long axis the
	// elevation probes sample.
	ProbeDistance float64 `yaml:"probe_distance" json:"probe_distance"`
}

// DefaultConfig returns the classification tuning.
func DefaultConfig() Config {
	return Config{
		CompactnessThreshold: 5,
		SliverRatio:          20,
		ProbeDistance:        5,
	}
}

func (c *Config) validate() error {
	if c.CompactnessThreshold <= 1 {
		return fmt.Errorf("enrich: compactness_threshold must exceed 1 (a disc), got %g", c.CompactnessThreshold)
	}
	if c.SliverRatio <= 0 {
		return fmt.Errorf("enrich: sliver_ratio must be positive, got %g", c.SliverRatio)
	}
	if c.ProbeDistance <= 0 {
		return fmt.Errorf("enrich: probe_distance must be positive, got %g", c.ProbeDistance)
	}
	return nil
}

// TerraceFeature is one enriched candidate. The polygon stays in the
// pipeline CRS; writers reproject on output.
type TerraceFeature struct {
	ID             string  `json:"id"`
	Class          string  `json:"class"`
	AreaM2         float64 `json:"area_m2"`
	PerimeterM     float64 `json:"perimeter_m"`
	MeanSlopeDeg   float64 `json:"mean_slope_deg"`
	MaxSlopeDeg    float64 `json:"max_slope_deg"`
	ElevationMinM  float64 `json:"elevation_min_m"`
	ElevationMaxM  float64 `json:"elevation_max_m"`
	HeatmapScore   float64 `json:"heatmap_score"`
	Compactness    float64 `json:"compactness"`
	DeltaElevation float64 `json:"delta_elevation_m"`

	Polygon *geometry.Polygon `json:"-"`
}

// Enrich turns extracted candidates into attributed features. Every
// candidate produces exactly one feature; slivers are kept as walls rather
// than discarded. Candidates are processed in parallel; the result is
// sorted by ID, so the output is independent of scheduling and of input
// order.
func Enrich(ctx context.Context, cands []vectorize.Candidate, dem, slope *raster.Grid, cfg Config) ([]TerraceFeature, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if dem == nil || slope == nil {
		return nil, fmt.Errorf("enrich: elevation and slope grids are required")
	}

	out := make([]TerraceFeature, len(cands))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range cands {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = enrichOne(cands[i], dem, slope, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func enrichOne(cand vectorize.Candidate, dem, slope *raster.Grid, cfg Config) TerraceFeature {
	poly := cand.Polygon
	area := poly.Area()
	perimeter := poly.Perimeter()

	f := TerraceFeature{
		ID:           featureID(poly),
		AreaM2:       area,
		PerimeterM:   perimeter,
		HeatmapScore: cand.MeanScore,
		Polygon:      poly,
	}
	if area > 0 {
		f.Compactness = poly.Gravelius()
	}

	// Tile-seam artifacts trace as long, near-zero-width outlines. The
	// asymmetry probe would straddle terrain the feature never covers, so
	// slivers get the wall class and a zero drop instead.
	sliver := area <= 0 || perimeter/math.Sqrt(area) > cfg.SliverRatio
	switch {
	case sliver:
		f.Class = ClassWall
	case f.Compactness > cfg.CompactnessThreshold:
		f.Class = ClassTerrace
	default:
		f.Class = ClassWall
	}

	st := sampleUnder(poly, dem, slope)
	if st.n > 0 {
		f.MeanSlopeDeg = st.slopeSum / float64(st.n)
		f.MaxSlopeDeg = st.slopeMax
		f.ElevationMinM = st.elevMin
		f.ElevationMaxM = st.elevMax
		if !sliver {
			f.DeltaElevation = asymmetry(st, dem, cfg.ProbeDistance)
		}
	}
	return f
}

// cellStats aggregates the raster samples under one polygon, including the
// moments the long-axis fit needs.
type cellStats struct {
	n        int
	slopeSum float64
	slopeMax float64
	elevMin  float64
	elevMax  float64

	sx, sy, sxx, syy, sxy float64
}

// sampleUnder scans the DEM cells whose centers fall inside the polygon.
// Iterating the polygon's bbox keeps the scan proportional to the feature,
// not the mosaic.
func sampleUnder(poly *geometry.Polygon, dem, slope *raster.Grid) cellStats {
	st := cellStats{elevMin: math.Inf(1), elevMax: math.Inf(-1)}
	b := poly.BBox()

	minRow, minCol, ok1 := dem.Index(b.MinX, b.MaxY)
	maxRow, maxCol, ok2 := dem.Index(b.MaxX, b.MinY)
	if !ok1 {
		minRow, minCol = 0, 0
	}
	if !ok2 {
		maxRow, maxCol = dem.Height-1, dem.Width-1
	}

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			x, y := dem.CellCenter(row, col)
			if !poly.ContainsPoint(geometry.Point{X: x, Y: y}) {
				continue
			}
			elev, ok := dem.SampleAt(x, y)
			if !ok {
				continue
			}
			st.n++
			st.elevMin = math.Min(st.elevMin, elev)
			st.elevMax = math.Max(st.elevMax, elev)
			st.sx += x
			st.sy += y
			st.sxx += x * x
			st.syy += y * y
			st.sxy += x * y
			if sv, ok := slope.SampleAt(x, y); ok {
				st.slopeSum += sv
				st.slopeMax = math.Max(st.slopeMax, sv)
			}
		}
	}
	return st
}

// asymmetry measures the elevation drop across the feature's long axis,
// the signature separating a terrace riser, which steps down on exactly
// one side, from symmetric rough ground.
//
// The long axis is the principal component of the member cell centers. At
// 25%, 50% and 75% along it, the DEM is probed at distance on either side,
// perpendicular to the axis; the result is the median absolute difference
// over the probes where both sides hit valid ground.
func asymmetry(st cellStats, dem *raster.Grid, distance float64) float64 {
	if st.n < 3 {
		return 0
	}
	n := float64(st.n)
	cx, cy := st.sx/n, st.sy/n
	varX := st.sxx/n - cx*cx
	varY := st.syy/n - cy*cy
	cov := st.sxy/n - cx*cy

	theta := 0.5 * math.Atan2(2*cov, varX-varY)
	ax, ay := math.Cos(theta), math.Sin(theta)
	px, py := -ay, ax

	// Half-length of the feature along the axis, from the variance of the
	// projection; 2 sigma spans most of the mass.
	spread := 2 * math.Sqrt(math.Max(0, varX*ax*ax+2*cov*ax*ay+varY*ay*ay))
	if spread <= 0 {
		return 0
	}

	var deltas []float64
	for _, frac := range []float64{-0.5, 0, 0.5} {
		bx := cx + frac*spread*ax
		by := cy + frac*spread*ay
		up, ok1 := dem.SampleAt(bx+px*distance, by+py*distance)
		down, ok2 := dem.SampleAt(bx-px*distance, by-py*distance)
		if ok1 && ok2 {
			deltas = append(deltas, math.Abs(up-down))
		}
	}
	return median(deltas)
}

func median(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sort.Float64s(vs)
	mid := len(vs) / 2
	if len(vs)%2 == 1 {
		return vs[mid]
	}
	return (vs[mid-1] + vs[mid]) / 2
}

// featureID derives a stable identifier from the polygon's geometry, so
// re-running the pipeline over the same terrain yields the same IDs
// regardless of extraction order.
func featureID(poly *geometry.Polygon) string {
	h := fnv.New64a()
	var buf [8]byte
	for _, pt := range poly.Exterior {
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(math.Round(pt.X*100)))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(math.Round(pt.Y*100)))
		h.Write(buf[:])
	}
	return fmt.Sprintf("terr-%016x", h.Sum64())
}
