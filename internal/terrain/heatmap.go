package terrain

import (
	"fmt"
	"math"

	"github.com/ironsheep/terrace-detect/internal/raster"
)

// HeatmapConfig tunes the rupture-density smoothing.
type HeatmapConfig struct {
	// Sigma is the Gaussian standard deviation in cells.
	Sigma float64 `yaml:"sigma" json:"sigma"`

	// Radius is the kernel half-width in cells; 0 derives it as
	// ceil(3*sigma), which captures 99.7% of the kernel mass.
	Radius int `yaml:"radius" json:"radius"`
}

// DefaultHeatmapConfig returns the smoothing used for 0.5 m cells: wide
// enough that the two rupture lines bounding one terrace step reinforce
// into a single region.
func DefaultHeatmapConfig() HeatmapConfig {
	return HeatmapConfig{Sigma: 2.0}
}

// Heatmap smooths a binary rupture mask into a continuous terrace-
// likelihood surface with a separable Gaussian kernel, then normalizes it
// to [0, 1] so downstream thresholds are scale-independent. Two nearby,
// roughly parallel rupture lines (the edges of one terrace riser) blur into
// one coherent high-score region instead of two disjoint thin lines.
//
// Nodata cells contribute nothing to their neighbours and stay nodata in
// the output. An all-zero mask yields an all-zero heatmap (no normalization
// by a zero maximum).
func Heatmap(rupture *raster.Grid, cfg HeatmapConfig) (*raster.Grid, error) {
	if rupture == nil || rupture.Width == 0 || rupture.Height == 0 {
		return nil, fmt.Errorf("terrain: empty rupture grid")
	}
	if cfg.Sigma <= 0 {
		return nil, fmt.Errorf("terrain: sigma must be positive, got %g", cfg.Sigma)
	}
	radius := cfg.Radius
	if radius <= 0 {
		radius = int(math.Ceil(3 * cfg.Sigma))
	}

	kernel := gaussianKernel(cfg.Sigma, radius)
	w, h := rupture.Width, rupture.Height

	// Horizontal then vertical pass; the zero-padding outside the grid
	// matches treating off-grid cells as empty.
	horiz := make([]float64, w*h)
	err := forEachRowBand(h, func(r0, r1 int) error {
		for row := r0; row < r1; row++ {
			for col := 0; col < w; col++ {
				var sum float64
				for k := -radius; k <= radius; k++ {
					c := col + k
					if c < 0 || c >= w {
						continue
					}
					v := rupture.At(row, c)
					if rupture.IsNoData(v) {
						continue
					}
					sum += v * kernel[k+radius]
				}
				horiz[row*w+col] = sum
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := raster.New(w, h, rupture.OriginX, rupture.OriginY, rupture.CellSize, rupture.CRS)
	out.NoData = rupture.NoData
	out.Fill(out.NoData)
	err = forEachRowBand(h, func(r0, r1 int) error {
		for row := r0; row < r1; row++ {
			for col := 0; col < w; col++ {
				if !rupture.ValidAt(row, col) {
					continue
				}
				var sum float64
				for k := -radius; k <= radius; k++ {
					r := row + k
					if r < 0 || r >= h {
						continue
					}
					sum += horiz[r*w+col] * kernel[k+radius]
				}
				out.Set(row, col, sum)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, hi, ok := out.MinMax()
	if ok && hi > 0 {
		for i, v := range out.Data {
			if !out.IsNoData(v) {
				out.Data[i] = v / hi
			}
		}
	}
	return out, nil
}

func gaussianKernel(sigma float64, radius int) []float64 {
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}
