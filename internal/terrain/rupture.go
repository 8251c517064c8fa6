package terrain

import (
	"fmt"

	"github.com/ironsheep/terrace-detect/internal/raster"
)

// RuptureConfig are the tunable parameters of the rupture detector. The
// adaptive threshold is deliberately exposed instead of hard-coded: it
// trades over-segmentation against missed terraces and needs empirical
// tuning per terrain.
type RuptureConfig struct {
	// VarianceRadius is the half-width of the window used for the local
	// slope-variance measure (1 means 3x3).
	VarianceRadius int `yaml:"variance_radius" json:"variance_radius"`

	// StatsRadius is the half-width of the neighbourhood whose variance
	// statistics drive the adaptive threshold (10 means 21x21).
	StatsRadius int `yaml:"stats_radius" json:"stats_radius"`

	// K scales the local standard deviation: a cell is a rupture when
	// its variance exceeds localMean + K*localStddev.
	K float64 `yaml:"k" json:"k"`

	// MinVariance is an absolute floor (deg^2) under the adaptive
	// threshold, keeping numerically flat terrain from producing
	// spurious detections.
	MinVariance float64 `yaml:"min_variance" json:"min_variance"`

	// MinNeighbors is the rank of the erosion step of the morphological
	// opening: a flagged cell survives erosion only with at least this
	// many flagged 8-neighbours. 2 removes isolated cells and dust
	// while keeping one-cell-wide rupture lines alive.
	MinNeighbors int `yaml:"min_neighbors" json:"min_neighbors"`
}

// DefaultRuptureConfig returns the tuning used for 0.5 m LiDAR HD derived
// slopes.
func DefaultRuptureConfig() RuptureConfig {
	return RuptureConfig{
		VarianceRadius: 1,
		StatsRadius:    10,
		K:              1.5,
		MinVariance:    0.5,
		MinNeighbors:   2,
	}
}

func (c *RuptureConfig) validate() error {
	if c.VarianceRadius < 1 {
		return fmt.Errorf("terrain: variance_radius must be >= 1, got %d", c.VarianceRadius)
	}
	if c.StatsRadius < c.VarianceRadius {
		return fmt.Errorf("terrain: stats_radius %d smaller than variance_radius %d", c.StatsRadius, c.VarianceRadius)
	}
	if c.K < 0 {
		return fmt.Errorf("terrain: negative k %g", c.K)
	}
	if c.MinVariance < 0 {
		return fmt.Errorf("terrain: negative min_variance %g", c.MinVariance)
	}
	if c.MinNeighbors < 0 || c.MinNeighbors > 8 {
		return fmt.Errorf("terrain: min_neighbors must be in [0,8], got %d", c.MinNeighbors)
	}
	return nil
}

// Ruptures marks cells where the slope breaks abruptly, the signature of a
// terrace riser, as opposed to cells that are merely steep. The output is a
// {0, 1, nodata} mask on the slope grid's lattice.
//
// # Algorithm
//
//  1. Local measure: the variance of the slope over a small window. A
//     constant incline, however steep, has zero variance; a riser edge has
//     a high one.
//  2. Adaptive threshold: a cell is flagged when its variance exceeds
//     mean + K*stddev of the variance over a larger surrounding
//     neighbourhood, so the detector tracks regionally varying terrain
//     roughness instead of applying one global constant. An absolute
//     MinVariance floor suppresses detections on numerically flat ground.
//  3. Morphological opening (rank erosion then dilation) removes isolated
//     single-cell noise while preserving connected rupture lines.
//
// Nodata slope cells stay nodata; nodata neighbours are excluded from all
// window statistics, never treated as zero.
func Ruptures(slope *raster.Grid, cfg RuptureConfig) (*raster.Grid, error) {
	if slope == nil || slope.Width == 0 || slope.Height == 0 {
		return nil, fmt.Errorf("terrain: empty slope grid")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	w, h := slope.Width, slope.Height

	// Pass 1: local slope variance.
	variance := raster.New(w, h, slope.OriginX, slope.OriginY, slope.CellSize, slope.CRS)
	variance.NoData = slope.NoData
	variance.Fill(variance.NoData)

	slopeSA := newSummedArea(slope)
	err := forEachRowBand(h, func(r0, r1 int) error {
		for row := r0; row < r1; row++ {
			for col := 0; col < w; col++ {
				if !slope.ValidAt(row, col) {
					continue
				}
				_, std, n := slopeSA.window(row, col, cfg.VarianceRadius)
				if n < 3 {
					continue
				}
				variance.Set(row, col, std*std)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Pass 2: adaptive threshold on the variance field.
	flagged := make([]bool, w*h)
	varSA := newSummedArea(variance)
	err = forEachRowBand(h, func(r0, r1 int) error {
		for row := r0; row < r1; row++ {
			for col := 0; col < w; col++ {
				v := variance.At(row, col)
				if variance.IsNoData(v) {
					continue
				}
				mean, std, n := varSA.window(row, col, cfg.StatsRadius)
				if n == 0 {
					continue
				}
				threshold := mean + cfg.K*std
				if threshold < cfg.MinVariance {
					threshold = cfg.MinVariance
				}
				if v > threshold {
					flagged[row*w+col] = true
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Pass 3: opening.
	eroded := erode(flagged, w, h, cfg.MinNeighbors)
	opened := dilate(eroded, w, h)

	out := raster.New(w, h, slope.OriginX, slope.OriginY, slope.CellSize, slope.CRS)
	out.NoData = slope.NoData
	out.Fill(out.NoData)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !slope.ValidAt(row, col) {
				continue
			}
			if opened[row*w+col] {
				out.Set(row, col, 1)
			} else {
				out.Set(row, col, 0)
			}
		}
	}
	return out, nil
}

// erode keeps set cells with at least minNeighbors set 8-neighbours.
func erode(mask []bool, w, h, minNeighbors int) []bool {
	out := make([]bool, len(mask))
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !mask[row*w+col] {
				continue
			}
			n := 0
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					if dr == 0 && dc == 0 {
						continue
					}
					r, c := row+dr, col+dc
					if r >= 0 && r < h && c >= 0 && c < w && mask[r*w+c] {
						n++
					}
				}
			}
			if n >= minNeighbors {
				out[row*w+col] = true
			}
		}
	}
	return out
}

// dilate sets every cell with a set cell in its 3x3 neighbourhood.
func dilate(mask []bool, w, h int) []bool {
	out := make([]bool, len(mask))
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			found := false
			for dr := -1; dr <= 1 && !found; dr++ {
				for dc := -1; dc <= 1 && !found; dc++ {
					r, c := row+dr, col+dc
					if r >= 0 && r < h && c >= 0 && c < w && mask[r*w+c] {
						found = true
					}
				}
			}
			out[row*w+col] = found
		}
	}
	return out
}
