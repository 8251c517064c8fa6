package raster

import (
	"fmt"
	"math"
)

// ResampleMethod selects the interpolation used by Resample.
type ResampleMethod int

const (
	// Nearest assigns each target cell the value of the closest source
	// cell. Required for classification/mask rasters where interpolated
	// values would be meaningless.
	Nearest ResampleMethod = iota

	// Bilinear interpolates from the four surrounding source cell
	// centers, ignoring nodata neighbours by weight renormalization.
	// Appropriate for continuous data such as elevation.
	Bilinear
)

// Resample maps the source grid onto a new target geometry. Target cells
// whose support falls outside the source, or on nodata only, are nodata.
func Resample(src *Grid, originX, originY, cellSize float64, width, height int, method ResampleMethod) (*Grid, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	if cellSize <= 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("raster: invalid resample target %dx%d cell %g", width, height, cellSize)
	}

	out := New(width, height, originX, originY, cellSize, src.CRS)
	out.NoData = src.NoData

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			x, y := out.CellCenter(row, col)
			var v float64
			var ok bool
			switch method {
			case Bilinear:
				v, ok = src.bilinearAt(x, y)
			default:
				v, ok = src.SampleAt(x, y)
			}
			if ok {
				out.Set(row, col, v)
			}
		}
	}
	return out, nil
}

// bilinearAt interpolates the value at world point (x, y) from the four
// surrounding cell centers. Nodata neighbours are dropped and the remaining
// weights renormalized; all-nodata support yields ok=false.
func (g *Grid) bilinearAt(x, y float64) (float64, bool) {
	// Continuous position in cell-center coordinates.
	fc := (x-g.OriginX)/g.CellSize - 0.5
	fr := (g.OriginY-y)/g.CellSize - 0.5

	c0 := int(math.Floor(fc))
	r0 := int(math.Floor(fr))
	tx := fc - float64(c0)
	ty := fr - float64(r0)

	var sum, wsum float64
	for dr := 0; dr <= 1; dr++ {
		for dc := 0; dc <= 1; dc++ {
			r, c := r0+dr, c0+dc
			if r < 0 || r >= g.Height || c < 0 || c >= g.Width {
				continue
			}
			v := g.At(r, c)
			if g.IsNoData(v) {
				continue
			}
			wr := ty
			if dr == 0 {
				wr = 1 - ty
			}
			wc := tx
			if dc == 0 {
				wc = 1 - tx
			}
			w := wr * wc
			sum += v * w
			wsum += w
		}
	}
	if wsum <= 0 {
		return 0, false
	}
	return sum / wsum, true
}
