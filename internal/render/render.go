// Package render rasterizes grids into PNG previews: quick visual checks of
// the mosaic, the slope field and the heatmap without a GIS at hand.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/terrace-detect/internal/raster"
)

// Options control preview rendering.
type Options struct {
	// MaxDim bounds the longer PNG edge in pixels; larger grids are
	// downscaled. 0 keeps one pixel per cell.
	MaxDim int

	// Blur applies a Gaussian blur of the given radius before writing,
	// which makes thin rupture lines visible at preview scale. 0 disables.
	Blur float64
}

// low-to-high color ramp endpoints, blended in HCL so the midpoints stay
// perceptually even instead of detouring through grey.
var (
	rampLow  = colorful.Color{R: 0.09, G: 0.27, B: 0.47} // deep blue
	rampHigh = colorful.Color{R: 0.99, G: 0.91, B: 0.27} // warm yellow
)

// WritePNG renders the grid to path. Valid values are min-max normalized
// onto the color ramp; nodata cells come out fully transparent, so the
// preview shows the mosaic's actual coverage.
func WritePNG(g *raster.Grid, path string, opts Options) error {
	if g == nil || g.Width == 0 || g.Height == 0 {
		return fmt.Errorf("render: empty grid")
	}

	lo, hi, ok := g.MinMax()
	span := hi - lo
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v := g.At(row, col)
			if !ok || g.IsNoData(v) {
				img.SetNRGBA(col, row, color.NRGBA{})
				continue
			}
			t := 0.0
			if span > 0 {
				t = (v - lo) / span
			}
			c := rampLow.BlendHcl(rampHigh, t).Clamped()
			r8, g8, b8 := c.RGB255()
			img.SetNRGBA(col, row, color.NRGBA{R: r8, G: g8, B: b8, A: 255})
		}
	}

	var out image.Image = img
	if opts.Blur > 0 {
		out = blur.Gaussian(out, opts.Blur)
	}
	if opts.MaxDim > 0 && (g.Width > opts.MaxDim || g.Height > opts.MaxDim) {
		out = imaging.Fit(out, opts.MaxDim, opts.MaxDim, imaging.Lanczos)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: creating %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("render: encoding %s: %w", path, err)
	}
	return f.Close()
}
