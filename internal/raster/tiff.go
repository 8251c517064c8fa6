package raster

import (
	"fmt"
	"image"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"
)

// TIFFOptions control how a TIFF elevation tile is interpreted.
type TIFFOptions struct {
	// ValueScale converts raw integer samples to elevation units
	// (e.g. 0.01 for tiles storing centimetres). Zero means 1.0.
	ValueScale float64

	// NoDataRaw is the raw sample value marking missing cells.
	// Common for integer DEM tiles is 0 or the maximum sample value;
	// nil disables raw nodata mapping.
	NoDataRaw *float64

	// CRS tag recorded on the resulting grid.
	CRS string
}

// ReadTIFF decodes a single-band grayscale TIFF tile and georeferences it
// from its worldfile (same base name, ".tfw"). Tiles without a worldfile are
// rejected here; callers that can derive georeferencing another way (e.g.
// from a tile naming convention) should use ReadTIFFWithOrigin.
func ReadTIFF(path string, opts TIFFOptions) (*Grid, error) {
	originX, originY, cellSize, err := readWorldfile(path)
	if err != nil {
		return nil, err
	}
	return ReadTIFFWithOrigin(path, originX, originY, cellSize, opts)
}

// ReadTIFFWithOrigin decodes a grayscale TIFF with explicit georeferencing:
// originX/originY is the outer corner of the top-left cell.
func ReadTIFFWithOrigin(path string, originX, originY, cellSize float64, opts TIFFOptions) (*Grid, error) {
	if cellSize <= 0 {
		return nil, fmt.Errorf("raster: %s: non-positive cell size %g", path, cellSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raster: open %s: %w", path, err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("raster: decode %s: %w", path, err)
	}

	scale := opts.ValueScale
	if scale == 0 {
		scale = 1.0
	}

	b := img.Bounds()
	g := New(b.Dx(), b.Dy(), originX, originY, cellSize, opts.CRS)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			raw, ok := graySample(img, b.Min.X+col, b.Min.Y+row)
			if !ok {
				return nil, fmt.Errorf("raster: %s: unsupported pixel format %T", path, img)
			}
			if opts.NoDataRaw != nil && raw == *opts.NoDataRaw {
				continue
			}
			g.Set(row, col, raw*scale)
		}
	}
	return g, nil
}

// graySample extracts the raw single-band sample at (x, y).
func graySample(img image.Image, x, y int) (float64, bool) {
	switch im := img.(type) {
	case *image.Gray:
		return float64(im.GrayAt(x, y).Y), true
	case *image.Gray16:
		return float64(im.Gray16At(x, y).Y), true
	default:
		// Fall back to luminance for anything the decoder expanded to a
		// color model; 16-bit precision is preserved by RGBA64At.
		r, gch, bch, a := img.At(x, y).RGBA()
		if a == 0 {
			return 0, true
		}
		return float64(r+gch+bch) / 3, true
	}
}

// readWorldfile parses the six-line ESRI worldfile next to the raster.
// Rotation terms must be zero and the Y pixel size negative (north-up).
func readWorldfile(path string) (originX, originY, cellSize float64, err error) {
	wf := worldfilePath(path)
	b, err := os.ReadFile(wf)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("raster: missing worldfile for %s: %w", path, err)
	}
	fields := strings.Fields(string(b))
	if len(fields) < 6 {
		return 0, 0, 0, fmt.Errorf("raster: %s: worldfile has %d values, want 6", wf, len(fields))
	}
	vals := make([]float64, 6)
	for i := 0; i < 6; i++ {
		vals[i], err = strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("raster: %s: bad worldfile value %q: %w", wf, fields[i], err)
		}
	}
	a, d, bRot, e, c, f := vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]
	if d != 0 || bRot != 0 {
		return 0, 0, 0, fmt.Errorf("raster: %s: rotated rasters are not supported", wf)
	}
	if a <= 0 || e >= 0 || math.Abs(a+e) > 1e-9 {
		return 0, 0, 0, fmt.Errorf("raster: %s: expected square north-up cells, got %g/%g", wf, a, e)
	}
	// The worldfile anchors the center of the top-left pixel.
	return c - a/2, f + a/2, a, nil
}

func worldfilePath(path string) string {
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		return path[:i] + ".tfw"
	}
	return path + ".tfw"
}
