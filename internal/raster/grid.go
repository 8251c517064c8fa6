package raster

import (
	"fmt"
	"math"

	"github.com/ironsheep/terrace-detect/internal/geometry"
)

// DefaultNoData is the sentinel used for newly created grids.
const DefaultNoData = -9999.0

// Grid is a single-band georeferenced raster. Cells are stored row-major,
// row 0 northernmost. OriginX/OriginY is the outer corner of the top-left
// cell; cell centers are offset by half a cell.
type Grid struct {
	Width    int
	Height   int
	CellSize float64
	OriginX  float64
	OriginY  float64
	CRS      string
	NoData   float64
	Data     []float64
}

// New allocates a grid of the given shape with every cell set to nodata.
func New(width, height int, originX, originY, cellSize float64, crs string) *Grid {
	g := &Grid{
		Width:    width,
		Height:   height,
		CellSize: cellSize,
		OriginX:  originX,
		OriginY:  originY,
		CRS:      crs,
		NoData:   DefaultNoData,
		Data:     make([]float64, width*height),
	}
	g.Fill(g.NoData)
	return g
}

// Fill sets every cell to v.
func (g *Grid) Fill(v float64) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

// At returns the cell value at (row, col). Callers must stay in bounds.
func (g *Grid) At(row, col int) float64 {
	return g.Data[row*g.Width+col]
}

// Set stores v at (row, col).
func (g *Grid) Set(row, col int, v float64) {
	g.Data[row*g.Width+col] = v
}

// IsNoData reports whether v is this grid's nodata sentinel or NaN.
func (g *Grid) IsNoData(v float64) bool {
	return v == g.NoData || math.IsNaN(v)
}

// ValidAt reports whether the cell holds a valid measurement.
func (g *Grid) ValidAt(row, col int) bool {
	return !g.IsNoData(g.At(row, col))
}

// CellCenter returns the world coordinates of the center of (row, col).
func (g *Grid) CellCenter(row, col int) (x, y float64) {
	x = g.OriginX + (float64(col)+0.5)*g.CellSize
	y = g.OriginY - (float64(row)+0.5)*g.CellSize
	return x, y
}

// Index maps world coordinates to the containing cell. ok is false when the
// point falls outside the grid.
func (g *Grid) Index(x, y float64) (row, col int, ok bool) {
	if g.CellSize <= 0 {
		return 0, 0, false
	}
	col = int(math.Floor((x - g.OriginX) / g.CellSize))
	row = int(math.Floor((g.OriginY - y) / g.CellSize))
	if row < 0 || row >= g.Height || col < 0 || col >= g.Width {
		return 0, 0, false
	}
	return row, col, true
}

// Bounds returns the grid footprint in world coordinates.
func (g *Grid) Bounds() geometry.BBox {
	return geometry.BBox{
		MinX: g.OriginX,
		MinY: g.OriginY - float64(g.Height)*g.CellSize,
		MaxX: g.OriginX + float64(g.Width)*g.CellSize,
		MaxY: g.OriginY,
	}
}

// Clone returns a deep copy sharing no storage with the receiver.
func (g *Grid) Clone() *Grid {
	out := *g
	out.Data = append([]float64(nil), g.Data...)
	return &out
}

// SampleAt returns the value of the cell containing (x, y); ok is false
// outside the grid or on nodata.
func (g *Grid) SampleAt(x, y float64) (v float64, ok bool) {
	row, col, ok := g.Index(x, y)
	if !ok {
		return 0, false
	}
	v = g.At(row, col)
	if g.IsNoData(v) {
		return 0, false
	}
	return v, true
}

// MinMax returns the smallest and largest valid values and whether any valid
// cell exists.
func (g *Grid) MinMax() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		if g.IsNoData(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		ok = true
	}
	return lo, hi, ok
}

// validate checks the invariants shared by every operation consuming a grid.
func (g *Grid) validate() error {
	if g == nil {
		return fmt.Errorf("raster: nil grid")
	}
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("raster: empty grid %dx%d", g.Width, g.Height)
	}
	if g.CellSize <= 0 {
		return fmt.Errorf("raster: non-positive cell size %g", g.CellSize)
	}
	if len(g.Data) != g.Width*g.Height {
		return fmt.Errorf("raster: data length %d does not match %dx%d", len(g.Data), g.Width, g.Height)
	}
	return nil
}

// Compatible reports an error unless the two grids share CRS and cell size;
// mixing them in one operation would silently misregister cells.
func Compatible(a, b *Grid) error {
	if err := a.validate(); err != nil {
		return err
	}
	if err := b.validate(); err != nil {
		return err
	}
	if a.CRS != "" && b.CRS != "" && a.CRS != b.CRS {
		return fmt.Errorf("raster: CRS mismatch %q vs %q", a.CRS, b.CRS)
	}
	if math.Abs(a.CellSize-b.CellSize) > 1e-9 {
		return fmt.Errorf("raster: cell size mismatch %g vs %g", a.CellSize, b.CellSize)
	}
	return nil
}
