package raster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillSeq(g *Grid, base float64) {
	for i := range g.Data {
		g.Data[i] = base + float64(i)
	}
}

func TestASCRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dem.asc")

	g := New(4, 3, 865000, 6364000, 0.5, "EPSG:2154")
	fillSeq(g, 100)
	g.Set(1, 2, g.NoData)

	require.NoError(t, WriteASC(g, path))

	got, err := ReadASC(path)
	require.NoError(t, err)

	if diff := cmp.Diff(g, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "EPSG:2154", got.CRS, "CRS read back from sidecar")
	assert.False(t, got.ValidAt(1, 2))
}

func TestReadASC_MissingHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.asc")
	require.NoError(t, os.WriteFile(path, []byte("ncols 2\nnrows 2\n1 2\n3 4\n"), 0o644))
	_, err := ReadASC(path)
	assert.Error(t, err)
}

func TestGridIndexing(t *testing.T) {
	g := New(10, 10, 1000, 2000, 2, "")
	x, y := g.CellCenter(0, 0)
	assert.InDelta(t, 1001, x, 1e-9)
	assert.InDelta(t, 1999, y, 1e-9)

	row, col, ok := g.Index(x, y)
	require.True(t, ok)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)

	_, _, ok = g.Index(999, 1999)
	assert.False(t, ok, "west of the grid")
	_, _, ok = g.Index(1001, 2001)
	assert.False(t, ok, "north of the grid")

	b := g.Bounds()
	assert.InDelta(t, 1000, b.MinX, 1e-9)
	assert.InDelta(t, 1980, b.MinY, 1e-9)
	assert.InDelta(t, 1020, b.MaxX, 1e-9)
	assert.InDelta(t, 2000, b.MaxY, 1e-9)
}

func TestMosaic_NonOverlappingConcatenation(t *testing.T) {
	// Two side-by-side tiles must reproduce their source values
	// cell-for-cell in the mosaic.
	left := New(4, 4, 0, 4, 1, "EPSG:2154")
	fillSeq(left, 0)
	right := New(4, 4, 4, 4, 1, "EPSG:2154")
	fillSeq(right, 100)

	m, err := Mosaic([]*Grid{left, right}, LastWins)
	require.NoError(t, err)
	require.Equal(t, 8, m.Width)
	require.Equal(t, 4, m.Height)

	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			assert.Equal(t, left.At(row, col), m.At(row, col))
			assert.Equal(t, right.At(row, col), m.At(row, col+4))
		}
	}
}

func TestMosaic_NoDataNeverOverwritesValid(t *testing.T) {
	a := New(2, 2, 0, 2, 1, "")
	a.Fill(7)
	b := New(2, 2, 0, 2, 1, "")
	// b is entirely nodata and listed last.

	m, err := Mosaic([]*Grid{a, b}, LastWins)
	require.NoError(t, err)
	for i := range m.Data {
		assert.Equal(t, 7.0, m.Data[i])
	}
}

func TestMosaic_MeanOfValid(t *testing.T) {
	a := New(2, 2, 0, 2, 1, "")
	a.Fill(10)
	b := New(2, 2, 0, 2, 1, "")
	b.Fill(20)
	b.Set(0, 0, b.NoData)

	m, err := Mosaic([]*Grid{a, b}, MeanOfValid)
	require.NoError(t, err)
	assert.Equal(t, 10.0, m.At(0, 0), "single valid source")
	assert.Equal(t, 15.0, m.At(1, 1))
}

func TestMosaic_UncoveredCellsAreNoData(t *testing.T) {
	// Diagonal tiles leave the two off-diagonal quadrants uncovered.
	a := New(2, 2, 0, 4, 1, "")
	a.Fill(1)
	b := New(2, 2, 2, 2, 1, "")
	b.Fill(2)

	m, err := Mosaic([]*Grid{a, b}, LastWins)
	require.NoError(t, err)
	require.Equal(t, 4, m.Width)
	require.Equal(t, 4, m.Height)
	assert.False(t, m.ValidAt(0, 2))
	assert.False(t, m.ValidAt(3, 0))
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 2.0, m.At(2, 2))
}

func TestMosaic_Errors(t *testing.T) {
	_, err := Mosaic(nil, LastWins)
	assert.Error(t, err, "zero sources")

	a := New(2, 2, 0, 2, 1, "EPSG:2154")
	b := New(2, 2, 0, 2, 1, "EPSG:4326")
	_, err = Mosaic([]*Grid{a, b}, LastWins)
	assert.Error(t, err, "CRS mismatch")

	c := New(2, 2, 0, 2, 0.5, "EPSG:2154")
	_, err = Mosaic([]*Grid{a, c}, LastWins)
	assert.Error(t, err, "cell size mismatch")
}

func TestResample_Nearest(t *testing.T) {
	src := New(2, 2, 0, 2, 1, "")
	src.Data = []float64{1, 2, 3, 4}

	// Double the resolution: each source cell becomes 2x2 target cells.
	out, err := Resample(src, 0, 2, 0.5, 4, 4, Nearest)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.At(0, 0))
	assert.Equal(t, 1.0, out.At(1, 1))
	assert.Equal(t, 2.0, out.At(0, 2))
	assert.Equal(t, 3.0, out.At(2, 0))
	assert.Equal(t, 4.0, out.At(3, 3))
}

func TestResample_BilinearConstantField(t *testing.T) {
	src := New(4, 4, 0, 4, 1, "")
	src.Fill(42)
	out, err := Resample(src, 0, 4, 0.4, 10, 10, Bilinear)
	require.NoError(t, err)
	for i, v := range out.Data {
		assert.InDeltaf(t, 42, v, 1e-9, "cell %d", i)
	}
}

func TestResample_BilinearSkipsNoData(t *testing.T) {
	src := New(2, 1, 0, 1, 1, "")
	src.Data = []float64{10, src.NoData}

	// Sample between the two cell centers: only the valid one contributes.
	v, ok := src.bilinearAt(1.0, 0.5)
	require.True(t, ok)
	assert.InDelta(t, 10, v, 1e-9)

	// All-nodata support yields not-ok.
	src.Data = []float64{src.NoData, src.NoData}
	_, ok = src.bilinearAt(1.0, 0.5)
	assert.False(t, ok)
}

func TestResample_InvalidTarget(t *testing.T) {
	src := New(2, 2, 0, 2, 1, "")
	_, err := Resample(src, 0, 2, 0, 2, 2, Nearest)
	assert.Error(t, err)
}

func TestWorldfileTIFF(t *testing.T) {
	dir := t.TempDir()
	// Worldfile parsing is exercised without a TIFF: missing raster file
	// errors must name the offending path.
	_, err := ReadTIFF(filepath.Join(dir, "missing.tif"), TIFFOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.tif")
}
