package terrain

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/terrace-detect/internal/raster"
)

// summedArea holds integral images of value, squared value and valid-cell
// count for a grid, giving O(1) mean/stddev over any window regardless of
// window size. Nodata cells contribute nothing.
type summedArea struct {
	w, h  int
	sum   []float64
	sumSq []float64
	count []int
}

func newSummedArea(g *raster.Grid) *summedArea {
	w, h := g.Width, g.Height
	sa := &summedArea{
		w:     w,
		h:     h,
		sum:   make([]float64, (w+1)*(h+1)),
		sumSq: make([]float64, (w+1)*(h+1)),
		count: make([]int, (w+1)*(h+1)),
	}
	stride := w + 1
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			i := (row+1)*stride + (col + 1)
			up := row*stride + (col + 1)
			left := (row+1)*stride + col
			diag := row*stride + col

			sa.sum[i] = sa.sum[up] + sa.sum[left] - sa.sum[diag]
			sa.sumSq[i] = sa.sumSq[up] + sa.sumSq[left] - sa.sumSq[diag]
			sa.count[i] = sa.count[up] + sa.count[left] - sa.count[diag]

			v := g.At(row, col)
			if !g.IsNoData(v) {
				sa.sum[i] += v
				sa.sumSq[i] += v * v
				sa.count[i]++
			}
		}
	}
	return sa
}

// window returns mean, stddev and valid count over the window of half-width
// r centered on (row, col), clipped to the grid.
func (sa *summedArea) window(row, col, r int) (mean, std float64, n int) {
	r0 := max(0, row-r)
	r1 := min(sa.h-1, row+r)
	c0 := max(0, col-r)
	c1 := min(sa.w-1, col+r)

	stride := sa.w + 1
	a := r0*stride + c0
	b := r0*stride + (c1 + 1)
	c := (r1+1)*stride + c0
	d := (r1+1)*stride + (c1 + 1)

	n = sa.count[d] - sa.count[b] - sa.count[c] + sa.count[a]
	if n == 0 {
		return 0, 0, 0
	}
	s := sa.sum[d] - sa.sum[b] - sa.sum[c] + sa.sum[a]
	sq := sa.sumSq[d] - sa.sumSq[b] - sa.sumSq[c] + sa.sumSq[a]
	mean = s / float64(n)
	varr := sq/float64(n) - mean*mean
	if varr < 0 {
		varr = 0 // rounding
	}
	return mean, math.Sqrt(varr), n
}

// bandWorkers caps the row-band parallelism. Tests pin it to 1 to compare
// banded output against a whole-raster pass.
var bandWorkers = runtime.NumCPU()

// forEachRowBand runs fn over [0, h) split into contiguous row bands, one
// per worker. Bands are disjoint, so no synchronization is needed beyond
// the final Wait.
func forEachRowBand(h int, fn func(r0, r1 int) error) error {
	workers := bandWorkers
	if workers > h {
		workers = h
	}
	if workers <= 1 {
		return fn(0, h)
	}
	var g errgroup.Group
	band := (h + workers - 1) / workers
	for r0 := 0; r0 < h; r0 += band {
		r0 := r0
		r1 := min(r0+band, h)
		g.Go(func() error { return fn(r0, r1) })
	}
	return g.Wait()
}
