package raster

import (
	"fmt"
	"math"
)

// MergeRule decides how overlapping valid cells combine during Mosaic.
type MergeRule int

const (
	// LastWins keeps the value of the last source in input order.
	LastWins MergeRule = iota

	// MeanOfValid averages every valid source value covering the cell.
	MeanOfValid
)

// Mosaic merges the sources into a single grid covering their union
// footprint. All sources must share CRS and cell size and be aligned to a
// common lattice; callers resample first when they are not (see Resample).
//
// Cells covered by no source stay nodata. A valid value is never
// overwritten by nodata from a later source, whatever the rule.
func Mosaic(sources []*Grid, rule MergeRule) (*Grid, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("raster: mosaic of zero sources")
	}
	ref := sources[0]
	for _, s := range sources[1:] {
		if err := Compatible(ref, s); err != nil {
			return nil, fmt.Errorf("raster: mosaic: %w", err)
		}
	}

	// Union bounds snapped to the reference lattice.
	minX, maxY := ref.OriginX, ref.OriginY
	maxX := ref.OriginX + float64(ref.Width)*ref.CellSize
	minY := ref.OriginY - float64(ref.Height)*ref.CellSize
	for _, s := range sources[1:] {
		b := s.Bounds()
		minX = math.Min(minX, b.MinX)
		minY = math.Min(minY, b.MinY)
		maxX = math.Max(maxX, b.MaxX)
		maxY = math.Max(maxY, b.MaxY)
	}
	cell := ref.CellSize
	offX := math.Floor((minX-ref.OriginX)/cell + 0.5)
	offY := math.Floor((ref.OriginY-maxY)/cell + 0.5)
	originX := ref.OriginX + offX*cell
	originY := ref.OriginY - offY*cell
	width := int(math.Ceil((maxX-originX)/cell - 1e-9))
	height := int(math.Ceil((originY-minY)/cell - 1e-9))

	out := New(width, height, originX, originY, cell, ref.CRS)
	out.NoData = ref.NoData
	out.Fill(out.NoData)

	var counts []int
	if rule == MeanOfValid {
		counts = make([]int, width*height)
		out.Fill(0)
	}

	for _, s := range sources {
		dCol := int(math.Floor((s.OriginX-originX)/cell + 0.5))
		dRow := int(math.Floor((originY-s.OriginY)/cell + 0.5))
		for row := 0; row < s.Height; row++ {
			tr := row + dRow
			if tr < 0 || tr >= height {
				continue
			}
			for col := 0; col < s.Width; col++ {
				tc := col + dCol
				if tc < 0 || tc >= width {
					continue
				}
				v := s.At(row, col)
				if s.IsNoData(v) {
					continue
				}
				i := tr*width + tc
				switch rule {
				case MeanOfValid:
					out.Data[i] += v
					counts[i]++
				default:
					out.Data[i] = v
				}
			}
		}
	}

	if rule == MeanOfValid {
		for i, n := range counts {
			if n == 0 {
				out.Data[i] = out.NoData
			} else {
				out.Data[i] /= float64(n)
			}
		}
	}
	return out, nil
}
