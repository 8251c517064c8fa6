package vectorize

import (
	"fmt"

	"github.com/ironsheep/terrace-detect/internal/geometry"
	"github.com/ironsheep/terrace-detect/internal/raster"
)

// Config tunes the raster-to-polygon conversion.
type Config struct {
	// Cutoff is the heatmap score, in (0, 1], above which a cell belongs
	// to a candidate region.
	Cutoff float64 `yaml:"cutoff" json:"cutoff"`

	// MinArea drops candidates smaller than this many square meters;
	// sub-terrace specks are detector noise, not features.
	MinArea float64 `yaml:"min_area" json:"min_area"`

	// MaxArea drops candidates larger than this many square meters; 0
	// disables the upper bound. A "terrace" covering a whole hillside is
	// a thresholding artifact.
	MaxArea float64 `yaml:"max_area" json:"max_area"`

	// SimplifyTolerance is the Douglas-Peucker tolerance in meters applied
	// to traced rings; 0 keeps the raw cell-resolution outline.
	SimplifyTolerance float64 `yaml:"simplify_tolerance" json:"simplify_tolerance"`
}

// DefaultConfig returns the extraction tuning for 0.5 m cells.
func DefaultConfig() Config {
	return Config{
		Cutoff:            0.2,
		MinArea:           20,
		MaxArea:           50000,
		SimplifyTolerance: 1.0,
	}
}

func (c *Config) validate() error {
	if c.Cutoff <= 0 || c.Cutoff > 1 {
		return fmt.Errorf("vectorize: cutoff must be in (0, 1], got %g", c.Cutoff)
	}
	if c.MinArea < 0 {
		return fmt.Errorf("vectorize: negative min_area %g", c.MinArea)
	}
	if c.MaxArea < 0 {
		return fmt.Errorf("vectorize: negative max_area %g", c.MaxArea)
	}
	if c.MaxArea > 0 && c.MaxArea < c.MinArea {
		return fmt.Errorf("vectorize: max_area %g below min_area %g", c.MaxArea, c.MinArea)
	}
	if c.SimplifyTolerance < 0 {
		return fmt.Errorf("vectorize: negative simplify_tolerance %g", c.SimplifyTolerance)
	}
	return nil
}

// Candidate is one extracted terrace region with its raster-side statistics,
// carried forward so enrichment does not have to re-scan the heatmap.
type Candidate struct {
	Polygon   *geometry.Polygon
	MeanScore float64
	Cells     int
}

// Extract converts the heatmap into candidate polygons.
//
// # Algorithm
//
//  1. Threshold: valid cells with score >= Cutoff form the binary mask.
//  2. Label: 8-connected components of the mask, found by flood fill in
//     scan order, so output order is deterministic for a given input.
//  3. Trace: each component's outer boundary is walked with Moore
//     neighbourhood tracing and emitted as a ring through the boundary
//     cell centers. Interior holes are not traced; a terrace candidate
//     with a hole is still one candidate.
//  4. Sieve and simplify: rings become polygons in world coordinates,
//     simplified to SimplifyTolerance and kept only when their area lies
//     within [MinArea, MaxArea].
//
// Components too small to form a ring (one or two cells) never survive a
// positive MinArea and are skipped outright.
func Extract(hm *raster.Grid, cfg Config) ([]Candidate, error) {
	if hm == nil || hm.Width == 0 || hm.Height == 0 {
		return nil, fmt.Errorf("vectorize: empty heatmap")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	w, h := hm.Width, hm.Height
	mask := make([]bool, w*h)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			v := hm.At(row, col)
			if !hm.IsNoData(v) && v >= cfg.Cutoff {
				mask[row*w+col] = true
			}
		}
	}

	labels := make([]int, w*h)
	var comps []component
	for i := range mask {
		if mask[i] && labels[i] == 0 {
			c := floodFill(mask, labels, w, h, i, len(comps)+1)
			for _, idx := range c.members {
				c.sum += hm.Data[idx]
			}
			comps = append(comps, c)
		}
	}

	var out []Candidate
	for _, comp := range comps {
		if len(comp.members) < 3 {
			continue
		}
		ring := traceBoundary(labels, w, h, comp)
		if len(ring) < 3 {
			continue
		}

		pts := make([]geometry.Point, len(ring))
		for i, c := range ring {
			pts[i].X, pts[i].Y = hm.CellCenter(c.row, c.col)
		}
		poly := &geometry.Polygon{Exterior: pts, CRS: hm.CRS}
		if cfg.SimplifyTolerance > 0 {
			poly = geometry.Simplify(poly, cfg.SimplifyTolerance)
			if poly == nil || poly.Empty() {
				continue
			}
		}

		// A line-shaped component traces an out-and-back ring with zero
		// shoelace area; it is never a feature, whatever MinArea says.
		area := poly.Area()
		if area <= 0 || area < cfg.MinArea {
			continue
		}
		if cfg.MaxArea > 0 && area > cfg.MaxArea {
			continue
		}
		out = append(out, Candidate{
			Polygon:   poly,
			MeanScore: comp.sum / float64(len(comp.members)),
			Cells:     len(comp.members),
		})
	}
	return out, nil
}

type cell struct{ row, col int }

type component struct {
	label   int
	start   cell // topmost, then leftmost cell
	members []int
	sum     float64
}

var eightDirs = [8]cell{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// floodFill labels the 8-connected component containing seed. The scan order
// guarantees seed is the component's topmost-leftmost cell, which
// traceBoundary relies on.
func floodFill(mask []bool, labels []int, w, h, seed, label int) component {
	comp := component{label: label, start: cell{seed / w, seed % w}}
	stack := []int{seed}
	labels[seed] = label
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		comp.members = append(comp.members, i)
		row, col := i/w, i%w
		for _, d := range eightDirs {
			r, c := row+d.row, col+d.col
			if r < 0 || r >= h || c < 0 || c >= w {
				continue
			}
			j := r*w + c
			if mask[j] && labels[j] == 0 {
				labels[j] = label
				stack = append(stack, j)
			}
		}
	}
	return comp
}

// moore is the Moore neighbourhood in clockwise order starting west.
var moore = [8]cell{
	{0, -1}, {-1, -1}, {-1, 0}, {-1, 1},
	{0, 1}, {1, 1}, {1, 0}, {1, -1},
}

func mooreIndex(d cell) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return 0
}

// traceBoundary walks the outer boundary of one labelled component clockwise
// and returns its boundary cells in order. The walk starts at the component's
// topmost-leftmost cell with the backtrack pixel to its west, which the start
// cell's position guarantees lies outside, and stops when it is about to
// repeat the very first move out of the start cell, so thin and spiral
// shapes terminate correctly rather than on the first revisit of the start.
func traceBoundary(labels []int, w, h int, comp component) []cell {
	inside := func(c cell) bool {
		return c.row >= 0 && c.row < h && c.col >= 0 && c.col < w &&
			labels[c.row*w+c.col] == comp.label
	}

	start := comp.start
	ring := []cell{start}
	cur := start
	back := cell{start.row, start.col - 1}

	var firstMove cell
	for steps := 0; steps < 4*len(labels); steps++ {
		idx := mooreIndex(cell{back.row - cur.row, back.col - cur.col})
		var next cell
		found := false
		for k := 1; k <= 8; k++ {
			j := (idx + k) % 8
			cand := cell{cur.row + moore[j].row, cur.col + moore[j].col}
			if inside(cand) {
				next = cand
				// New backtrack: the empty neighbour examined just
				// before the move, always 8-adjacent to next.
				p := (j + 7) % 8
				back = cell{cur.row + moore[p].row, cur.col + moore[p].col}
				found = true
				break
			}
		}
		if !found {
			// Isolated cell, the component is its own boundary.
			return ring
		}
		move := cell{next.row - cur.row, next.col - cur.col}
		if steps == 0 {
			firstMove = move
		} else if cur == start && move == firstMove {
			return ring
		}
		if next != start {
			ring = append(ring, next)
		}
		cur = next
	}
	return ring
}
