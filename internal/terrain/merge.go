package terrain

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/terrace-detect/internal/raster"
	"github.com/ironsheep/terrace-detect/internal/tiles"
)

// MergeOptions configure tile loading and mosaicking.
type MergeOptions struct {
	// TIFF controls how TIFF tiles are decoded (value scale, raw nodata).
	TIFF raster.TIFFOptions

	// Rule decides how overlapping tile cells combine. IGN tiles overlap
	// only at seams, where either source is equally valid; LastWins is
	// the conventional choice.
	Rule raster.MergeRule
}

// MergeTiles loads the filtered tiles, resamples any tile whose resolution
// differs from the finest one, and mosaics them into a single DEM covering
// the union footprint. Cells covered by no tile are nodata.
//
// Individual unreadable tiles are reported and skipped; zero loadable tiles
// is fatal, since every later stage depends on the mosaic.
func MergeTiles(ctx context.Context, ts []tiles.Tile, opts MergeOptions) (*raster.Grid, []*tiles.TileError, error) {
	if len(ts) == 0 {
		return nil, nil, fmt.Errorf("terrain: no tiles to merge")
	}

	loaded := make([]*raster.Grid, len(ts))
	loadErrs := make([]*tiles.TileError, len(ts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range ts {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			grid, err := loadTile(&ts[i], opts)
			if err != nil {
				loadErrs[i] = &tiles.TileError{ID: ts[i].ID, Path: ts[i].Path, Err: err, Reason: err.Error()}
				return nil
			}
			loaded[i] = grid
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var grids []*raster.Grid
	var errs []*tiles.TileError
	for i, grid := range loaded {
		if grid != nil {
			grids = append(grids, grid)
		} else if loadErrs[i] != nil {
			errs = append(errs, loadErrs[i])
		}
	}
	if len(grids) == 0 {
		return nil, errs, fmt.Errorf("terrain: none of the %d tiles could be loaded", len(ts))
	}

	// The finest-resolution tile sets the reference lattice.
	ref := grids[0]
	for _, grid := range grids[1:] {
		if grid.CellSize < ref.CellSize {
			ref = grid
		}
	}
	for i, grid := range grids {
		if math.Abs(grid.CellSize-ref.CellSize) <= 1e-9 {
			continue
		}
		b := grid.Bounds()
		w := int(math.Ceil((b.MaxX - b.MinX) / ref.CellSize))
		h := int(math.Ceil((b.MaxY - b.MinY) / ref.CellSize))
		rs, err := raster.Resample(grid, b.MinX, b.MaxY, ref.CellSize, w, h, raster.Bilinear)
		if err != nil {
			return nil, errs, fmt.Errorf("terrain: resampling tile to %gm: %w", ref.CellSize, err)
		}
		grids[i] = rs
	}

	dem, err := raster.Mosaic(grids, opts.Rule)
	if err != nil {
		return nil, errs, fmt.Errorf("terrain: mosaic: %w", err)
	}
	return dem, errs, nil
}

func loadTile(t *tiles.Tile, opts MergeOptions) (*raster.Grid, error) {
	ext := strings.ToLower(filepath.Ext(t.Path))
	if ext == ".asc" {
		g, err := raster.ReadASC(t.Path)
		if err != nil {
			return nil, err
		}
		if g.CRS == "" {
			g.CRS = t.CRS
		}
		return g, nil
	}

	tiffOpts := opts.TIFF
	tiffOpts.CRS = t.CRS
	if g, err := raster.ReadTIFF(t.Path, tiffOpts); err == nil {
		return g, nil
	}
	// No worldfile: fall back to the footprint derived at scan time,
	// assuming square cells spanning the bbox.
	span := t.BBox.MaxX - t.BBox.MinX
	if span <= 0 {
		return nil, fmt.Errorf("tile %s has no worldfile and an empty footprint", t.ID)
	}
	g, err := raster.ReadTIFFWithOrigin(t.Path, t.BBox.MinX, t.BBox.MaxY, 1, tiffOpts)
	if err != nil {
		return nil, err
	}
	if g.Width > 0 {
		g.CellSize = span / float64(g.Width)
	}
	return g, nil
}
