package tiles

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/terrace-detect/internal/geometry"
)

// FilterResult tags every inspected tile as kept or rejected and collects
// per-tile failures.
type FilterResult struct {
	Kept     []Tile       `json:"kept"`
	Rejected []Tile       `json:"rejected"`
	Errors   []*TileError `json:"errors,omitempty"`
}

// Filter selects the tiles whose exact footprint intersects any of the
// boundary polygons. The bounding-box test runs first as a cheap reject;
// a positive bbox result escalates to the exact polygon intersection when
// the tile carries a non-rectangular footprint, and to the exact
// rectangle/polygon test otherwise, so a bbox overlap alone never keeps a
// tile the boundary does not actually touch.
//
// Boundary polygons are validated before any tile is tested; filtering with
// an invalid boundary is refused. Tiles are tested concurrently, each
// writing its verdict to a disjoint slot, and a CRS mismatch on one tile is
// reported for that tile without aborting the batch.
func Filter(ctx context.Context, ts []Tile, boundary []*geometry.Polygon, crs string) (*FilterResult, error) {
	if len(boundary) == 0 {
		return nil, fmt.Errorf("tiles: empty boundary")
	}
	for i, b := range boundary {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("tiles: invalid boundary polygon %d: %w", i, err)
		}
		if crs != "" && b.CRS != "" && b.CRS != crs {
			return nil, &geometry.CRSMismatchError{A: b.CRS, B: crs}
		}
	}

	type verdict struct {
		keep bool
		err  *TileError
	}
	verdicts := make([]verdict, len(ts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range ts {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t := &ts[i]
			keep, err := tileIntersects(t, boundary)
			if err != nil {
				verdicts[i] = verdict{err: tileErr(t.ID, t.Path, err)}
				return nil
			}
			verdicts[i] = verdict{keep: keep}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &FilterResult{}
	for i, v := range verdicts {
		switch {
		case v.err != nil:
			res.Errors = append(res.Errors, v.err)
		case v.keep:
			res.Kept = append(res.Kept, ts[i])
		default:
			res.Rejected = append(res.Rejected, ts[i])
		}
	}
	return res, nil
}

func tileIntersects(t *Tile, boundary []*geometry.Polygon) (bool, error) {
	if t.CRS == "" {
		return false, fmt.Errorf("missing CRS metadata")
	}
	footprint := t.FootprintPolygon()
	for _, b := range boundary {
		if !t.BBox.Intersects(b.BBox()) {
			continue
		}
		hit, err := geometry.Intersects(footprint, b)
		if err != nil {
			return false, err
		}
		if hit {
			return true, nil
		}
	}
	return false, nil
}

// Relocate moves the tiles into destDir, carrying worldfile and CRS
// sidecars along. Failures are collected per tile; one failed move never
// aborts the rest. The returned tiles point at the new locations.
func Relocate(ts []Tile, destDir string) ([]Tile, []*TileError) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, []*TileError{tileErr(destDir, destDir, fmt.Errorf("creating destination: %w", err))}
	}
	var moved []Tile
	var errs []*TileError
	for _, t := range ts {
		dest := filepath.Join(destDir, filepath.Base(t.Path))
		if err := moveFile(t.Path, dest); err != nil {
			errs = append(errs, tileErr(t.ID, t.Path, err))
			continue
		}
		for _, side := range []string{".tfw", ".prj"} {
			src := trimExt(t.Path) + side
			if _, err := os.Stat(src); err == nil {
				// Sidecar move failures ride along with the tile.
				if err := moveFile(src, trimExt(dest)+side); err != nil {
					errs = append(errs, tileErr(t.ID, src, err))
				}
			}
		}
		t.Path = dest
		moved = append(moved, t)
	}
	return moved, errs
}

func trimExt(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
