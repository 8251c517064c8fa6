package tiles

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ironsheep/terrace-detect/internal/geometry"
	"github.com/ironsheep/terrace-detect/internal/raster"
)

// Tile is a handle to one raw elevation raster before merging. Tiles are
// read-only inputs; filtering selects a subset, it never mutates them.
type Tile struct {
	// ID is the tile identifier, by convention the file base name
	// without extension.
	ID string `json:"id"`

	// Path is the raster file on disk.
	Path string `json:"path"`

	// BBox is the tile footprint in the tile's CRS.
	BBox geometry.BBox `json:"bbox"`

	// Footprint optionally carries a non-rectangular footprint polygon.
	// When nil the footprint is the bounding box.
	Footprint *geometry.Polygon `json:"footprint,omitempty"`

	// CRS of the footprint coordinates.
	CRS string `json:"crs"`
}

// FootprintPolygon returns the exact footprint: the explicit polygon when
// present, otherwise the bounding rectangle.
func (t *Tile) FootprintPolygon() *geometry.Polygon {
	if t.Footprint != nil {
		return t.Footprint
	}
	return t.BBox.Polygon(t.CRS)
}

// IGN LiDAR HD tile names embed the south-west corner in kilometres:
// LHD_FXX_0865_6363_MNT_O_0M50_LAMB93_IGN69.tif -> 1 km square at
// (865000, 6363000) in EPSG:2154.
var ignNameRe = regexp.MustCompile(`^LHD_[A-Z]{3}_(\d{4})_(\d{4})_`)

// ignTileSize is the footprint edge length of one LiDAR HD tile in meters.
const ignTileSize = 1000.0

// BBoxFromName derives the tile footprint from the IGN LiDAR HD naming
// convention. ok is false for names that do not follow it.
func BBoxFromName(name string) (geometry.BBox, bool) {
	m := ignNameRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return geometry.BBox{}, false
	}
	xkm, err1 := strconv.Atoi(m[1])
	ykm, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return geometry.BBox{}, false
	}
	minX := float64(xkm) * 1000
	minY := float64(ykm) * 1000
	return geometry.BBox{
		MinX: minX,
		MinY: minY,
		MaxX: minX + ignTileSize,
		MaxY: minY + ignTileSize,
	}, true
}

// TileError records a per-tile failure without aborting the batch.
type TileError struct {
	ID   string `json:"id"`
	Path string `json:"path,omitempty"`
	Err  error  `json:"-"`

	// Reason is the error text, kept separately so reports marshal.
	Reason string `json:"reason"`
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile %s: %s", e.ID, e.Reason)
}

func (e *TileError) Unwrap() error { return e.Err }

func tileErr(id, path string, err error) *TileError {
	return &TileError{ID: id, Path: path, Err: err, Reason: err.Error()}
}

// ScanDir builds the tile inventory for a directory of .tif/.asc rasters.
// Georeferencing comes from the IGN name convention first, then from a
// worldfile (.tif) or the grid header (.asc). Tiles whose georeferencing or
// CRS cannot be established are returned as errors, never silently included.
//
// A non-empty manifest restricts the inventory to the listed tile IDs; IDs
// present in the manifest but absent on disk are reported as errors so a
// partial download is visible.
func ScanDir(dir, crs string, manifest []string) ([]Tile, []*TileError) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []*TileError{tileErr(dir, dir, fmt.Errorf("reading tile directory: %w", err))}
	}

	want := map[string]bool{}
	for _, id := range manifest {
		want[id] = true
	}

	var tiles []Tile
	var errs []*TileError
	seen := map[string]bool{}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(ent.Name()))
		if ext != ".tif" && ext != ".tiff" && ext != ".asc" {
			continue
		}
		id := strings.TrimSuffix(ent.Name(), filepath.Ext(ent.Name()))
		if len(want) > 0 && !want[id] {
			continue
		}
		seen[id] = true
		path := filepath.Join(dir, ent.Name())
		tile, err := inspect(id, path, ext, crs)
		if err != nil {
			errs = append(errs, tileErr(id, path, err))
			continue
		}
		tiles = append(tiles, tile)
	}

	for _, id := range manifest {
		if !seen[id] {
			errs = append(errs, tileErr(id, "", fmt.Errorf("listed in manifest but not found on disk")))
		}
	}

	sort.Slice(tiles, func(i, j int) bool { return tiles[i].ID < tiles[j].ID })
	return tiles, errs
}

func inspect(id, path, ext, crs string) (Tile, error) {
	if bbox, ok := BBoxFromName(path); ok {
		return Tile{ID: id, Path: path, BBox: bbox, CRS: crs}, nil
	}
	switch ext {
	case ".asc":
		g, err := raster.ReadASC(path)
		if err != nil {
			return Tile{}, err
		}
		if g.CRS == "" && crs == "" {
			return Tile{}, fmt.Errorf("no CRS in sidecar and none configured")
		}
		tileCRS := g.CRS
		if tileCRS == "" {
			tileCRS = crs
		}
		return Tile{ID: id, Path: path, BBox: g.Bounds(), CRS: tileCRS}, nil
	default:
		g, err := raster.ReadTIFF(path, raster.TIFFOptions{CRS: crs})
		if err != nil {
			return Tile{}, err
		}
		if crs == "" {
			return Tile{}, fmt.Errorf("no CRS configured for TIFF tile")
		}
		return Tile{ID: id, Path: path, BBox: g.Bounds(), CRS: crs}, nil
	}
}

// ReadManifest parses a tile manifest: one tile ID per line, blank lines
// and #-comments ignored.
func ReadManifest(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tiles: read manifest %s: %w", path, err)
	}
	var ids []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(line, filepath.Ext(line)))
	}
	return ids, nil
}
