// Package pipeline chains the detection stages, mosaic to enriched report,
// and handles resumption: every raster stage persists its artifact, and a
// stage whose artifact already exists on disk is loaded instead of
// recomputed, so an interrupted run picks up where it stopped.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/terrace-detect/internal/config"
	"github.com/ironsheep/terrace-detect/internal/enrich"
	"github.com/ironsheep/terrace-detect/internal/geojson"
	"github.com/ironsheep/terrace-detect/internal/geometry"
	"github.com/ironsheep/terrace-detect/internal/raster"
	"github.com/ironsheep/terrace-detect/internal/render"
	"github.com/ironsheep/terrace-detect/internal/terrain"
	"github.com/ironsheep/terrace-detect/internal/tiles"
	"github.com/ironsheep/terrace-detect/internal/vectorize"
)

// StageError wraps a failure with the stage it occurred in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageResult records one stage of a run.
type StageResult struct {
	Name     string        `json:"name"`
	Skipped  bool          `json:"skipped,omitempty"`
	Artifact string        `json:"artifact,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Result summarizes a completed run.
type Result struct {
	TilesScanned int                `json:"tiles_scanned"`
	TilesKept    int                `json:"tiles_kept"`
	Features     int                `json:"features"`
	TileErrors   []*tiles.TileError `json:"tile_errors,omitempty"`
	Stages       []StageResult      `json:"stages"`
}

// Pipeline runs the detection stages against one configuration.
type Pipeline struct {
	cfg *config.Config
	log *zap.Logger
}

// New builds a pipeline. A nil logger disables logging.
func New(cfg *config.Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, log: log}
}

// Run executes every stage in order. Per-tile failures are collected into
// the result; a failure that leaves a stage without usable output aborts
// the run with a StageError naming the stage.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, &StageError{Stage: "setup", Err: err}
	}

	boundary, err := p.loadBoundary(res)
	if err != nil {
		return nil, err
	}
	kept, err := p.selectTiles(ctx, res, boundary)
	if err != nil {
		return nil, err
	}

	dem, err := p.mosaicStage(ctx, res, kept)
	if err != nil {
		return nil, err
	}
	slope, err := p.rasterStage(ctx, res, "slope", p.cfg.Artifacts.Slope, func() (*raster.Grid, error) {
		return terrain.Slope(dem)
	})
	if err != nil {
		return nil, err
	}
	ruptures, err := p.rasterStage(ctx, res, "ruptures", p.cfg.Artifacts.Ruptures, func() (*raster.Grid, error) {
		return terrain.Ruptures(slope, p.cfg.Rupture)
	})
	if err != nil {
		return nil, err
	}
	heatmap, err := p.rasterStage(ctx, res, "heatmap", p.cfg.Artifacts.Heatmap, func() (*raster.Grid, error) {
		return terrain.Heatmap(ruptures, p.cfg.Heatmap)
	})
	if err != nil {
		return nil, err
	}

	if err := p.vectorStage(ctx, res, boundary, heatmap, dem, slope); err != nil {
		return nil, err
	}
	p.log.Info("run complete",
		zap.Int("tiles_kept", res.TilesKept),
		zap.Int("features", res.Features))
	return res, nil
}

func (p *Pipeline) loadBoundary(res *Result) ([]*geometry.Polygon, error) {
	start := time.Now()
	boundary, err := geojson.ReadBoundary(p.cfg.Boundary, p.cfg.CRS)
	if err != nil {
		return nil, &StageError{Stage: "boundary", Err: err}
	}
	p.log.Info("boundary loaded",
		zap.String("path", p.cfg.Boundary),
		zap.Int("polygons", len(boundary)))
	res.Stages = append(res.Stages, StageResult{Name: "boundary", Duration: time.Since(start)})
	return boundary, nil
}

func (p *Pipeline) selectTiles(ctx context.Context, res *Result, boundary []*geometry.Polygon) ([]tiles.Tile, error) {
	start := time.Now()

	var manifest []string
	if p.cfg.Manifest != "" {
		var err error
		manifest, err = tiles.ReadManifest(p.cfg.Manifest)
		if err != nil {
			return nil, &StageError{Stage: "tiles", Err: err}
		}
	}

	scanned, scanErrs := tiles.ScanDir(p.cfg.TilesDir, p.cfg.CRS, manifest)
	res.TilesScanned = len(scanned)
	res.TileErrors = append(res.TileErrors, scanErrs...)
	for _, te := range scanErrs {
		p.log.Warn("tile skipped at scan", zap.String("tile", te.ID), zap.String("reason", te.Reason))
	}

	fr, err := tiles.Filter(ctx, scanned, boundary, p.cfg.CRS)
	if err != nil {
		return nil, &StageError{Stage: "tiles", Err: err}
	}
	res.TilesKept = len(fr.Kept)
	res.TileErrors = append(res.TileErrors, fr.Errors...)
	for _, te := range fr.Errors {
		p.log.Warn("tile skipped at filter", zap.String("tile", te.ID), zap.String("reason", te.Reason))
	}
	if len(fr.Kept) == 0 {
		return nil, &StageError{Stage: "tiles", Err: fmt.Errorf("no tiles intersect the boundary")}
	}

	p.log.Info("tiles selected",
		zap.Int("scanned", len(scanned)),
		zap.Int("kept", len(fr.Kept)),
		zap.Int("rejected", len(fr.Rejected)))
	res.Stages = append(res.Stages, StageResult{Name: "tiles", Duration: time.Since(start)})
	return fr.Kept, nil
}

func (p *Pipeline) mosaicStage(ctx context.Context, res *Result, kept []tiles.Tile) (*raster.Grid, error) {
	return p.rasterStage(ctx, res, "mosaic", p.cfg.Artifacts.Mosaic, func() (*raster.Grid, error) {
		opts := terrain.MergeOptions{
			TIFF: raster.TIFFOptions{
				ValueScale: p.cfg.TileValueScale,
				NoDataRaw:  p.cfg.TileNoDataRaw,
				CRS:        p.cfg.CRS,
			},
		}
		dem, tileErrs, err := terrain.MergeTiles(ctx, kept, opts)
		res.TileErrors = append(res.TileErrors, tileErrs...)
		for _, te := range tileErrs {
			p.log.Warn("tile skipped at merge", zap.String("tile", te.ID), zap.String("reason", te.Reason))
		}
		return dem, err
	})
}

// rasterStage runs one grid-producing stage with artifact resumption: an
// existing artifact is loaded back instead of recomputed.
func (p *Pipeline) rasterStage(ctx context.Context, res *Result, name, artifact string, compute func() (*raster.Grid, error)) (*raster.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: name, Err: err}
	}
	start := time.Now()
	path := filepath.Join(p.cfg.OutputDir, artifact)

	if _, err := os.Stat(path); err == nil {
		grid, err := raster.ReadASC(path)
		if err != nil {
			return nil, &StageError{Stage: name, Err: fmt.Errorf("loading existing artifact %s: %w", path, err)}
		}
		p.log.Info("stage skipped, artifact exists",
			zap.String("stage", name), zap.String("artifact", path))
		res.Stages = append(res.Stages, StageResult{
			Name: name, Skipped: true, Artifact: path, Duration: time.Since(start),
		})
		return grid, nil
	}

	grid, err := compute()
	if err != nil {
		return nil, &StageError{Stage: name, Err: err}
	}
	if err := raster.WriteASC(grid, path); err != nil {
		return nil, &StageError{Stage: name, Err: err}
	}
	p.writePreview(name, path, grid)

	p.log.Info("stage complete",
		zap.String("stage", name),
		zap.String("artifact", path),
		zap.Int("width", grid.Width),
		zap.Int("height", grid.Height),
		zap.Duration("took", time.Since(start)))
	res.Stages = append(res.Stages, StageResult{Name: name, Artifact: path, Duration: time.Since(start)})
	return grid, nil
}

// vectorStage extracts, enriches and writes the two vector artifacts. It is
// one resumption unit: candidate scores cannot be reconstructed from the
// GeoJSON alone, so it is skipped only when both outputs already exist.
func (p *Pipeline) vectorStage(ctx context.Context, res *Result, boundary []*geometry.Polygon, heatmap, dem, slope *raster.Grid) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: "vectorize", Err: err}
	}
	start := time.Now()
	terracesPath := filepath.Join(p.cfg.OutputDir, p.cfg.Artifacts.Terraces)
	enrichedPath := filepath.Join(p.cfg.OutputDir, p.cfg.Artifacts.Enriched)

	if fileExists(terracesPath) && fileExists(enrichedPath) &&
		fileExists(filepath.Join(p.cfg.OutputDir, p.cfg.Artifacts.Emprise)) {
		p.log.Info("stage skipped, artifacts exist",
			zap.String("stage", "vectorize"), zap.String("artifact", enrichedPath))
		res.Stages = append(res.Stages, StageResult{
			Name: "vectorize", Skipped: true, Artifact: enrichedPath, Duration: time.Since(start),
		})
		return nil
	}

	cands, err := vectorize.Extract(heatmap, p.cfg.Vectorize)
	if err != nil {
		return &StageError{Stage: "vectorize", Err: err}
	}
	p.log.Info("candidates extracted", zap.Int("count", len(cands)))

	feats, err := enrich.Enrich(ctx, cands, dem, slope, p.cfg.Enrich)
	if err != nil {
		return &StageError{Stage: "enrich", Err: err}
	}
	res.Features = len(feats)

	if err := enrich.WriteGeoJSON(terracesPath, feats); err != nil {
		return &StageError{Stage: "enrich", Err: err}
	}
	rep := enrich.BuildReport(feats, boundary, p.cfg.CRS)
	if err := enrich.WriteEnrichedJSON(enrichedPath, rep); err != nil {
		return &StageError{Stage: "enrich", Err: err}
	}
	emprisePath := filepath.Join(p.cfg.OutputDir, p.cfg.Artifacts.Emprise)
	if err := enrich.WriteBoundaryGeoJSON(emprisePath, boundary); err != nil {
		return &StageError{Stage: "enrich", Err: err}
	}

	p.log.Info("stage complete",
		zap.String("stage", "vectorize"),
		zap.Int("candidates", len(cands)),
		zap.Int("features", len(feats)),
		zap.Duration("took", time.Since(start)))
	res.Stages = append(res.Stages, StageResult{
		Name: "vectorize", Artifact: enrichedPath, Duration: time.Since(start),
	})
	return nil
}

func (p *Pipeline) writePreview(name, artifactPath string, grid *raster.Grid) {
	if !p.cfg.Previews {
		return
	}
	opts := render.Options{MaxDim: p.cfg.PreviewMaxDim}
	if name == "ruptures" {
		// Single-cell lines vanish when downscaled; a light blur keeps
		// them visible.
		opts.Blur = 1.5
	}
	path := artifactPath + ".png"
	if err := render.WritePNG(grid, path, opts); err != nil {
		p.log.Warn("preview failed", zap.String("path", path), zap.Error(err))
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
