package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MinimalFileGetsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
tiles_dir: /data/tiles
boundary: /data/emprise.geojson
`))
	require.NoError(t, err)

	assert.Equal(t, "/data/tiles", cfg.TilesDir)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "EPSG:2154", cfg.CRS)
	assert.Equal(t, "MNT_fusionne.asc", cfg.Artifacts.Mosaic)
	assert.Equal(t, "terrasses_enriched.json", cfg.Artifacts.Enriched)
	assert.InDelta(t, 2.0, cfg.Heatmap.Sigma, 1e-9)
	assert.InDelta(t, 0.2, cfg.Vectorize.Cutoff, 1e-9)
	assert.InDelta(t, 5, cfg.Enrich.CompactnessThreshold, 1e-9)
	assert.Equal(t, 10, cfg.Rupture.StatsRadius)
}

func TestLoad_OverridesMergeWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
tiles_dir: /data/tiles
boundary: /data/emprise.geojson
output_dir: /data/out
rupture:
  variance_radius: 2
  stats_radius: 15
  k: 2.0
  min_variance: 1.0
  min_neighbors: 3
heatmap:
  sigma: 3.5
vectorize:
  cutoff: 0.3
  min_area: 40
  max_area: 20000
  simplify_tolerance: 0.5
`))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Rupture.VarianceRadius)
	assert.InDelta(t, 2.0, cfg.Rupture.K, 1e-9)
	assert.InDelta(t, 3.5, cfg.Heatmap.Sigma, 1e-9)
	assert.InDelta(t, 0.3, cfg.Vectorize.Cutoff, 1e-9)
	// Untouched sections keep their defaults.
	assert.Equal(t, "pente.asc", cfg.Artifacts.Slope)
	assert.InDelta(t, 20, cfg.Enrich.SliverRatio, 1e-9)
}

func TestLoad_RequiredFields(t *testing.T) {
	_, err := Load(writeConfig(t, `boundary: /data/emprise.geojson`))
	assert.ErrorContains(t, err, "tiles_dir")

	_, err = Load(writeConfig(t, `tiles_dir: /data/tiles`))
	assert.ErrorContains(t, err, "boundary")
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, `
tiles_dir: /data/tiles
boundary: /data/emprise.geojson
hetmap:
  sigma: 3
`))
	assert.Error(t, err, "typo in a section name must not pass silently")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_EmptyArtifactName(t *testing.T) {
	cfg := Default()
	cfg.TilesDir = "/t"
	cfg.Boundary = "/b"
	cfg.Artifacts.Heatmap = ""
	assert.ErrorContains(t, cfg.Validate(), "artifacts.heatmap")
}
