// Package config loads the pipeline configuration from YAML. Every knob has
// a default tuned for IGN LiDAR HD input, so a minimal file only names the
// tile directory, the study boundary and the output directory.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/terrace-detect/internal/enrich"
	"github.com/ironsheep/terrace-detect/internal/proj"
	"github.com/ironsheep/terrace-detect/internal/terrain"
	"github.com/ironsheep/terrace-detect/internal/vectorize"
)

// Artifacts names the files each stage writes under the output directory.
// A stage whose artifact already exists is skipped on re-runs.
type Artifacts struct {
	Mosaic   string `yaml:"mosaic"`
	Slope    string `yaml:"slope"`
	Ruptures string `yaml:"ruptures"`
	Heatmap  string `yaml:"heatmap"`
	Terraces string `yaml:"terraces"`
	Enriched string `yaml:"enriched"`
	Emprise  string `yaml:"emprise"`
}

// Config is the whole pipeline configuration.
type Config struct {
	// TilesDir holds the LiDAR tiles; Boundary is the study-area polygon
	// used to filter them.
	TilesDir string `yaml:"tiles_dir"`
	Boundary string `yaml:"boundary"`

	// Manifest optionally restricts the run to the tile names it lists.
	Manifest string `yaml:"manifest"`

	OutputDir string `yaml:"output_dir"`

	// CRS tags tiles and outputs; tile math assumes a metric projected
	// system.
	CRS string `yaml:"crs"`

	// TileValueScale converts raw TIFF sample values to meters, for tiles
	// encoded as scaled integers. 0 means no scaling.
	TileValueScale float64 `yaml:"tile_value_scale"`

	// TileNoDataRaw marks a raw sample value as nodata on decode.
	TileNoDataRaw *float64 `yaml:"tile_nodata_raw"`

	// Previews adds a PNG next to each raster artifact.
	Previews      bool `yaml:"previews"`
	PreviewMaxDim int  `yaml:"preview_max_dim"`

	Artifacts Artifacts             `yaml:"artifacts"`
	Rupture   terrain.RuptureConfig `yaml:"rupture"`
	Heatmap   terrain.HeatmapConfig `yaml:"heatmap"`
	Vectorize vectorize.Config      `yaml:"vectorize"`
	Enrich    enrich.Config         `yaml:"enrich"`
}

// Default returns the configuration used when a field is absent from the
// file.
func Default() *Config {
	return &Config{
		OutputDir:     "out",
		CRS:           proj.Lambert93CRS,
		PreviewMaxDim: 2000,
		Artifacts: Artifacts{
			Mosaic:   "MNT_fusionne.asc",
			Slope:    "pente.asc",
			Ruptures: "ruptures_pente.asc",
			Heatmap:  "terrasses_heatmap.asc",
			Terraces: "terrasses.geojson",
			Enriched: "terrasses_enriched.json",
			Emprise:  "emprise.geojson",
		},
		Rupture:   terrain.DefaultRuptureConfig(),
		Heatmap:   terrain.DefaultHeatmapConfig(),
		Vectorize: vectorize.DefaultConfig(),
		Enrich:    enrich.DefaultConfig(),
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields the pipeline cannot default.
func (c *Config) Validate() error {
	if c.TilesDir == "" {
		return fmt.Errorf("tiles_dir is required")
	}
	if c.Boundary == "" {
		return fmt.Errorf("boundary is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.CRS == "" {
		return fmt.Errorf("crs is required")
	}
	if c.TileValueScale < 0 {
		return fmt.Errorf("tile_value_scale must not be negative")
	}
	if c.PreviewMaxDim < 0 {
		return fmt.Errorf("preview_max_dim must not be negative")
	}
	for name, v := range map[string]string{
		"artifacts.mosaic":   c.Artifacts.Mosaic,
		"artifacts.slope":    c.Artifacts.Slope,
		"artifacts.ruptures": c.Artifacts.Ruptures,
		"artifacts.heatmap":  c.Artifacts.Heatmap,
		"artifacts.terraces": c.Artifacts.Terraces,
		"artifacts.enriched": c.Artifacts.Enriched,
		"artifacts.emprise":  c.Artifacts.Emprise,
	} {
		if v == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	return nil
}
