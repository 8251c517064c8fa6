package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/terrace-detect/internal/config"
	"github.com/ironsheep/terrace-detect/internal/geojson"
	"github.com/ironsheep/terrace-detect/internal/pipeline"
	"github.com/ironsheep/terrace-detect/internal/raster"
	"github.com/ironsheep/terrace-detect/internal/render"
	"github.com/ironsheep/terrace-detect/internal/tiles"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "terrace-detect",
		Short:         "Detect agricultural terraces in LiDAR HD elevation tiles",
		SilenceUsage:  true,
		SilenceErrors: false,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRunCmd(&verbose),
		newFilterCmd(&verbose),
		newPreviewCmd(),
		newVersionCmd(),
	)
	return root
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func newRunCmd(verbose *bool) *cobra.Command {
	var configPath, outputDir string
	var previews bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full detection pipeline",
		Long: `Run every stage: tile filtering, DEM mosaic, slope, rupture
detection, heatmap, vectorization and enrichment. Stages whose artifact
already exists in the output directory are skipped, so an interrupted run
resumes where it stopped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(*verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if previews {
				cfg.Previews = true
			}

			res, err := pipeline.New(cfg, log).Run(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "pipeline configuration file")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "override the configured output directory")
	cmd.Flags().BoolVar(&previews, "previews", false, "write a PNG preview next to each raster artifact")
	return cmd
}

func newFilterCmd(verbose *bool) *cobra.Command {
	var configPath, dest string

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Select the tiles intersecting the study boundary",
		Long: `Scan the tile directory, test each tile footprint against the
boundary and print the verdicts as JSON. With --dest the kept tiles and
their sidecars are moved there, the layout the pipeline's tile stage
expects when working from a pre-filtered directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(*verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			boundary, err := geojson.ReadBoundary(cfg.Boundary, cfg.CRS)
			if err != nil {
				return err
			}

			var manifest []string
			if cfg.Manifest != "" {
				if manifest, err = tiles.ReadManifest(cfg.Manifest); err != nil {
					return err
				}
			}
			scanned, scanErrs := tiles.ScanDir(cfg.TilesDir, cfg.CRS, manifest)
			fr, err := tiles.Filter(cmd.Context(), scanned, boundary, cfg.CRS)
			if err != nil {
				return err
			}
			fr.Errors = append(scanErrs, fr.Errors...)

			if dest != "" {
				moved, moveErrs := tiles.Relocate(fr.Kept, dest)
				fr.Kept = moved
				fr.Errors = append(fr.Errors, moveErrs...)
				log.Info("tiles relocated", zap.Int("count", len(moved)), zap.String("dest", dest))
			}
			log.Info("filter complete",
				zap.Int("kept", len(fr.Kept)),
				zap.Int("rejected", len(fr.Rejected)),
				zap.Int("errors", len(fr.Errors)))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(fr)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "pipeline configuration file")
	cmd.Flags().StringVar(&dest, "dest", "", "move kept tiles into this directory")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var out string
	var maxDim int
	var blurRadius float64

	cmd := &cobra.Command{
		Use:   "preview <raster.asc>",
		Short: "Render a raster artifact to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grid, err := raster.ReadASC(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = args[0] + ".png"
			}
			opts := render.Options{MaxDim: maxDim, Blur: blurRadius}
			if err := render.WritePNG(grid, out, opts); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output PNG path (default <input>.png)")
	cmd.Flags().IntVar(&maxDim, "max-dim", 2000, "bound the longer PNG edge in pixels")
	cmd.Flags().Float64Var(&blurRadius, "blur", 0, "Gaussian blur radius in pixels")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "terrace-detect %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Build time: %s\n", BuildTime)
			fmt.Fprintf(cmd.OutOrStdout(), "  Git commit: %s\n", GitCommit)
		},
	}
}
