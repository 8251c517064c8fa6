// Package terrain implements the raster analysis stages of the terrace
// pipeline: mosaicking filtered elevation tiles into one DEM, deriving
// slope magnitude, detecting slope-discontinuity (rupture) cells, and
// smoothing the rupture mask into a continuous terrace-likelihood heatmap.
//
// Every stage reads its whole input grid and writes each output cell
// exactly once, so per-row parallel execution is cell-for-cell identical to
// a single sequential pass; worker count never changes results.
package terrain
