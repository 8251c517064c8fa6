// Package raster implements georeferenced single-band grid I/O and algebra:
// reading elevation tiles (GeoTIFF-style TIFF with a worldfile, or ESRI
// ASCII grid), writing pipeline artifacts as ESRI ASCII grids with a CRS
// sidecar, resampling, and mosaicking with explicit merge rules.
//
// A Grid stores float64 cells in row-major order with row 0 at the northern
// edge. Georeferencing is a north-up affine transform: square cells, no
// rotation, anchored at the top-left corner. The nodata sentinel marks cells
// with no valid measurement; nodata is propagated, never silently treated as
// zero.
package raster
