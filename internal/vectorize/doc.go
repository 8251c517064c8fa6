// Package vectorize turns the continuous terrace-likelihood raster into
// candidate polygons: cells above a cutoff are grouped into 8-connected
// components, each component's outer boundary is traced into a ring in
// world coordinates, and the resulting polygons are simplified and sieved
// by area.
package vectorize
