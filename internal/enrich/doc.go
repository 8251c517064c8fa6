// Package enrich computes per-candidate attributes by sampling the
// elevation, slope and heatmap rasters under each polygon: area, perimeter,
// slope and elevation statistics, Gravelius compactness with the
// terrace/wall classification it drives, and the cross-axis elevation drop
// that separates a terrace riser from symmetric rough ground. It also
// writes the two downstream artifacts, the WGS84 GeoJSON layer and the
// enriched JSON report with its summary block.
package enrich
