// Package tiles inventories raw LiDAR elevation tiles and filters them
// against a protected-area boundary polygon using exact geometric
// intersection. Kept tiles can optionally be relocated to a working
// directory; per-tile failures are isolated and reported in aggregate so a
// single bad tile never aborts the batch.
package tiles
