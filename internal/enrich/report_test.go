package enrich

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/terrace-detect/internal/geojson"
	"github.com/ironsheep/terrace-detect/internal/geometry"
	"github.com/ironsheep/terrace-detect/internal/proj"
)

func TestBuildReport_SummaryCounts(t *testing.T) {
	boundary := []*geometry.Polygon{rect(0, 0, 100, 100, "EPSG:2154")}
	feats := []TerraceFeature{
		{ID: "terr-a", Class: ClassTerrace, AreaM2: 120, Polygon: rect(40, 80, 10, 5, "EPSG:2154")},
		{ID: "terr-b", Class: ClassTerrace, AreaM2: 80, Polygon: rect(45, 10, 10, 5, "EPSG:2154")},
		{ID: "terr-c", Class: ClassWall, AreaM2: 30, Polygon: rect(85, 45, 10, 5, "EPSG:2154")},
	}

	rep := BuildReport(feats, boundary, "EPSG:2154")
	assert.Equal(t, 3, rep.Summary.Count)
	assert.InDelta(t, 230, rep.Summary.TotalAreaM2, 1e-9)
	assert.Equal(t, 2, rep.Summary.ByClass[ClassTerrace])
	assert.Equal(t, 1, rep.Summary.ByClass[ClassWall])
	assert.Equal(t, 1, rep.Summary.BySector["N"])
	assert.Equal(t, 1, rep.Summary.BySector["S"])
	assert.Equal(t, 1, rep.Summary.BySector["E"])
	assert.NotEmpty(t, rep.Summary.RunID)
	assert.NotEmpty(t, rep.Summary.GeneratedAt)
}

func TestBuildReport_EmptyRunStillWellFormed(t *testing.T) {
	rep := BuildReport(nil, nil, "EPSG:2154")
	assert.Equal(t, 0, rep.Summary.Count)
	assert.NotNil(t, rep.Features)

	path := filepath.Join(t.TempDir(), "enriched.json")
	require.NoError(t, WriteEnrichedJSON(path, rep))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var back Report
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, rep.Summary.RunID, back.Summary.RunID)
	assert.Empty(t, back.Features)
}

func TestWriteEnrichedJSON_RoundTrip(t *testing.T) {
	feats := []TerraceFeature{{
		ID: "terr-0001", Class: ClassTerrace, AreaM2: 150.5, PerimeterM: 62,
		MeanSlopeDeg: 12.3, MaxSlopeDeg: 31.1,
		ElevationMinM: 410, ElevationMaxM: 422,
		HeatmapScore: 0.61, Compactness: 3.2, DeltaElevation: 1.8,
		Polygon: rect(10, 10, 15, 10, "EPSG:2154"),
	}}
	rep := BuildReport(feats, []*geometry.Polygon{rect(0, 0, 50, 50, "EPSG:2154")}, "EPSG:2154")

	path := filepath.Join(t.TempDir(), "enriched.json")
	require.NoError(t, WriteEnrichedJSON(path, rep))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var back Report
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Len(t, back.Features, 1)
	f := back.Features[0]
	assert.Equal(t, "terr-0001", f.ID)
	assert.Equal(t, ClassTerrace, f.Class)
	assert.InDelta(t, 150.5, f.AreaM2, 1e-9)
	assert.InDelta(t, 1.8, f.DeltaElevation, 1e-9)
}

func TestWriteGeoJSON_ReprojectsLambert93(t *testing.T) {
	// A square at the Lambert-93 false origin lands near 3E, 46.5N.
	feats := []TerraceFeature{{
		ID: "terr-0001", Class: ClassTerrace, AreaM2: 10000,
		Polygon: rect(699950, 6599950, 100, 100, proj.Lambert93CRS),
	}}
	path := filepath.Join(t.TempDir(), "terrasses.geojson")
	require.NoError(t, WriteGeoJSON(path, feats))

	fc, err := geojson.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "terr-0001", fc.Features[0].ID)
	assert.Equal(t, ClassTerrace, fc.Features[0].Properties["class"])

	polys, err := fc.Features[0].Geometry.Polygons(proj.WGS84CRS)
	require.NoError(t, err)
	require.Len(t, polys, 1)
	for _, pt := range polys[0].Exterior {
		assert.InDelta(t, 3.0, pt.X, 0.1, "longitude near the central meridian")
		assert.InDelta(t, 46.5, pt.Y, 0.1, "latitude near the origin parallel")
	}
}

func TestWriteBoundaryGeoJSON(t *testing.T) {
	boundary := []*geometry.Polygon{
		rect(699900, 6599900, 200, 200, proj.Lambert93CRS),
	}
	path := filepath.Join(t.TempDir(), "emprise.geojson")
	require.NoError(t, WriteBoundaryGeoJSON(path, boundary))

	fc, err := geojson.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	polys, err := fc.Features[0].Geometry.Polygons(proj.WGS84CRS)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, polys[0].Exterior[0].X, 0.1)
	assert.InDelta(t, 46.5, polys[0].Exterior[0].Y, 0.1)
}

func TestWriteGeoJSON_UnknownCRSPassedThrough(t *testing.T) {
	feats := []TerraceFeature{{
		ID: "terr-0002", Class: ClassWall, AreaM2: 25,
		Polygon: rect(10, 10, 5, 5, ""),
	}}
	path := filepath.Join(t.TempDir(), "out.geojson")
	require.NoError(t, WriteGeoJSON(path, feats))

	fc, err := geojson.ReadFile(path)
	require.NoError(t, err)
	polys, err := fc.Features[0].Geometry.Polygons("")
	require.NoError(t, err)
	assert.InDelta(t, 10, polys[0].Exterior[0].X, 1e-9)
}
