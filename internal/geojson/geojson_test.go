package geojson

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/terrace-detect/internal/geometry"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boundary.geojson")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadBoundary_FeatureCollection(t *testing.T) {
	path := writeTemp(t, `{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {"name": "emprise"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[0,0],[100,0],[100,100],[0,100],[0,0]]]
			}
		}]
	}`)

	polys, err := ReadBoundary(path, "EPSG:2154")
	require.NoError(t, err)
	require.Len(t, polys, 1)
	assert.Equal(t, "EPSG:2154", polys[0].CRS)
	assert.Len(t, polys[0].Exterior, 4, "closing point stripped")
	assert.InDelta(t, 10000, polys[0].Area(), 1e-9)
}

func TestReadBoundary_MultiPolygon(t *testing.T) {
	path := writeTemp(t, `{
		"type": "MultiPolygon",
		"coordinates": [
			[[[0,0],[10,0],[10,10],[0,10],[0,0]]],
			[[[20,20],[30,20],[30,30],[20,30],[20,20]]]
		]
	}`)

	polys, err := ReadBoundary(path, "EPSG:2154")
	require.NoError(t, err)
	assert.Len(t, polys, 2)
}

func TestReadBoundary_BareFeature(t *testing.T) {
	path := writeTemp(t, `{
		"type": "Feature",
		"geometry": {"type": "Polygon", "coordinates": [[[0,0],[5,0],[5,5],[0,5]]]}
	}`)

	polys, err := ReadBoundary(path, "")
	require.NoError(t, err)
	require.Len(t, polys, 1)
	assert.Len(t, polys[0].Exterior, 4, "unclosed ring accepted as-is")
}

func TestReadBoundary_HolePreserved(t *testing.T) {
	path := writeTemp(t, `{
		"type": "Polygon",
		"coordinates": [
			[[0,0],[100,0],[100,100],[0,100],[0,0]],
			[[40,40],[60,40],[60,60],[40,60],[40,40]]
		]
	}`)

	polys, err := ReadBoundary(path, "")
	require.NoError(t, err)
	require.Len(t, polys, 1)
	require.Len(t, polys[0].Holes, 1)
	assert.InDelta(t, 10000-400, polys[0].Area(), 1e-9)
	assert.False(t, polys[0].ContainsPoint(geometry.Point{X: 50, Y: 50}))
}

func TestReadBoundary_Errors(t *testing.T) {
	_, err := ReadBoundary(filepath.Join(t.TempDir(), "absent.geojson"), "")
	assert.Error(t, err)

	_, err = ReadBoundary(writeTemp(t, `{"type": "Point", "coordinates": [1, 2]}`), "")
	assert.Error(t, err)

	_, err = ReadBoundary(writeTemp(t, `{"type": "FeatureCollection", "features": []}`), "")
	assert.Error(t, err, "no polygons")

	bowtie := `{"type": "Polygon", "coordinates": [[[0,0],[10,10],[10,0],[0,10],[0,0]]]}`
	_, err = ReadBoundary(writeTemp(t, bowtie), "")
	assert.ErrorIs(t, err, geometry.ErrSelfIntersecting)
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	poly := &geometry.Polygon{
		CRS: "EPSG:2154",
		Exterior: geometry.Ring{
			{X: 865000.123456, Y: 6363000.654321},
			{X: 865100, Y: 6363000},
			{X: 865100, Y: 6363100},
			{X: 865000, Y: 6363100},
		},
	}
	g, err := PolygonGeometry(poly, 2)
	require.NoError(t, err)

	fc := NewFeatureCollection("terrasses")
	fc.Features = append(fc.Features, &Feature{
		Type:       "Feature",
		ID:         "t-0001",
		Geometry:   g,
		Properties: map[string]any{"classe": "t"},
	})

	path := filepath.Join(t.TempDir(), "out.geojson")
	require.NoError(t, WriteFile(path, fc))

	back, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, back.Features, 1)
	assert.Equal(t, "t-0001", back.Features[0].ID)
	assert.Equal(t, "t", back.Features[0].Properties["classe"])

	polys, err := back.Features[0].Geometry.Polygons("EPSG:2154")
	require.NoError(t, err)
	require.Len(t, polys, 1)
	assert.InDelta(t, 865000.12, polys[0].Exterior[0].X, 1e-9, "rounded to two decimals")
	assert.Len(t, polys[0].Exterior, 4)
}
