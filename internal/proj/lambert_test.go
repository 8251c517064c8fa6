package proj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForward_FalseOrigin(t *testing.T) {
	// The projection origin (3°E, 46.5°N) maps exactly onto the false
	// easting/northing by definition.
	x, y := Forward(3.0, 46.5)
	assert.InDelta(t, 700000, x, 1e-3)
	assert.InDelta(t, 6600000, y, 1e-3)
}

func TestRoundTrip(t *testing.T) {
	pts := []struct {
		name     string
		lon, lat float64
	}{
		{"origin", 3.0, 46.5},
		{"mont ventoux", 5.278, 44.174},
		{"west of origin", 0.5, 45.0},
		{"north east", 7.2, 48.9},
	}
	for _, tt := range pts {
		t.Run(tt.name, func(t *testing.T) {
			x, y := Forward(tt.lon, tt.lat)
			lon, lat, err := Inverse(x, y)
			require.NoError(t, err)
			assert.InDelta(t, tt.lon, lon, 1e-9)
			assert.InDelta(t, tt.lat, lat, 1e-9)
		})
	}
}

func TestInverse_PlausibleRange(t *testing.T) {
	// A coordinate inside a Ventoux-area LiDAR tile must land in
	// south-eastern France.
	lon, lat, err := Inverse(865500, 6363500)
	require.NoError(t, err)
	assert.Greater(t, lon, 4.0)
	assert.Less(t, lon, 6.5)
	assert.Greater(t, lat, 43.5)
	assert.Less(t, lat, 45.5)
}
