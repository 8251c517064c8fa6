package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(minX, minY, size float64) *Polygon {
	return &Polygon{
		Exterior: Ring{
			{minX, minY},
			{minX + size, minY},
			{minX + size, minY + size},
			{minX, minY + size},
		},
	}
}

func TestArea(t *testing.T) {
	tests := []struct {
		name string
		p    *Polygon
		want float64
	}{
		{"unit square", square(0, 0, 1), 1},
		{"10x10 square", square(5, 5, 10), 100},
		{"empty", &Polygon{}, 0},
		{"degenerate two points", &Polygon{Exterior: Ring{{0, 0}, {1, 1}}}, 0},
		{
			"square with hole",
			&Polygon{
				Exterior: square(0, 0, 10).Exterior,
				Holes:    []Ring{square(2, 2, 2).Exterior},
			},
			96,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.p.Area(), 1e-9)
		})
	}
}

func TestPerimeterAndCentroid(t *testing.T) {
	p := square(2, 2, 4)
	assert.InDelta(t, 16, p.Perimeter(), 1e-9)
	c := p.Centroid()
	assert.InDelta(t, 4, c.X, 1e-9)
	assert.InDelta(t, 4, c.Y, 1e-9)
}

func TestGravelius(t *testing.T) {
	// A square has gc = 4s / (2*sqrt(pi*s^2)) = 2/sqrt(pi) ~ 1.128.
	assert.InDelta(t, 2/math.Sqrt(math.Pi), square(0, 0, 7).Gravelius(), 1e-9)
	// Elongated rectangle scores higher.
	rect := &Polygon{Exterior: Ring{{0, 0}, {100, 0}, {100, 2}, {0, 2}}}
	assert.Greater(t, rect.Gravelius(), 3.0)
}

func TestIntersects(t *testing.T) {
	boundary := square(0, 0, 100)

	tests := []struct {
		name string
		tile *Polygon
		want bool
	}{
		{"fully inside", square(10, 10, 20), true},
		{"fully outside", square(200, 200, 20), false},
		{"straddling edge", square(90, 40, 20), true},
		{"touching corner", square(100, 100, 20), true},
		{"touching edge only", square(100, 40, 20), true},
		{"containing the boundary", square(-50, -50, 300), true},
		{"empty tile", &Polygon{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Intersects(tt.tile, boundary)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			// The predicate is symmetric.
			sym, err := Intersects(boundary, tt.tile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sym)
		})
	}
}

func TestIntersects_ExactBeatsBBox(t *testing.T) {
	// A thin diagonal boundary whose bbox overlaps the tile while the
	// polygon itself does not.
	diag := &Polygon{Exterior: Ring{{0, 0}, {100, 100}, {99, 100}}}
	tile := square(60, 0, 20)
	assert.True(t, diag.BBox().Intersects(tile.BBox()))
	got, err := Intersects(tile, diag)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestIntersects_CRSMismatch(t *testing.T) {
	a := square(0, 0, 10)
	a.CRS = "EPSG:2154"
	b := square(0, 0, 10)
	b.CRS = "EPSG:4326"
	_, err := Intersects(a, b)
	var mismatch *CRSMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestContainsPoint(t *testing.T) {
	p := &Polygon{
		Exterior: square(0, 0, 10).Exterior,
		Holes:    []Ring{square(4, 4, 2).Exterior},
	}
	assert.True(t, p.ContainsPoint(Point{1, 1}))
	assert.True(t, p.ContainsPoint(Point{0, 5}), "boundary counts as inside")
	assert.False(t, p.ContainsPoint(Point{5, 5}), "inside the hole")
	assert.False(t, p.ContainsPoint(Point{11, 5}))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, square(0, 0, 10).Validate())

	assert.ErrorIs(t, (&Polygon{}).Validate(), ErrEmptyPolygon)

	bowtie := &Polygon{Exterior: Ring{{0, 0}, {10, 10}, {10, 0}, {0, 10}}}
	assert.ErrorIs(t, bowtie.Validate(), ErrSelfIntersecting)
}

func TestSimplify(t *testing.T) {
	// A square with redundant midpoints on every edge collapses back to
	// four corners.
	p := &Polygon{Exterior: Ring{
		{0, 0}, {5, 0.001}, {10, 0},
		{10, 5}, {10, 10},
		{5, 10}, {0, 10},
		{0, 5},
	}}
	s := Simplify(p, 0.5)
	require.False(t, s.Empty())
	assert.Less(t, len(s.Exterior), len(p.Exterior))
	assert.InDelta(t, p.Area(), s.Area(), 1.0)
	assert.NoError(t, s.Validate())
}

func TestSimplify_ZeroTolerance(t *testing.T) {
	p := square(0, 0, 10)
	s := Simplify(p, 0)
	assert.Equal(t, p.Exterior, s.Exterior)
}

func TestSimplify_Degenerate(t *testing.T) {
	s := Simplify(&Polygon{}, 1)
	assert.True(t, s.Empty())
	assert.Zero(t, s.Area())
}

func TestBBoxPolygon(t *testing.T) {
	b := BBox{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}
	p := b.Polygon("EPSG:2154")
	assert.InDelta(t, 4, p.Area(), 1e-9)
	assert.Equal(t, "EPSG:2154", p.CRS)
	assert.Equal(t, b, p.BBox())
}
