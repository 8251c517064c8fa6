package geometry

import (
	"fmt"
	"math"
)

// Point is a 2D coordinate in a projected CRS.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Ring is an implicitly closed sequence of vertices: the segment from the
// last point back to the first is part of the ring and is never stored.
type Ring []Point

// Polygon is a simple polygon with an exterior ring and zero or more holes.
// The CRS tag identifies the coordinate reference system the coordinates are
// expressed in (e.g. "EPSG:2154"). An empty tag means "unspecified".
type Polygon struct {
	Exterior Ring   `json:"exterior"`
	Holes    []Ring `json:"holes,omitempty"`
	CRS      string `json:"crs,omitempty"`
}

// BBox is an axis-aligned bounding rectangle.
type BBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// CRSMismatchError reports two geometries whose CRS tags disagree.
type CRSMismatchError struct {
	A, B string
}

func (e *CRSMismatchError) Error() string {
	return fmt.Sprintf("geometry: CRS mismatch: %q vs %q", e.A, e.B)
}

// Empty reports whether the polygon has no usable exterior ring.
func (p *Polygon) Empty() bool {
	return p == nil || len(p.Exterior) < 3
}

// BBox returns the bounding box of the exterior ring. The zero BBox is
// returned for empty polygons.
func (p *Polygon) BBox() BBox {
	if p.Empty() {
		return BBox{}
	}
	b := BBox{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, pt := range p.Exterior {
		b.MinX = math.Min(b.MinX, pt.X)
		b.MinY = math.Min(b.MinY, pt.Y)
		b.MaxX = math.Max(b.MaxX, pt.X)
		b.MaxY = math.Max(b.MaxY, pt.Y)
	}
	return b
}

// Intersects reports whether two boxes share at least one point.
// Touching edges count as intersecting.
func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX &&
		b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Contains reports whether the point lies inside or on the box.
func (b BBox) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Polygon converts the box to a rectangular polygon in the given CRS.
func (b BBox) Polygon(crs string) *Polygon {
	return &Polygon{
		Exterior: Ring{
			{b.MinX, b.MinY},
			{b.MaxX, b.MinY},
			{b.MaxX, b.MaxY},
			{b.MinX, b.MaxY},
		},
		CRS: crs,
	}
}

// signedArea computes the shoelace sum of a ring. Positive for
// counter-clockwise winding in a Y-up coordinate system.
func signedArea(r Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	sum := 0.0
	p0 := r[len(r)-1]
	for _, p1 := range r {
		sum += p0.X*p1.Y - p1.X*p0.Y
		p0 = p1
	}
	return sum / 2
}

// ringArea is the absolute shoelace area of a single ring.
func ringArea(r Ring) float64 {
	return math.Abs(signedArea(r))
}

// Area returns the polygon area: exterior minus holes. Degenerate or empty
// polygons yield 0.
func (p *Polygon) Area() float64 {
	if p.Empty() {
		return 0
	}
	a := ringArea(p.Exterior)
	for _, h := range p.Holes {
		a -= ringArea(h)
	}
	if a < 0 {
		return 0
	}
	return a
}

// Perimeter returns the length of the exterior ring.
func (p *Polygon) Perimeter() float64 {
	if p.Empty() {
		return 0
	}
	sum := 0.0
	prev := p.Exterior[len(p.Exterior)-1]
	for _, pt := range p.Exterior {
		sum += math.Hypot(pt.X-prev.X, pt.Y-prev.Y)
		prev = pt
	}
	return sum
}

// Centroid returns the area-weighted centroid of the exterior ring. For
// degenerate rings (zero area) the vertex mean is returned instead so the
// result is still a usable representative point.
func (p *Polygon) Centroid() Point {
	if p.Empty() {
		return Point{}
	}
	a := signedArea(p.Exterior)
	if math.Abs(a) < 1e-12 {
		var c Point
		for _, pt := range p.Exterior {
			c.X += pt.X
			c.Y += pt.Y
		}
		n := float64(len(p.Exterior))
		return Point{c.X / n, c.Y / n}
	}
	var cx, cy float64
	p0 := p.Exterior[len(p.Exterior)-1]
	for _, p1 := range p.Exterior {
		cross := p0.X*p1.Y - p1.X*p0.Y
		cx += (p0.X + p1.X) * cross
		cy += (p0.Y + p1.Y) * cross
		p0 = p1
	}
	return Point{cx / (6 * a), cy / (6 * a)}
}

// Gravelius returns the Gravelius compactness coefficient
// P / (2*sqrt(pi*A)): 1.0 for a disc, larger for elongated shapes.
// Returns 1.0 for zero-area polygons.
func (p *Polygon) Gravelius() float64 {
	a := p.Area()
	if a <= 0 {
		return 1.0
	}
	return p.Perimeter() / (2 * math.Sqrt(math.Pi*a))
}
