package geometry

import (
	"errors"
	"fmt"
)

// ErrEmptyPolygon marks a polygon with no usable exterior ring.
var ErrEmptyPolygon = errors.New("geometry: empty polygon")

// ErrSelfIntersecting marks a ring that crosses itself.
var ErrSelfIntersecting = errors.New("geometry: self-intersecting ring")

// Intersects reports whether two polygons share at least one point, using
// exact segment and containment tests rather than a bounding-box
// approximation. Touching boundaries count as intersecting.
//
// Empty or degenerate inputs yield false without error. Inputs with
// conflicting CRS tags yield a *CRSMismatchError.
//
// The test proceeds in three steps, cheapest first:
//
//  1. bounding boxes must overlap, otherwise false;
//  2. any pair of ring segments crossing means true;
//  3. with no boundary crossing, one polygon can still lie entirely inside
//     the other, so a representative vertex of each is tested for
//     containment in the other.
func Intersects(a, b *Polygon) (bool, error) {
	if a.Empty() || b.Empty() {
		return false, nil
	}
	if a.CRS != "" && b.CRS != "" && a.CRS != b.CRS {
		return false, &CRSMismatchError{a.CRS, b.CRS}
	}
	if !a.BBox().Intersects(b.BBox()) {
		return false, nil
	}
	for _, ra := range a.rings() {
		for _, rb := range b.rings() {
			if ringsCross(ra, rb) {
				return true, nil
			}
		}
	}
	if b.ContainsPoint(a.Exterior[0]) {
		return true, nil
	}
	if a.ContainsPoint(b.Exterior[0]) {
		return true, nil
	}
	return false, nil
}

// ContainsPoint reports whether pt lies inside the polygon (exterior minus
// holes). Points exactly on the boundary are treated as inside.
func (p *Polygon) ContainsPoint(pt Point) bool {
	if p.Empty() {
		return false
	}
	if !pointInRing(pt, p.Exterior) {
		return false
	}
	for _, h := range p.Holes {
		if pointStrictlyInRing(pt, h) {
			return false
		}
	}
	return true
}

// Validate checks the polygon is usable as a boundary: a non-empty exterior
// ring with nonzero area and no self-intersections in any ring.
func (p *Polygon) Validate() error {
	if p.Empty() {
		return ErrEmptyPolygon
	}
	if p.Area() <= 0 {
		return fmt.Errorf("geometry: zero-area polygon: %w", ErrEmptyPolygon)
	}
	for i, r := range p.rings() {
		if err := validateRing(r); err != nil {
			return fmt.Errorf("ring %d: %w", i, err)
		}
	}
	return nil
}

func (p *Polygon) rings() []Ring {
	rs := make([]Ring, 0, 1+len(p.Holes))
	rs = append(rs, p.Exterior)
	rs = append(rs, p.Holes...)
	return rs
}

func validateRing(r Ring) error {
	n := len(r)
	if n < 3 {
		return ErrEmptyPolygon
	}
	for i := 0; i < n; i++ {
		a1 := r[i]
		a2 := r[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Adjacent segments always share an endpoint.
			if j == i || (j+1)%n == i || j == (i+1)%n {
				continue
			}
			b1 := r[j]
			b2 := r[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return ErrSelfIntersecting
			}
		}
	}
	return nil
}

func ringsCross(a, b Ring) bool {
	na, nb := len(a), len(b)
	for i := 0; i < na; i++ {
		a1, a2 := a[i], a[(i+1)%na]
		for j := 0; j < nb; j++ {
			if segmentsIntersect(a1, a2, b[j], b[(j+1)%nb]) {
				return true
			}
		}
	}
	return false
}

// cross computes the z component of (b-a) x (c-a). The sign gives the
// orientation of the turn a->b->c.
func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// onSegment reports whether c, known to be collinear with a-b, lies on the
// closed segment a-b.
func onSegment(a, b, c Point) bool {
	return min(a.X, b.X) <= c.X && c.X <= max(a.X, b.X) &&
		min(a.Y, b.Y) <= c.Y && c.Y <= max(a.Y, b.Y)
}

// segmentsIntersect reports whether closed segments p1-p2 and p3-p4 share at
// least one point, including endpoint touches and collinear overlap.
func segmentsIntersect(p1, p2, p3, p4 Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if d2 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, p4) {
		return true
	}
	return false
}

// pointInRing is an even-odd ray cast; boundary points count as inside.
func pointInRing(pt Point, r Ring) bool {
	n := len(r)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := r[i], r[j]
		if cross(a, b, pt) == 0 && onSegment(a, b, pt) {
			return true
		}
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			xi := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < xi {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// pointStrictlyInRing is pointInRing with boundary points counting as
// outside; used for hole tests so a point on a hole edge stays inside the
// polygon.
func pointStrictlyInRing(pt Point, r Ring) bool {
	n := len(r)
	if n < 3 {
		return false
	}
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := r[i], r[j]
		if cross(a, b, pt) == 0 && onSegment(a, b, pt) {
			return false
		}
		j = i
	}
	return pointInRing(pt, r)
}
