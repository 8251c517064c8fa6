package geometry

import "math"

// Simplify reduces the vertex count of the polygon with the Douglas-Peucker
// algorithm, applied independently to the exterior ring and each hole.
// Rings that collapse below three vertices are dropped (the whole polygon
// becomes empty if the exterior collapses). A tolerance <= 0 returns an
// unmodified copy.
//
// Each closed ring is split at its two mutually most distant anchor
// vertices and the two open chains are simplified separately, so the result
// stays a closed ring and cannot collapse onto a single chord.
func Simplify(p *Polygon, tolerance float64) *Polygon {
	if p.Empty() {
		return &Polygon{CRS: p.CRS}
	}
	out := &Polygon{CRS: p.CRS}
	out.Exterior = simplifyRing(p.Exterior, tolerance)
	if len(out.Exterior) < 3 {
		return &Polygon{CRS: p.CRS}
	}
	for _, h := range p.Holes {
		if sh := simplifyRing(h, tolerance); len(sh) >= 3 {
			out.Holes = append(out.Holes, sh)
		}
	}
	return out
}

func simplifyRing(r Ring, tolerance float64) Ring {
	if tolerance <= 0 || len(r) <= 4 {
		return append(Ring(nil), r...)
	}

	// Anchor the ring at vertex 0 and the vertex farthest from it.
	far := 0
	best := -1.0
	for i, pt := range r {
		d := sqDist(pt, r[0])
		if d > best {
			best = d
			far = i
		}
	}
	if far == 0 {
		return append(Ring(nil), r...)
	}

	first := douglasPeucker(r[:far+1], tolerance)
	rest := append(Ring{}, r[far:]...)
	rest = append(rest, r[0])
	second := douglasPeucker(rest, tolerance)

	out := make(Ring, 0, len(first)+len(second)-2)
	out = append(out, first...)
	// Drop the shared anchors at both seams.
	if len(second) > 2 {
		out = append(out, second[1:len(second)-1]...)
	}
	return out
}

// douglasPeucker simplifies an open polyline, always keeping both endpoints.
func douglasPeucker(pts Ring, tolerance float64) Ring {
	if len(pts) < 3 {
		return append(Ring(nil), pts...)
	}
	maxDist := 0.0
	idx := 0
	a, b := pts[0], pts[len(pts)-1]
	for i := 1; i < len(pts)-1; i++ {
		d := pointSegDist(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			idx = i
		}
	}
	if maxDist <= tolerance {
		return Ring{a, b}
	}
	left := douglasPeucker(pts[:idx+1], tolerance)
	right := douglasPeucker(pts[idx:], tolerance)
	return append(left[:len(left)-1], right...)
}

func sqDist(a, b Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

// pointSegDist is the distance from p to the closed segment a-b.
func pointSegDist(p, a, b Point) float64 {
	l2 := sqDist(a, b)
	if l2 == 0 {
		return math.Sqrt(sqDist(p, a))
	}
	t := ((p.X-a.X)*(b.X-a.X) + (p.Y-a.Y)*(b.Y-a.Y)) / l2
	t = math.Max(0, math.Min(1, t))
	proj := Point{a.X + t*(b.X-a.X), a.Y + t*(b.Y-a.Y)}
	return math.Sqrt(sqDist(p, proj))
}
