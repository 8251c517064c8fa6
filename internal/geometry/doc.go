// Package geometry provides exact 2D planar geometry for polygons and
// bounding boxes: intersection predicates, area, centroid, perimeter,
// Douglas-Peucker simplification and validity checks.
//
// All operations assume projected (planar) coordinates. Inputs that carry a
// CRS tag must agree on it; mixing CRSs is a configuration error reported to
// the caller, never resolved by silent reprojection. Reprojection is an
// explicit step (see the proj package).
package geometry
