// Package proj converts between the Lambert-93 projected CRS (EPSG:2154,
// the legal projection for metropolitan France and the native CRS of IGN
// LiDAR HD tiles) and geographic WGS84 coordinates.
//
// The implementation is the standard two-parallel Lambert Conformal Conic
// mapping on the GRS80 ellipsoid. RGF93 and WGS84 agree to centimetre level,
// far below the half-metre cell size of the source data, so no datum shift
// is applied.
package proj

import (
	"fmt"
	"math"
)

// GRS80 ellipsoid.
const (
	semiMajor  = 6378137.0
	flattening = 1 / 298.257222101
)

// Lambert-93 projection parameters (EPSG:2154).
const (
	latStd1      = 44.0 * math.Pi / 180 // first standard parallel
	latStd2      = 49.0 * math.Pi / 180 // second standard parallel
	latOrigin    = 46.5 * math.Pi / 180
	lonOrigin    = 3.0 * math.Pi / 180
	falseEasting = 700000.0
	falseNorth   = 6600000.0
)

// Lambert93CRS is the tag expected on grids and geometries expressed in
// Lambert-93.
const Lambert93CRS = "EPSG:2154"

// WGS84CRS is the tag for geographic longitude/latitude output.
const WGS84CRS = "CRS84"

var (
	ecc2 = flattening * (2 - flattening)
	ecc  = math.Sqrt(ecc2)

	coneN  float64
	coneF  float64
	rhoOrg float64
)

func init() {
	m1 := mFactor(latStd1)
	m2 := mFactor(latStd2)
	t0 := tFactor(latOrigin)
	t1 := tFactor(latStd1)
	t2 := tFactor(latStd2)

	coneN = (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	coneF = m1 / (coneN * math.Pow(t1, coneN))
	rhoOrg = semiMajor * coneF * math.Pow(t0, coneN)
}

func mFactor(lat float64) float64 {
	s := math.Sin(lat)
	return math.Cos(lat) / math.Sqrt(1-ecc2*s*s)
}

func tFactor(lat float64) float64 {
	s := math.Sin(lat)
	return math.Tan(math.Pi/4-lat/2) /
		math.Pow((1-ecc*s)/(1+ecc*s), ecc/2)
}

// Forward projects geographic WGS84 degrees to Lambert-93 meters.
func Forward(lonDeg, latDeg float64) (x, y float64) {
	lon := lonDeg * math.Pi / 180
	lat := latDeg * math.Pi / 180

	rho := semiMajor * coneF * math.Pow(tFactor(lat), coneN)
	theta := coneN * (lon - lonOrigin)
	x = falseEasting + rho*math.Sin(theta)
	y = falseNorth + rhoOrg - rho*math.Cos(theta)
	return x, y
}

// Inverse converts Lambert-93 meters to geographic WGS84 degrees.
func Inverse(x, y float64) (lonDeg, latDeg float64, err error) {
	dx := x - falseEasting
	dy := rhoOrg - (y - falseNorth)

	rho := math.Hypot(dx, dy)
	if coneN < 0 {
		rho = -rho
	}
	if rho == 0 {
		return 0, 0, fmt.Errorf("proj: point (%g, %g) maps to the projection pole", x, y)
	}
	theta := math.Atan2(dx, dy)
	tPrime := math.Pow(rho/(semiMajor*coneF), 1/coneN)

	// Fixed-point iteration for the conformal latitude inverse;
	// converges in a handful of rounds at double precision.
	lat := math.Pi/2 - 2*math.Atan(tPrime)
	for i := 0; i < 10; i++ {
		s := math.Sin(lat)
		next := math.Pi/2 - 2*math.Atan(tPrime*math.Pow((1-ecc*s)/(1+ecc*s), ecc/2))
		if math.Abs(next-lat) < 1e-12 {
			lat = next
			break
		}
		lat = next
	}

	lon := theta/coneN + lonOrigin
	return lon * 180 / math.Pi, lat * 180 / math.Pi, nil
}
