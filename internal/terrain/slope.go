package terrain

import (
	"fmt"
	"math"

	"github.com/ironsheep/terrace-detect/internal/raster"
)

// Slope derives a slope-magnitude raster, in degrees, from an elevation
// grid using Horn's 3x3 kernel:
//
//	a b c        dz/dx = ((c + 2f + i) - (a + 2d + g)) / (8*cell)
//	d e f        dz/dy = ((g + 2h + i) - (a + 2b + c)) / (8*cell)
//	g h i        slope = atan(sqrt((dz/dx)^2 + (dz/dy)^2))
//
// Border cells have no full neighbourhood and any cell with a nodata
// neighbour has an undefined gradient; both are set to nodata rather than
// computed from an incomplete kernel. The output shares the input's extent,
// resolution and nodata sentinel.
func Slope(dem *raster.Grid) (*raster.Grid, error) {
	if dem == nil || dem.Width == 0 || dem.Height == 0 {
		return nil, fmt.Errorf("terrain: empty elevation grid")
	}
	if dem.CellSize <= 0 {
		return nil, fmt.Errorf("terrain: elevation grid has cell size %g", dem.CellSize)
	}

	out := raster.New(dem.Width, dem.Height, dem.OriginX, dem.OriginY, dem.CellSize, dem.CRS)
	out.NoData = dem.NoData
	out.Fill(out.NoData)

	denom := 8 * dem.CellSize
	err := forEachRowBand(dem.Height, func(r0, r1 int) error {
		var k [3][3]float64
		for row := r0; row < r1; row++ {
			if row == 0 || row == dem.Height-1 {
				continue
			}
			for col := 1; col < dem.Width-1; col++ {
				complete := true
				for dr := -1; dr <= 1 && complete; dr++ {
					for dc := -1; dc <= 1; dc++ {
						v := dem.At(row+dr, col+dc)
						if dem.IsNoData(v) {
							complete = false
							break
						}
						k[dr+1][dc+1] = v
					}
				}
				if !complete {
					continue
				}
				dzdx := ((k[0][2] + 2*k[1][2] + k[2][2]) - (k[0][0] + 2*k[1][0] + k[2][0])) / denom
				dzdy := ((k[2][0] + 2*k[2][1] + k[2][2]) - (k[0][0] + 2*k[0][1] + k[0][2])) / denom
				out.Set(row, col, math.Atan(math.Hypot(dzdx, dzdy))*180/math.Pi)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
