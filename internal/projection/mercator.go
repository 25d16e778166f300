package projection

import (
	"math"

	"github.com/mohammed-shakir/gee-wms/internal/geom"
)

const (
	EarthRadius = 6378137.0
	// MercatorMaxLatitude makes the projected world square.
	MercatorMaxLatitude  = 85.051128779806589
	MercatorMaxLongitude = 180.0
)

// Mercator is spherical ("web") Mercator. Longitudes are not wrapped.
type Mercator struct{}

func (Mercator) Name() string          { return "mercator" }
func (Mercator) CRSNames() []string    { return []string{"EPSG:3857", "EPSG:900913"} }
func (Mercator) MaxLongitude() float64 { return MercatorMaxLongitude }
func (Mercator) MaxLatitude() float64  { return MercatorMaxLatitude }

func (Mercator) Project(lonlat geom.Pair) geom.Pair {
	lat := math.Max(-MercatorMaxLatitude, math.Min(MercatorMaxLatitude, lonlat.Y))
	lonRad := lonlat.X * math.Pi / 180
	latRad := lat * math.Pi / 180
	return geom.Pair{
		X: EarthRadius * lonRad,
		Y: EarthRadius * math.Log(math.Tan(math.Pi/4+latRad/2)),
	}
}

func (Mercator) Unproject(xy geom.Pair) geom.Pair {
	lonRad := xy.X / EarthRadius
	latRad := 2*math.Atan(math.Exp(xy.Y/EarthRadius)) - math.Pi/2
	return geom.Pair{X: lonRad * 180 / math.Pi, Y: latRad * 180 / math.Pi}
}

func (m Mercator) InternalOuterBounds() geom.Rect {
	lo := m.Project(geom.Pair{X: -MercatorMaxLongitude, Y: -MercatorMaxLatitude})
	hi := m.Project(geom.Pair{X: MercatorMaxLongitude, Y: MercatorMaxLatitude})
	return geom.Rect{X0: lo.X, Y0: lo.Y, X1: hi.X, Y1: hi.Y}
}

func (m Mercator) AdvertisedOuterBounds() geom.Rect { return m.InternalOuterBounds() }
