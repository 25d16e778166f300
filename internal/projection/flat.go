package projection

import "github.com/mohammed-shakir/gee-wms/internal/geom"

// Flat is plate carrée: planar units are degrees.
//
// The backend's flat pyramid is square, so the zoom-0 tile spans ±180 on both
// axes and only the middle half vertically holds the world. Capabilities
// advertise the real ±90 latitude range.
type Flat struct{}

func (Flat) Name() string          { return "flat" }
func (Flat) CRSNames() []string    { return []string{"EPSG:4326"} }
func (Flat) MaxLongitude() float64 { return 180 }
func (Flat) MaxLatitude() float64  { return 90 }

func (Flat) Project(lonlat geom.Pair) geom.Pair { return lonlat }
func (Flat) Unproject(xy geom.Pair) geom.Pair   { return xy }

func (Flat) InternalOuterBounds() geom.Rect   { return geom.NewRect(-180, -180, 180, 180) }
func (Flat) AdvertisedOuterBounds() geom.Rect { return geom.NewRect(-180, -90, 180, 90) }

// Identity passes coordinates through untouched; its planar space is the
// zoom-0 tile's pixel space.
type Identity struct{}

func (Identity) Name() string          { return "identity" }
func (Identity) CRSNames() []string    { return []string{"CRS:1"} }
func (Identity) MaxLongitude() float64 { return 256 }
func (Identity) MaxLatitude() float64  { return 256 }

func (Identity) Project(p geom.Pair) geom.Pair   { return p }
func (Identity) Unproject(p geom.Pair) geom.Pair { return p }

func (Identity) InternalOuterBounds() geom.Rect   { return geom.NewRect(0, 0, 256, 256) }
func (Identity) AdvertisedOuterBounds() geom.Rect { return geom.NewRect(0, 0, 256, 256) }
