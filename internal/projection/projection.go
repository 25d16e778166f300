// Package projection converts between geographic degrees and the planar
// units the backend's tile pyramid is laid out in.
package projection

import (
	"strings"

	"github.com/mohammed-shakir/gee-wms/internal/geom"
)

type Projection interface {
	// Name is the backend's name for the projection ("mercator", "flat").
	Name() string
	// CRSNames lists the EPSG codes advertised for layers in this projection.
	CRSNames() []string
	MaxLongitude() float64
	MaxLatitude() float64
	// Project maps (lon, lat) degrees to planar units.
	Project(lonlat geom.Pair) geom.Pair
	// Unproject is the inverse of Project.
	Unproject(xy geom.Pair) geom.Pair
	// InternalOuterBounds is the planar extent covered by the zoom-0 tile.
	InternalOuterBounds() geom.Rect
	// AdvertisedOuterBounds is the extent reported in capabilities documents.
	AdvertisedOuterBounds() geom.Rect
}

// ByName returns the projection for a backend projection name. Anything
// other than "mercator" or "identity" is treated as flat, which is what the
// backend assumes when no projection is given.
func ByName(name string) Projection {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mercator":
		return Mercator{}
	case "identity":
		return Identity{}
	default:
		return Flat{}
	}
}

// HasCRS reports whether crs is one of p's advertised names (case-insensitive).
func HasCRS(p Projection, crs string) bool {
	crs = strings.TrimSpace(crs)
	for _, n := range p.CRSNames() {
		if strings.EqualFold(n, crs) {
			return true
		}
	}
	return false
}
