// Package tilecalc picks a pyramid zoom level for a requested map and works
// out which tiles, and which pixels of those tiles, cover it.
//
// Tile-pixel space at zoom z is [0, 256·2^z) on both axes with y growing
// downward (row 0 is the northern edge of the world).
package tilecalc

import (
	"math"

	"github.com/mohammed-shakir/gee-wms/internal/geom"
	"github.com/mohammed-shakir/gee-wms/internal/projection"
)

const (
	TileSize = 256
	MaxZoom  = 23
)

// WorldTiles is the number of tiles along one axis at zoom.
func WorldTiles(zoom int) int { return 1 << zoom }

// CalcZoomLevel returns the smallest zoom whose pyramid has enough pixels to
// render reqLogExtent at reqPxExtent. clamped is true when the unclamped
// answer exceeded MaxZoom.
func CalcZoomLevel(reqLogExtent, totalLogExtent, reqPxExtent geom.Pair) (zoom int, clamped bool) {
	zx := axisZoom(reqLogExtent.X, totalLogExtent.X, reqPxExtent.X)
	zy := axisZoom(reqLogExtent.Y, totalLogExtent.Y, reqPxExtent.Y)
	z := math.Max(zx, zy)
	if z > MaxZoom {
		return MaxZoom, true
	}
	if z < 0 {
		return 0, false
	}
	return int(z), false
}

func axisZoom(reqLog, totalLog, reqPx float64) float64 {
	if reqLog <= 0 || totalLog <= 0 || reqPx <= 0 {
		return 0
	}
	fraction := reqLog / totalLog
	needed := reqPx / fraction
	z := math.Ceil(math.Log2(needed / TileSize))
	if math.IsNaN(z) || math.IsInf(z, -1) {
		return 0
	}
	if math.IsInf(z, 1) {
		return MaxZoom + 1
	}
	return z
}

// pixelTransform maps the projection's internal bounds onto tile-pixel space
// at zoom, flipping y.
func pixelTransform(p projection.Projection, zoom int) geom.Transform {
	total := float64(TileSize * WorldTiles(zoom))
	return geom.NewTransform(p.InternalOuterBounds(), geom.NewRect(0, total, total, 0))
}

// CalcTileRects returns the tile-pixel rect covered by bbox (truncated, in
// normal orientation) and the tile-address rect whose upper bounds are
// exclusive. tileAddr scaled by TileSize always contains tilePixel.
func CalcTileRects(p projection.Projection, bbox geom.Rect, zoom int) (tilePixel, tileAddr geom.Rect) {
	px := pixelTransform(p, zoom).LogRectToPhys(bbox)
	tilePixel = px.Trunc().Normalized()
	tileAddr = geom.Rect{
		X0: math.Floor(tilePixel.X0 / TileSize),
		Y0: math.Floor(tilePixel.Y0 / TileSize),
		X1: math.Ceil(tilePixel.X1 / TileSize),
		Y1: math.Ceil(tilePixel.Y1 / TileSize),
	}
	if tileAddr.X1 <= tileAddr.X0 {
		tileAddr.X1 = tileAddr.X0 + 1
	}
	if tileAddr.Y1 <= tileAddr.Y0 {
		tileAddr.Y1 = tileAddr.Y0 + 1
	}
	return tilePixel, tileAddr
}

// TileLonLatBounds returns the lon/lat extent of tile (col,row) at zoom, row 0
// being the northernmost row. Y0 is the southern edge.
func TileLonLatBounds(p projection.Projection, col, row, zoom int) geom.Rect {
	t := pixelTransform(p, zoom)
	nw := p.Unproject(t.PhysPtToLog(geom.Pair{X: float64(col * TileSize), Y: float64(row * TileSize)}))
	se := p.Unproject(t.PhysPtToLog(geom.Pair{X: float64((col + 1) * TileSize), Y: float64((row + 1) * TileSize)}))
	return geom.Rect{X0: nw.X, Y0: se.Y, X1: se.X, Y1: nw.Y}
}

// ToMercDegrees converts a quadtree grid corner (x, y) at zoom, with y counted
// from the southern edge of the world, to lon/lat on the Mercator grid.
func ToMercDegrees(x, y float64, zoom int) geom.Pair {
	m := projection.Mercator{}
	world := m.InternalOuterBounds()
	n := float64(WorldTiles(zoom))
	grid := geom.NewTransform(geom.NewRect(0, 0, n, n), world)
	return m.Unproject(grid.LogPtToPhys(geom.Pair{X: x, Y: y}))
}
