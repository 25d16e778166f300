package wms

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/gee-wms/internal/compositor"
	"github.com/mohammed-shakir/gee-wms/internal/geom"
	"github.com/mohammed-shakir/gee-wms/internal/layers"
	"github.com/mohammed-shakir/gee-wms/internal/projection"
)

// ParseBBox parses "minx,miny,maxx,maxy". With swapAxes the pairs are read
// as (lat, lon) and returned in (lon, lat) order.
func ParseBBox(raw string, swapAxes bool) (geom.Rect, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return geom.Rect{}, newException(CodeNone, "Expected 4 BBOX coordinates")
	}
	var v [4]float64
	for i, s := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return geom.Rect{}, newException(CodeNone, "Invalid BBOX coordinate '%s'", strings.TrimSpace(s))
		}
		v[i] = f
	}
	r := geom.NewRect(v[0], v[1], v[2], v[3])
	if swapAxes {
		r = geom.NewRect(v[1], v[0], v[3], v[2])
	}
	if r.Y1 <= r.Y0 {
		return geom.Rect{}, newException(CodeNone, "BBOX.ymax <= BBOX.ymin")
	}
	if r.X1 <= r.X0 {
		return geom.Rect{}, newException(CodeNone, "BBOX.xmax <= BBOX.xmin")
	}
	return r, nil
}

// parseDimension reads WIDTH or HEIGHT. limit <= 0 disables the upper bound.
func parseDimension(name, raw string, limit int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, newException(CodeNone, "%s must be positive integer", strings.ToUpper(name))
	}
	if limit > 0 && n > limit {
		return 0, newException(CodeNone, "%s must not exceed %d", strings.ToUpper(name), limit)
	}
	return n, nil
}

func missingParam(v Version, p Parameters) string {
	for _, name := range v.RequiredParams() {
		val, ok := p.Get(name)
		if !ok {
			return name
		}
		// STYLES may be present but empty.
		if name != "styles" && strings.TrimSpace(val) == "" {
			return name
		}
	}
	return ""
}

// parseGetMap validates a GetMap request whose required parameters are all
// present against the target's layers and turns it into a render request in
// the layer's planar units.
func (d *Dispatcher) parseGetMap(ctx context.Context, v Version, p Parameters, snap *layers.Snapshot) (compositor.Request, error) {
	names := strings.Split(p.Value("layers"), ",")
	if len(names) > 1 {
		d.logger.WarnContext(ctx, "multiple layers requested, rendering the first only", "layers", p.Value("layers"))
	}
	name := strings.TrimSpace(names[0])
	layer, ok := snap.Lookup(name)
	if !ok {
		return compositor.Request{}, newException(CodeLayerNotDefined, "No layer matching '%s' found", name)
	}

	crs := strings.TrimSpace(p.Value(v.CRSParam()))
	if !projection.HasCRS(layer.Projection, crs) {
		if d.strictCRS {
			return compositor.Request{}, newException(v.InvalidCRSCode(), "%s '%s' not supported by layer '%s'", strings.ToUpper(v.CRSParam()), crs, name)
		}
		d.logger.WarnContext(ctx, "unlisted CRS, rendering in native projection",
			"crs", crs, "layer", name, "projection", layer.Projection.Name())
	}

	bbox, err := ParseBBox(p.Value("bbox"), v.SwapsBBoxAxes(layer.Projection))
	if err != nil {
		return compositor.Request{}, err
	}
	width, err := parseDimension("width", p.Value("width"), d.maxWidth)
	if err != nil {
		return compositor.Request{}, err
	}
	height, err := parseDimension("height", p.Value("height"), d.maxHeight)
	if err != nil {
		return compositor.Request{}, err
	}

	format := strings.TrimSpace(p.Value("format"))
	if !layers.IsKnownFormat(format) {
		return compositor.Request{}, newException(CodeInvalidFormat, "Unsupported format '%s'", format)
	}
	if !layer.Produces(format) {
		return compositor.Request{}, newException(CodeNone, "Layer only produces %s", strings.Join(layer.Formats(), ", "))
	}

	req := compositor.Request{
		Layer:       layer,
		BBox:        bbox,
		Width:       width,
		Height:      height,
		Format:      format,
		Transparent: compositor.ParseTransparent(p.Value("transparent")),
		BGColor:     compositor.ParseBGColor(p.Value("bgcolor")),
	}
	d.logger.DebugContext(ctx, "getmap parsed",
		slog.String("layer", name), slog.String("bbox", bbox.String()),
		slog.Int("width", width), slog.Int("height", height), slog.String("format", format))
	return req, nil
}
