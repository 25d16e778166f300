// Package compositor renders a map image for an arbitrary bounding box by
// fetching the covering pyramid tiles, stitching them, cropping to the box and
// resampling to the requested size.
package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/gee-wms/internal/core/observability"
	"github.com/mohammed-shakir/gee-wms/internal/geom"
	"github.com/mohammed-shakir/gee-wms/internal/layers"
	"github.com/mohammed-shakir/gee-wms/internal/tilecalc"
)

var (
	ErrEmptyImage   = errors.New("cannot render an image with zero width or height")
	ErrTooManyTiles = errors.New("request spans too many tiles")
)

const maxTileBytes = 8 << 20

type Options struct {
	Workers     int
	TileTimeout time.Duration
	MaxTiles    int
}

type Compositor struct {
	logger *slog.Logger
	client *http.Client
	opts   Options
}

func New(logger *slog.Logger, client *http.Client, opts Options) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Workers <= 0 {
		opts.Workers = 16
	}
	if opts.TileTimeout <= 0 {
		opts.TileTimeout = 10 * time.Second
	}
	if opts.MaxTiles <= 0 {
		opts.MaxTiles = 1024
	}
	return &Compositor{logger: logger, client: client, opts: opts}
}

type Request struct {
	Layer *layers.Layer
	// BBox is in the layer projection's planar units.
	BBox        geom.Rect
	Width       int
	Height      int
	Format      string
	Transparent bool
	BGColor     color.RGBA
}

type Result struct {
	ContentType string
	Body        []byte
	Zoom        int
	Tiles       int
}

// Render composes the image and encodes it in req.Format.
func (c *Compositor) Render(ctx context.Context, req Request) (Result, error) {
	img, zoom, tiles, err := c.Compose(ctx, req)
	if err != nil {
		return Result{}, err
	}
	var buf bytes.Buffer
	switch req.Format {
	case layers.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		err = enc.Encode(&buf, img)
	case layers.FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	default:
		return Result{}, fmt.Errorf("unsupported format %q", req.Format)
	}
	if err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", req.Format, err)
	}
	return Result{ContentType: req.Format, Body: buf.Bytes(), Zoom: zoom, Tiles: tiles}, nil
}

type tileJob struct {
	slot image.Rectangle
	url  string
	img  image.Image
}

// Compose returns the unencoded image plus the zoom and number of tile slots
// it was built from.
func (c *Compositor) Compose(ctx context.Context, req Request) (*image.RGBA, int, int, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, 0, 0, ErrEmptyImage
	}
	layer := req.Layer.WithImageFormat(req.Format)
	proj := layer.Projection

	zoom, clamped := tilecalc.CalcZoomLevel(
		req.BBox.Extent(),
		proj.InternalOuterBounds().Extent(),
		geom.Pair{X: float64(req.Width), Y: float64(req.Height)},
	)
	if clamped {
		c.logger.WarnContext(ctx, "zoom level clamped", "zoom", zoom, "layer", layer.Name)
	}
	px, addr := tilecalc.CalcTileRects(proj, req.BBox, zoom)

	// Counted in float64: a huge bbox overflows int.
	if n := addr.Width() * addr.Height(); math.IsNaN(n) || n > float64(c.opts.MaxTiles) {
		return nil, zoom, 0, fmt.Errorf("%w: %.0f > %d", ErrTooManyTiles, n, c.opts.MaxTiles)
	}
	world := tilecalc.WorldTiles(zoom)
	if addr.Y1 <= 0 || addr.Y0 >= float64(world) {
		observability.IncTileFetch("skipped")
		dst := image.NewRGBA(image.Rect(0, 0, req.Width, req.Height))
		fillBackground(dst, req)
		return dst, zoom, 0, nil
	}
	// Columns wrap, so whole world widths can be dropped to keep addresses
	// within int range.
	if shift := math.Floor(addr.X0/float64(world)) * float64(world); shift != 0 {
		addr = addr.Offset(geom.Pair{X: -shift})
		px = px.Offset(geom.Pair{X: -shift * tilecalc.TileSize})
	}

	cols, rows := int(addr.Width()), int(addr.Height())
	canvas := image.NewRGBA(image.Rect(0, 0, cols*tilecalc.TileSize, rows*tilecalc.TileSize))
	op := draw.Over
	if req.Format == layers.FormatPNG && req.Transparent {
		op = draw.Src
	}
	fillBackground(canvas, req)

	x0, y0 := int(addr.X0), int(addr.Y0)
	var jobs []*tileJob
	for j := range rows {
		row := y0 + j
		if row < 0 || row >= world {
			observability.IncTileFetch("skipped")
			continue
		}
		for i := range cols {
			col := ((x0+i)%world + world) % world
			slot := image.Rect(i*tilecalc.TileSize, j*tilecalc.TileSize, (i+1)*tilecalc.TileSize, (j+1)*tilecalc.TileSize)
			jobs = append(jobs, &tileJob{slot: slot, url: layer.TileURL(col, row, zoom)})
		}
	}

	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := c.fetchTile(ctx, job.url)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				observability.IncTileFetch("blank")
				c.logger.WarnContext(ctx, "tile fetch failed, leaving blank", "url", job.url, "err", err)
				return nil
			}
			observability.IncTileFetch("ok")
			job.img = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, zoom, cols * rows, fmt.Errorf("compose %s: %w", layer.Name, err)
	}

	for _, job := range jobs {
		if job.img == nil {
			continue
		}
		b := job.img.Bounds()
		if b.Dx() == tilecalc.TileSize && b.Dy() == tilecalc.TileSize {
			draw.Draw(canvas, job.slot, job.img, b.Min, op)
			continue
		}
		// 1x1 tiles stand for a uniformly coloured tile
		xdraw.NearestNeighbor.Scale(canvas, job.slot, job.img, b, op, nil)
	}

	crop := cropRect(px, addr)
	dst := image.NewRGBA(image.Rect(0, 0, req.Width, req.Height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), canvas, crop.Intersect(canvas.Bounds()), draw.Src, nil)

	c.logger.DebugContext(ctx, "map composed",
		"layer", layer.Name, "zoom", zoom, "tiles", len(jobs),
		"tile_rect", addr.String(), "pixel_rect", px.String())
	return dst, zoom, cols * rows, nil
}

// fillBackground paints BGCOLOR unless the request asked for a transparent
// PNG, in which case img is left fully transparent.
func fillBackground(img *image.RGBA, req Request) {
	if req.Format == layers.FormatPNG && req.Transparent {
		return
	}
	bg := req.BGColor
	bg.A = 0xff
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
}

// cropRect locates the tile-pixel rect inside the stitched canvas.
func cropRect(px, addr geom.Rect) image.Rectangle {
	offX := int(px.X0) - int(addr.X0)*tilecalc.TileSize
	offY := int(px.Y0) - int(addr.Y0)*tilecalc.TileSize
	w := max(int(px.Width()), 1)
	h := max(int(px.Height()), 1)
	return image.Rect(offX, offY, offX+w, offY+h)
}

func (c *Compositor) fetchTile(ctx context.Context, url string) (image.Image, error) {
	tctx, cancel := context.WithTimeout(ctx, c.opts.TileTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(tctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build tile request: %w", err)
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	observability.ObserveUpstreamLatency("tile", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetch tile: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch tile: status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}
	return img, nil
}
