// Package wms implements the OGC Web Map Service front end: request
// validation, version negotiation, capabilities documents and service
// exception reports. Map rendering is delegated to a Renderer.
package wms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mohammed-shakir/gee-wms/internal/compositor"
	"github.com/mohammed-shakir/gee-wms/internal/core/observability"
	"github.com/mohammed-shakir/gee-wms/internal/layers"
	"github.com/mohammed-shakir/gee-wms/internal/logger"
)

// LayerSource yields the layers published by a backend target.
type LayerSource interface {
	Layers(ctx context.Context, serverURL, targetPath string) (*layers.Snapshot, error)
}

type Renderer interface {
	Render(ctx context.Context, req compositor.Request) (compositor.Result, error)
}

type Options struct {
	// Title replaces the default service title in capabilities.
	Title string
	// StrictCRS rejects GetMap requests whose CRS the layer does not list.
	StrictCRS bool
	// MaxWidth and MaxHeight bound the requested image size; zero means
	// unbounded.
	MaxWidth  int
	MaxHeight int
}

// Response is a fully rendered WMS answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type Dispatcher struct {
	logger    *slog.Logger
	layers    LayerSource
	renderer  Renderer
	title     string
	strictCRS bool
	maxWidth  int
	maxHeight int
}

func NewDispatcher(logger *slog.Logger, src LayerSource, r Renderer, opts Options) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:    logger,
		layers:    src,
		renderer:  r,
		title:     opts.Title,
		strictCRS: opts.StrictCRS,
		maxWidth:  opts.MaxWidth,
		maxHeight: opts.MaxHeight,
	}
}

// Dispatch answers one WMS request. It never fails: problems are reported
// as plain-text 400s before a version is known and as service exception
// documents after.
func (d *Dispatcher) Dispatch(ctx context.Context, p Parameters) Response {
	request := strings.TrimSpace(p.Value("request"))
	if err := checkService(p, request); err != nil {
		return d.requestError(ctx, err)
	}
	rawVersion := p.Value("version")
	v, ok := ResolveVersion(rawVersion)
	if !ok {
		return d.requestError(ctx, &RequestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("WMS version '%s' not supported", rawVersion),
		})
	}

	ctx = logger.WithWMSRequest(ctx, request)
	ctx = logger.WithTarget(ctx, p.Value(ParamTargetPath))

	var (
		resp Response
		err  error
	)
	switch {
	case strings.EqualFold(request, "GetCapabilities"):
		resp, err = d.getCapabilities(ctx, v, p)
	case strings.EqualFold(request, "GetMap"):
		resp, err = d.getMap(ctx, v, p)
	default:
		err = v.UnsupportedRequest(request)
	}
	if err != nil {
		return d.exception(ctx, v, err)
	}
	return resp
}

func checkService(p Parameters, request string) error {
	svc, ok := p.Get("service")
	svc = strings.TrimSpace(svc)
	if !ok || svc == "" {
		// Some GetMap clients leave SERVICE out.
		if strings.EqualFold(request, "GetMap") {
			return nil
		}
		return &RequestError{Status: http.StatusBadRequest, Message: "Missing SERVICE parameter"}
	}
	if !strings.EqualFold(svc, "WMS") {
		return &RequestError{Status: http.StatusBadRequest, Message: fmt.Sprintf("Service '%s' not supported", svc)}
	}
	return nil
}

func (d *Dispatcher) snapshot(ctx context.Context, p Parameters) (*layers.Snapshot, error) {
	target := strings.TrimSpace(p.Value(ParamTargetPath))
	if target == "" {
		return nil, newException(CodeNone, "Target path is not specified.")
	}
	snap, err := d.layers.Layers(ctx, p.Value(ParamServerURL), target)
	if err != nil {
		if errors.Is(err, layers.ErrNoTarget) {
			return nil, newException(CodeNone, "Target path is not specified.")
		}
		d.logger.ErrorContext(ctx, "layer definitions unavailable", "target", target, "err", err)
		return nil, newException(CodeNone, "Unable to read layer definitions for target '%s'", target)
	}
	return snap, nil
}

func (d *Dispatcher) getCapabilities(ctx context.Context, v Version, p Parameters) (Response, error) {
	snap, err := d.snapshot(ctx, p)
	if err != nil {
		return Response{}, err
	}
	if snap.Len() == 0 {
		return Response{}, newException(CodeNone, "Database type is not supported.")
	}
	online := p.Value(ParamProxyEndpoint)
	if online == "" {
		online = p.Value(ParamThisEndpoint)
	}
	body, err := v.Capabilities(CapabilitiesInput{
		Title:          d.title,
		OnlineResource: online,
		Layers:         snap.Layers(),
	})
	if err != nil {
		return Response{}, err
	}
	d.logger.InfoContext(ctx, "capabilities served", "version", v.String(), "layers", snap.Len())
	return xmlResponse("text/xml", v.CapabilitiesFilename(), body), nil
}

func (d *Dispatcher) getMap(ctx context.Context, v Version, p Parameters) (Response, error) {
	if name := missingParam(v, p); name != "" {
		return Response{}, newException(CodeNone, "Missing required parameter: '%s'", name)
	}
	snap, err := d.snapshot(ctx, p)
	if err != nil {
		return Response{}, err
	}
	req, err := d.parseGetMap(ctx, v, p, snap)
	if err != nil {
		return Response{}, err
	}
	res, err := d.renderer.Render(ctx, req)
	switch {
	case errors.Is(err, compositor.ErrEmptyImage):
		return Response{}, newException(CodeNone, "Requested image has zero width or height")
	case errors.Is(err, compositor.ErrTooManyTiles):
		return Response{}, newException(CodeNone, "Requested image covers too many tiles")
	case err != nil:
		return Response{}, err
	}
	h := http.Header{}
	h.Set("Content-Type", res.ContentType)
	d.logger.InfoContext(ctx, "map rendered",
		"layer", req.Layer.Name, "zoom", res.Zoom, "tiles", res.Tiles, "bytes", len(res.Body))
	return Response{Status: http.StatusOK, Header: h, Body: res.Body}, nil
}

func xmlResponse(contentType, filename string, body []byte) Response {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	return Response{Status: http.StatusOK, Header: h, Body: body}
}

func (d *Dispatcher) exception(ctx context.Context, v Version, err error) Response {
	var se *ServiceException
	if !errors.As(err, &se) {
		d.logger.ErrorContext(ctx, "wms request failed", "err", err)
		se = newException(CodeNone, "Internal error: %v", err)
	} else {
		d.logger.InfoContext(ctx, "service exception", "code", string(se.Code), "message", se.Message)
	}
	observability.IncWMSException(v.String(), string(se.Code))

	body, encErr := v.ExceptionReport(se)
	if encErr != nil {
		d.logger.ErrorContext(ctx, "encode exception report", "err", encErr)
		return d.requestError(ctx, &RequestError{Status: http.StatusInternalServerError, Message: se.Message})
	}
	return xmlResponse(exceptionMIME, v.ExceptionFilename(), body)
}

func (d *Dispatcher) requestError(ctx context.Context, err error) Response {
	var re *RequestError
	if !errors.As(err, &re) {
		re = &RequestError{Status: http.StatusInternalServerError, Message: err.Error()}
	}
	d.logger.InfoContext(ctx, "rejected wms request", "status", re.Status, "message", re.Message)
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return Response{Status: re.Status, Header: h, Body: []byte(re.Message + "\n")}
}
