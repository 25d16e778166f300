package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammed-shakir/gee-wms/internal/compositor"
	"github.com/mohammed-shakir/gee-wms/internal/core/config"
	"github.com/mohammed-shakir/gee-wms/internal/core/health"
	"github.com/mohammed-shakir/gee-wms/internal/layers"
	"github.com/mohammed-shakir/gee-wms/internal/wms"
)

const defs = `var geeServerDefs = {
dbType : "gemap",
projection : "mercator",
layers : [ { id : 1002, label : "Imagery", requestType : "ImageryMapsMercator", version : 3 } ]
};`

type backend struct {
	srv       *httptest.Server
	defsCalls atomic.Int64
	tileCalls atomic.Int64
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	tile := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for i := 0; i < len(tile.Pix); i += 4 {
		tile.Pix[i], tile.Pix[i+3] = 0xff, 0xff
	}
	var tileBuf bytes.Buffer
	if err := png.Encode(&tileBuf, tile); err != nil {
		t.Fatalf("encode tile: %v", err)
	}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/merc/query" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("request") {
		case "Json":
			b.defsCalls.Add(1)
			_, _ = io.WriteString(w, defs)
		case "ImageryMapsMercator":
			b.tileCalls.Add(1)
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(tileBuf.Bytes())
		default:
			http.Error(w, "bad request", http.StatusBadRequest)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func newTestServer(t *testing.T, b *backend) (*httptest.Server, *layers.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Defaults()
	cfg.BackendURL = b.srv.URL
	cfg.AdminToken = "s3cret"

	reg := layers.NewRegistry(logger, b.srv.Client(), layers.Options{TTL: time.Minute})
	comp := compositor.New(logger, b.srv.Client(), compositor.Options{Workers: 4})
	d := wms.NewDispatcher(logger, reg, comp, wms.Options{})

	h := Routes(cfg, logger, Deps{
		WMS:         d,
		Invalidator: reg,
		Metrics:     http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "# metrics\n") }),
		Checks:      map[string]health.Checker{},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, reg
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestEndToEnd_CapabilitiesThenMap(t *testing.T) {
	b := newBackend(t)
	srv, _ := newTestServer(t, b)

	resp, body := get(t, srv.URL+"/merc/wms?SERVICE=WMS&VERSION=1.1.1&REQUEST=GetCapabilities")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/xml" {
		t.Fatalf("capabilities status=%d ct=%q body=%s", resp.StatusCode, resp.Header.Get("Content-Type"), body)
	}
	if !strings.Contains(string(body), "<Name>[merc]:1002</Name>") {
		t.Fatalf("layer missing from capabilities:\n%s", body)
	}
	if !strings.Contains(string(body), `xlink:href="`+srv.URL+`/merc/wms?"`) {
		t.Fatalf("online resource should point back at this endpoint:\n%s", body)
	}

	resp, body = get(t, srv.URL+"/wms?SERVICE=WMS&VERSION=1.3.0&REQUEST=GetMap&TargetPath=/merc&LAYERS=[merc]:1002"+
		"&STYLES=&CRS=EPSG:3857&BBOX=-20037508,-20037508,20037508,20037508&WIDTH=200&HEIGHT=100&FORMAT=image/png")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("getmap status=%d ct=%q body=%s", resp.StatusCode, resp.Header.Get("Content-Type"), body)
	}
	img, err := png.Decode(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("decode map: %v", err)
	}
	if bnd := img.Bounds(); bnd.Dx() != 200 || bnd.Dy() != 100 {
		t.Fatalf("map size=%v", bnd)
	}
	r, g, _, _ := img.At(100, 50).RGBA()
	if c := (color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8)}); c.R < 0xf0 || c.G > 0x10 {
		t.Fatalf("map pixel=%v want red", c)
	}
	if n := b.defsCalls.Load(); n != 1 {
		t.Fatalf("serverDefs fetched %d times want 1", n)
	}
	if b.tileCalls.Load() == 0 {
		t.Fatalf("no tiles fetched")
	}
}

func TestEndToEnd_AdminInvalidateForcesRefetch(t *testing.T) {
	b := newBackend(t)
	srv, _ := newTestServer(t, b)
	capURL := srv.URL + "/merc/wms?SERVICE=WMS&REQUEST=GetCapabilities"

	get(t, capURL)
	get(t, capURL)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/admin/registry/invalidate?target=/merc", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("invalidate status=%d", resp.StatusCode)
	}
	get(t, capURL)
	if n := b.defsCalls.Load(); n != 2 {
		t.Fatalf("serverDefs fetched %d times want 2", n)
	}
}

func TestEndToEnd_ProbesAndErrors(t *testing.T) {
	b := newBackend(t)
	srv, _ := newTestServer(t, b)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		if resp, body := get(t, srv.URL+path); resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, resp.StatusCode, body)
		}
	}

	resp, _ := get(t, srv.URL+"/wms?REQUEST=GetCapabilities&TargetPath=merc")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing SERVICE status=%d want 400", resp.StatusCode)
	}

	resp, body := get(t, srv.URL+"/nowhere/wms?SERVICE=WMS&REQUEST=GetCapabilities")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/vnd.ogc.se_xml" {
		t.Fatalf("status=%d ct=%q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), "Unable to read layer definitions for target &#39;/nowhere&#39;") {
		t.Fatalf("body=%s", body)
	}
}

func TestRoutes_AdminNeedsToken(t *testing.T) {
	b := newBackend(t)
	srv, _ := newTestServer(t, b)

	resp, err := http.Post(srv.URL+"/admin/registry/invalidate?target=/merc", "text/plain", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no credentials status=%d want 401", resp.StatusCode)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := layers.NewRegistry(logger, b.srv.Client(), layers.Options{})
	h := Routes(config.Defaults(), logger, Deps{WMS: wms.NewDispatcher(logger, reg, nil, wms.Options{}), Invalidator: reg})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/registry/invalidate?target=/merc", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("admin without token configured: code=%d want 404", rr.Code)
	}
}
