package router

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/gee-wms/internal/core/config"
	"github.com/mohammed-shakir/gee-wms/internal/core/observability"
	"github.com/mohammed-shakir/gee-wms/internal/wms"
)

// receives WMS parameters and produces a complete answer
type WMSHandler interface {
	Dispatch(ctx context.Context, p wms.Parameters) wms.Response
}

// HandleWMS adds the server-side parameters to the client's query and writes
// the dispatcher's response. route labels the request metrics.
func HandleWMS(logger *slog.Logger, cfg config.Config, route string, h WMSHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		p := RequestParameters(r, cfg)
		resp := h.Dispatch(r.Context(), p)

		for k, vs := range resp.Header {
			for _, v := range vs {
				sw.Header().Add(k, v)
			}
		}
		sw.WriteHeader(resp.Status)
		if _, err := sw.Write(resp.Body); err != nil {
			logger.DebugContext(r.Context(), "write response", "err", err)
		}
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestParameters builds the WMS parameter set for r: the client's query
// plus the backend server URL, the endpoint the client reached and, when the
// service sits behind a proxy, the public endpoint. A target given as the
// first path segment is used when the query has no TargetPath.
func RequestParameters(r *http.Request, cfg config.Config) wms.Parameters {
	p := wms.NewParameters(r.URL.Query())

	target := strings.TrimSpace(p.Value(wms.ParamTargetPath))
	inPath := false
	if target == "" {
		if t := chi.URLParam(r, "target"); t != "" {
			target = "/" + t
			inPath = true
			p.Set(wms.ParamTargetPath, target)
		}
	}

	scheme := requestScheme(r)
	serverURL := cfg.BackendURL
	if serverURL == "" {
		serverURL = scheme + "://" + r.Host
	}
	p.Set(wms.ParamServerURL, serverURL)
	p.Set(wms.ParamThisEndpoint, endpoint(scheme+"://"+r.Host+r.URL.Path, target, inPath))

	switch {
	case cfg.ProxyEndpoint != "":
		p.Set(wms.ParamProxyEndpoint, endpoint(cfg.ProxyEndpoint, target, inPath))
	case r.Header.Get("X-Forwarded-Host") != "":
		host := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Host"), ",")[0])
		p.Set(wms.ParamProxyEndpoint, endpoint(scheme+"://"+host+r.URL.Path, target, inPath))
	}
	return p
}

// endpoint returns an OnlineResource prefix clients can append parameters to.
func endpoint(base, target string, inPath bool) string {
	if target == "" || inPath {
		return base + "?"
	}
	return base + "?TargetPath=" + url.QueryEscape(target) + "&"
}

func requestScheme(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return strings.ToLower(strings.TrimSpace(strings.Split(p, ",")[0]))
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
