package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/gee-wms/internal/core/config"
	"github.com/mohammed-shakir/gee-wms/internal/core/health"
	middleware "github.com/mohammed-shakir/gee-wms/internal/core/middleware"
	"github.com/mohammed-shakir/gee-wms/internal/core/router"
)

// Deps are the request handlers' collaborators.
type Deps struct {
	WMS         router.WMSHandler
	Invalidator router.Invalidator
	// Metrics is mounted at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string
	Checks      map[string]health.Checker
}

// Routes builds the HTTP handler tree.
func Routes(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Checks))
	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, d.Metrics)
	}

	r.Get("/wms", router.HandleWMS(logger, cfg, "/wms", d.WMS))
	r.Get("/{target}/wms", router.HandleWMS(logger, cfg, "/{target}/wms", d.WMS))
	// without a token the admin endpoint is not exposed at all
	if d.Invalidator != nil && cfg.AdminToken != "" {
		r.Post("/admin/registry/invalidate", router.HandleInvalidate(logger, cfg.AdminToken, d.Invalidator))
	}
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Routes(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
