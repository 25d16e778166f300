package router

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/gee-wms/internal/core/observability"
)

type Invalidator interface {
	Invalidate(ctx context.Context, serverURL, targetPath string)
	InvalidateTarget(ctx context.Context, targetPath string) int
}

// HandleInvalidate drops cached layer definitions for a target, either for
// one backend server or for every server that published it. Callers must
// present token as "Authorization: Bearer <token>".
func HandleInvalidate(logger *slog.Logger, token string, inv Invalidator) http.HandlerFunc {
	const route = "/admin/registry/invalidate"
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if !bearerMatches(r, token) {
			logger.WarnContext(r.Context(), "admin request rejected", "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			observability.ObserveHTTP(r.Method, route, http.StatusUnauthorized, time.Since(start).Seconds())
			return
		}
		q := r.URL.Query()
		target := strings.TrimSpace(q.Get("target"))
		if target == "" {
			http.Error(w, "missing required parameter: target", http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, route, http.StatusBadRequest, time.Since(start).Seconds())
			return
		}

		if server := strings.TrimSpace(q.Get("server")); server != "" {
			inv.Invalidate(r.Context(), server, target)
			logger.InfoContext(r.Context(), "registry entry invalidated", "target", target, "server", server)
		} else {
			n := inv.InvalidateTarget(r.Context(), target)
			logger.InfoContext(r.Context(), "registry target invalidated", "target", target, "removed", n)
		}
		observability.IncInvalidation("admin")
		w.WriteHeader(http.StatusNoContent)
		observability.ObserveHTTP(r.Method, route, http.StatusNoContent, time.Since(start).Seconds())
	}
}

func bearerMatches(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) == 1
}
