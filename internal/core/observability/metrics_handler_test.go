package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)
	Init(reg, true) // second call must not panic

	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/wms", 200, 0.001)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "wms_build_info") || !strings.Contains(body, "http_requests_total") {
		t.Fatalf("metrics payload did not contain expected metric names; got:\n%s", body)
	}
}

func TestCounters_Increment(t *testing.T) {
	before := testutil.ToFloat64(tileFetchTotal.WithLabelValues("blank"))
	IncTileFetch("blank")
	if got := testutil.ToFloat64(tileFetchTotal.WithLabelValues("blank")); got != before+1 {
		t.Fatalf("tile_fetch_total{blank}=%v want %v", got, before+1)
	}

	before = testutil.ToFloat64(wmsExceptions.WithLabelValues("1.3.0", "none"))
	IncWMSException("1.3.0", "")
	if got := testutil.ToFloat64(wmsExceptions.WithLabelValues("1.3.0", "none")); got != before+1 {
		t.Fatalf("empty code should be recorded as none; got %v", got)
	}
}

func TestInit_DisabledIsNoop(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, false)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 0 {
		t.Fatalf("expected empty registry, got %d families", len(mfs))
	}
}
