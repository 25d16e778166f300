// Package observability holds the service's Prometheus collectors and the
// helpers components use to record into them.
package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of backend calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	tileFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_fetch_total",
			Help: "Backend tile fetches by outcome.",
		},
		[]string{"outcome"},
	)

	registryResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_cache_results_total",
			Help: "Layer registry lookups by outcome.",
		},
		[]string{"outcome"},
	)

	registryInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_invalidations_total",
			Help: "Layer registry invalidations by source.",
		},
		[]string{"source"},
	)

	wmsExceptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wms_exceptions_total",
			Help: "WMS service exceptions returned to clients.",
		},
		[]string{"version", "code"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	kafkaConsumerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Invalidation consumer errors by kind.",
		},
		[]string{"kind"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wms_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		tileFetchTotal, registryResults, registryInvalidations, wmsExceptions,
		cacheOpTotal, redisOpDuration, kafkaConsumerErrors, buildInfo,
	}
}

// Init registers the collectors with reg. Registering into several
// registries is allowed; re-registering into the same one is a no-op.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// IncTileFetch records one tile outcome: ok, error, blank or skipped.
func IncTileFetch(outcome string) {
	tileFetchTotal.WithLabelValues(outcome).Inc()
}

// IncRegistry records one registry lookup: hit, shared_hit, miss or error.
func IncRegistry(outcome string) {
	registryResults.WithLabelValues(outcome).Inc()
}

func IncInvalidation(source string) {
	registryInvalidations.WithLabelValues(source).Inc()
}

func IncWMSException(version, code string) {
	if code == "" {
		code = "none"
	}
	wmsExceptions.WithLabelValues(version, code).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpTotal.WithLabelValues(op, result).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func IncKafkaConsumerError(kind string) {
	kafkaConsumerErrors.WithLabelValues(kind).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
