package observability

import (
	"errors"
	"strconv"
	"time"

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
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_resolutions_total",
			Help: "Platform resolutions by outcome (local, memo, remote, unsupported, error).",
		},
		[]string{"outcome"},
	)

	indexOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "index_evaluations_total",
			Help: "Index evaluations by outcome (computed, unknown, missing_bands).",
		},
		[]string{"outcome"},
	)

	warnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operation_warnings_total",
			Help: "Non-fatal warnings attached to operations.",
		},
		[]string{"operation", "code"},
	)

	maskPipelines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mask_pipelines_total",
			Help: "Cloud mask descriptions built, by platform family and method.",
		},
		[]string{"family", "method"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache results by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOpSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Redis operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	invalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Scene-ingest and registry events processed.",
		},
		[]string{"op", "result"},
	)

	invalidatedKeys = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidated_keys_total",
			Help: "Cache keys removed by invalidation events.",
		},
		[]string{"platform"},
	)

	invalidationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invalidation_duration_seconds",
			Help:    "Time spent processing one invalidation event.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"op"},
	)

	kafkaErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Kafka consumer errors by kind.",
		},
		[]string{"kind"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		resolutions, indexOutcomes, warnings, maskPipelines,
		cacheResults, cacheOpSeconds,
		invalidations, invalidatedKeys, invalidationSeconds, kafkaErrors,
	}
}

func init() {
	prometheus.MustRegister(append(collectors(), buildInfo)...)
}

// Init additionally registers the service collectors into reg (for a
// dedicated metrics listener). Already-registered collectors are ignored.
// Build info is left to the registry owner.
func Init(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
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

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func IncResolution(outcome string) {
	resolutions.WithLabelValues(outcome).Inc()
}

func IncIndexOutcome(outcome string) {
	indexOutcomes.WithLabelValues(outcome).Inc()
}

func IncWarning(operation, code string) {
	warnings.WithLabelValues(operation, code).Inc()
}

func IncMaskPipeline(family, method string) {
	maskPipelines.WithLabelValues(family, method).Inc()
}

func IncCacheHit()  { cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheResults.WithLabelValues("miss").Inc() }

func AddCacheHits(n int)   { cacheResults.WithLabelValues("hit").Add(float64(n)) }
func AddCacheMisses(n int) { cacheResults.WithLabelValues("miss").Add(float64(n)) }

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	cacheOpSeconds.WithLabelValues(op, res).Observe(durationSeconds)
}

func ObserveInvalidation(op, platform string, keys int, d time.Duration, err error) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	invalidations.WithLabelValues(op, res).Inc()
	invalidationSeconds.WithLabelValues(op).Observe(d.Seconds())
	if keys > 0 {
		invalidatedKeys.WithLabelValues(platform).Add(float64(keys))
	}
}

func IncKafkaConsumerError(kind string) {
	kafkaErrors.WithLabelValues(kind).Inc()
}
