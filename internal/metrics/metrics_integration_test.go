package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/band-algebra/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer())

	start := time.Now()
	observability.ObserveHTTP("POST", "/v1/indices", 200, time.Since(start).Seconds())
	observability.IncIndexOutcome("computed")
	observability.IncIndexOutcome("unknown")
	observability.IncMaskPipeline("landsat_l2", "bitmask")

	observability.AddCacheHits(3)
	observability.AddCacheMisses(1)
	observability.ObserveCacheOp("get", nil, 0.002)

	observability.ObserveInvalidation("ingest", "COPERNICUS/S2_SR", 4, 3*time.Millisecond, nil)
	observability.IncKafkaConsumerError("decode")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	mustContain := []string{
		`http_request_duration_seconds_bucket`,
		`cache_op_duration_seconds_count`,
		`cache_results_total{outcome="hit"} `,
		`cache_results_total{outcome="miss"} `,
		`invalidated_keys_total{platform="COPERNICUS/S2_SR"} `,
		`kafka_consumer_errors_total{kind="decode"} `,
	}
	for _, s := range mustContain {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "index_evaluations_total", `outcome="computed"`)
	assertHasMetricLine(t, body, "index_evaluations_total", `outcome="unknown"`)
	assertHasMetricLine(t, body, "mask_pipelines_total", `family="landsat_l2"`, `method="bitmask"`)
	assertHasMetricLine(t, body, "invalidation_events_total", `op="ingest"`, `result="ok"`)
	assertHasMetricLine(t, body, "app_build_info", `version="test"`)
}
