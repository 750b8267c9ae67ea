package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsHandler_ExposesDomainSeries(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("POST", "/v1/indices", 200, 0.001)
	IncResolution("local")
	IncWarning("indices", "unknown_index")
	ObserveInvalidation("reprocess", "LANDSAT/LC09/C02/T1_L2", 2, time.Millisecond, errors.New("redis down"))

	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`app_build_info{version="test"} 1`,
		`http_requests_total{method="POST",route="/v1/indices",status="200"}`,
		`platform_resolutions_total{outcome="local"}`,
		`operation_warnings_total{code="unknown_index",operation="indices"}`,
		`invalidation_events_total{op="reprocess",result="error"}`,
		`invalidated_keys_total{platform="LANDSAT/LC09/C02/T1_L2"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in:\n%s", want, body)
		}
	}
}
