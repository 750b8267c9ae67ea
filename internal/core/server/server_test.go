package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/band-algebra/internal/core/health"
	"github.com/mohammed-shakir/band-algebra/internal/core/router"
	"github.com/mohammed-shakir/band-algebra/internal/platform"
)

func TestHandler_ProbesAndAPI(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := router.Deps{Resolver: platform.NewResolver(nil, nil, 8, log)}
	down := map[string]health.Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}
	srv := httptest.NewServer(Handler(log, deps, down))
	defer srv.Close()

	get := func(path string) (*http.Response, string) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer func() { _ = resp.Body.Close() }()
		b, _ := io.ReadAll(resp.Body)
		return resp, string(b)
	}

	if resp, body := get("/healthz"); resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("healthz=%d %q", resp.StatusCode, body)
	}
	if resp, body := get("/readyz"); resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(body, "connection refused") {
		t.Fatalf("readyz=%d %q", resp.StatusCode, body)
	}
	resp, body := get("/v1/platforms")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "COPERNICUS/S2_SR") {
		t.Fatalf("platforms=%d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
	if resp, body := get("/metrics"); resp.StatusCode != http.StatusOK || !strings.Contains(body, "http_requests_total") {
		t.Fatalf("metrics=%d", resp.StatusCode)
	}
}
