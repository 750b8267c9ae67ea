package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestSlogBridge_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info", Service: "band-algebra"}, &buf)
	log := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithComponent(ctx, "spectral")
	ctx = WithPlatform(ctx, "COPERNICUS/S2_SR")
	ctx = WithOperation(ctx, "indices")
	log.WarnContext(ctx, "missing bands", "index", "NDVI", "count", 2)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":      "warn",
		"msg":        "missing bands",
		"service":    "band-algebra",
		"request_id": "req-1",
		"component":  "spectral",
		"platform":   "COPERNICUS/S2_SR",
		"operation":  "indices",
		"index":      "NDVI",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Fatalf("%s=%v want %v (record %v)", k, rec[k], v, rec)
		}
	}
	if rec["count"] != float64(2) {
		t.Fatalf("count=%v", rec["count"])
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Fatalf("timestamp missing: %v", rec)
	}
}

func TestSlogBridge_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	defer Build(Config{Level: "info"}, &bytes.Buffer{})
	log := NewSlog(&zl)

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level, got %q", buf.String())
	}
	log.Error("kept")
	if buf.Len() == 0 {
		t.Fatalf("error must pass the warn level")
	}
}

func TestRequestID_GeneratedWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	if id := RequestID(ctx); len(id) != 16 {
		t.Fatalf("generated id=%q", id)
	}
	if RequestID(context.Background()) != "" {
		t.Fatalf("no id expected on bare context")
	}
}
