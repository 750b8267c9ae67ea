package invalidation

import (
	"encoding/json"
	"testing"
	"time"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

const square = `{"type":"Polygon","coordinates":[[[11,55],[12,55],[12,56],[11,56],[11,55]]]}`

func TestEvent_Validate_BBoxAndPolygonMutualExclusion(t *testing.T) {
	ev := Event{
		Version: 1, Op: OpIngest, Platform: "COPERNICUS/S2_SR", TS: mustTS(),
		BBox:     &BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"},
		Geometry: json.RawMessage(square),
	}
	if err := ev.Validate(); err == nil {
		t.Fatalf("expected error when both bbox and geometry are set")
	}
}

func TestEvent_Validate_BBoxHappyPath(t *testing.T) {
	ev := Event{
		Version: 1, Op: OpReprocess, Platform: "COPERNICUS/S2_SR", TS: mustTS(),
		BBox: &BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"},
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	r := ev.Region()
	if r.BBox == nil || r.BBox.X2 != 12 || len(r.Geometry) != 0 {
		t.Fatalf("region=%+v", r)
	}
}

func TestEvent_Validate_PolygonHappyPath(t *testing.T) {
	ev := Event{
		Version: 1, Op: OpIngest, Platform: "LANDSAT/LC09/C02/T1_L2", Scene: "LC09_196019_20240610", TS: mustTS(),
		Geometry: json.RawMessage(square),
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if r := ev.Region(); r.BBox != nil || string(r.Geometry) != square {
		t.Fatalf("region=%+v", r)
	}
}

func TestEvent_Validate_Rejects(t *testing.T) {
	base := Event{
		Version: 1, Op: OpIngest, Platform: "COPERNICUS/S2_SR", TS: mustTS(),
		BBox: &BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"},
	}
	cases := map[string]func(e *Event){
		"version":      func(e *Event) { e.Version = 2 },
		"op":           func(e *Event) { e.Op = "update" },
		"no platform":  func(e *Event) { e.Platform = " " },
		"no ts":        func(e *Event) { e.TS = time.Time{} },
		"no region":    func(e *Event) { e.BBox = nil },
		"flat bbox":    func(e *Event) { e.BBox = &BBox{X1: 11, Y1: 55, X2: 11, Y2: 56, SRID: "EPSG:4326"} },
		"srid":         func(e *Event) { e.BBox = &BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:3857"} },
		"lat range":    func(e *Event) { e.BBox = &BBox{X1: 11, Y1: 55, X2: 12, Y2: 96, SRID: "EPSG:4326"} },
		"point":        func(e *Event) { e.BBox = nil; e.Geometry = json.RawMessage(`{"type":"Point","coordinates":[11,55]}`) },
		"bad geometry": func(e *Event) { e.BBox = nil; e.Geometry = json.RawMessage(`{"type":`) },
	}
	for name, mut := range cases {
		ev := base
		mut(&ev)
		if err := ev.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEvent_Validate_RegistryNeedsNoRegion(t *testing.T) {
	ev := Event{Version: 1, Op: OpRegistry, TS: mustTS()}
	if err := ev.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}
