package h3mapper

import (
	"encoding/json"
	"reflect"
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/band-algebra/internal/core/model"
	"github.com/mohammed-shakir/band-algebra/internal/mapper"
)

var _ mapper.Interface = (*Mapper)(nil)

func TestBBox_HappyPath_SortedUnique(t *testing.T) {
	m := New()
	bb := model.BBox{X1: 17.95, Y1: 59.30, X2: 18.15, Y2: 59.40, SRID: "EPSG:4326"}

	cells, err := m.CellsForBBox(bb, 8)
	if err != nil {
		t.Fatalf("CellsForBBox err: %v", err)
	}
	if len(cells) == 0 {
		t.Fatalf("expected non-empty cells for bbox")
	}
	if !sort.StringsAreSorted([]string(cells)) {
		t.Fatalf("cells must be sorted")
	}
	if hasDups(cells) {
		t.Fatalf("cells must be de-duplicated")
	}
}

func TestPolygon_SubsetOfBBoxAndDeterministic(t *testing.T) {
	m := New()
	bb := model.BBox{X1: 17.95, Y1: 59.30, X2: 18.15, Y2: 59.40, SRID: "EPSG:4326"}

	polyJSON := `{"type":"Polygon","coordinates":[[
		[18.00,59.32],[18.12,59.32],[18.12,59.38],[18.00,59.38],[18.00,59.32]
	]]}`
	res := 9
	cp, err := m.CellsForPolygon(model.Polygon{GeoJSON: polyJSON}, res)
	if err != nil {
		t.Fatalf("polygon: %v", err)
	}
	cb, err := m.CellsForBBox(bb, res)
	if err != nil {
		t.Fatalf("bbox: %v", err)
	}
	if len(cp) == 0 {
		t.Fatalf("expected non-empty polygon coverage")
	}
	if !sort.StringsAreSorted([]string(cp)) || hasDups(cp) {
		t.Fatalf("polygon cells must be sorted + unique")
	}
	cp2, err := m.CellsForPolygon(model.Polygon{GeoJSON: polyJSON}, res)
	if err != nil {
		t.Fatalf("polygon second call: %v", err)
	}
	if !reflect.DeepEqual(cp, cp2) {
		t.Fatalf("expected identical output for identical input")
	}
	if len(cp) > len(cb) {
		t.Fatalf("polygon coverage larger than bbox coverage (unexpected)")
	}
}

func TestMultiPolygon_UnionOfParts(t *testing.T) {
	m := New()
	a := `[[18.00,59.32],[18.05,59.32],[18.05,59.35],[18.00,59.35],[18.00,59.32]]`
	b := `[[18.10,59.36],[18.14,59.36],[18.14,59.39],[18.10,59.39],[18.10,59.36]]`
	multi := `{"type":"MultiPolygon","coordinates":[[` + a + `],[` + b + `]]}`

	all, err := m.CellsForPolygon(model.Polygon{GeoJSON: multi}, 9)
	if err != nil {
		t.Fatalf("multipolygon: %v", err)
	}
	ca, _ := m.CellsForPolygon(model.Polygon{GeoJSON: `{"type":"Polygon","coordinates":[` + a + `]}`}, 9)
	cb, _ := m.CellsForPolygon(model.Polygon{GeoJSON: `{"type":"Polygon","coordinates":[` + b + `]}`}, 9)
	if len(all) != len(ca)+len(cb) {
		t.Fatalf("disjoint parts: got %d cells want %d", len(all), len(ca)+len(cb))
	}
	if !sort.StringsAreSorted([]string(all)) {
		t.Fatalf("cells must be sorted")
	}
}

func TestRegion_Dispatch(t *testing.T) {
	m := New()
	bb := &model.BBox{X1: 18.00, Y1: 59.32, X2: 18.12, Y2: 59.38}
	fromBBox, err := m.CellsForRegion(model.Region{BBox: bb}, 8)
	if err != nil {
		t.Fatalf("bbox region: %v", err)
	}
	geom := json.RawMessage(`{"type":"Polygon","coordinates":[[[18.00,59.32],[18.12,59.32],[18.12,59.38],[18.00,59.38],[18.00,59.32]]]}`)
	fromGeom, err := m.CellsForRegion(model.Region{Geometry: geom}, 8)
	if err != nil {
		t.Fatalf("geometry region: %v", err)
	}
	if !reflect.DeepEqual(fromBBox, fromGeom) {
		t.Fatalf("bbox and equal polygon must cover the same cells")
	}
	if _, err := m.CellsForRegion(model.Region{}, 8); err == nil {
		t.Fatalf("empty region must fail")
	}
}

func TestBounds_InvalidResolutionAndDegeneratePolygon(t *testing.T) {
	m := New()
	bb := model.BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"}

	if _, err := m.CellsForBBox(bb, -1); err == nil {
		t.Fatalf("expected error for res=-1")
	}
	if _, err := m.CellsForBBox(bb, 16); err == nil {
		t.Fatalf("expected error for res=16")
	}

	p := model.Polygon{GeoJSON: `{"type":"Polygon","coordinates":[[]]}`}
	if _, err := m.CellsForPolygon(p, 8); err == nil {
		t.Fatalf("expected error for degenerate polygon")
	}
	pt := model.Polygon{GeoJSON: `{"type":"Point","coordinates":[18,59]}`}
	if _, err := m.CellsForPolygon(pt, 8); err == nil {
		t.Fatalf("expected error for point geometry")
	}
}

func TestCellPolygon_ContainsCellCenter(t *testing.T) {
	m := New()
	ll := h3.LatLng{Lat: 59.3293, Lng: 18.0686}
	cell, err := h3.LatLngToCell(ll, 8)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	poly, err := m.CellPolygon(cell.String())
	if err != nil {
		t.Fatalf("CellPolygon: %v", err)
	}
	ring := poly[0]
	if !ring.Closed() {
		t.Fatalf("boundary ring must be closed")
	}
	if !planar.PolygonContains(poly, orb.Point{ll.Lng, ll.Lat}) {
		t.Fatalf("cell polygon must contain its seed point")
	}

	raw, err := m.CellGeoJSON(cell.String())
	if err != nil {
		t.Fatalf("CellGeoJSON: %v", err)
	}
	var hdr struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil || hdr.Type != "Polygon" {
		t.Fatalf("geojson=%s err=%v", raw, err)
	}
	if _, err := m.CellPolygon("not-a-cell"); err == nil {
		t.Fatalf("expected error for invalid cell")
	}
}

func hasDups(s []string) bool {
	seen := map[string]struct{}{}
	for _, v := range s {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
