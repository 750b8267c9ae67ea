package h3mapper

import (
	"slices"
	"sort"
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/band-algebra/internal/core/model"
)

func TestToParent_SameResAndUp(t *testing.T) {
	m := New()
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: 55.6050, Lng: 13.0038}, 7)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	s := cell.String()

	p, err := m.ToParent(s, 7)
	if err != nil || p != s {
		t.Fatalf("ToParent same-res = %q, %v", p, err)
	}
	p5, err := m.ToParent(s, 5)
	if err != nil {
		t.Fatalf("ToParent: %v", err)
	}
	want, _ := cell.Parent(5)
	if p5 != want.String() {
		t.Fatalf("parent=%s want %s", p5, want)
	}
	if _, err := m.ToParent(s, 8); err == nil {
		t.Fatalf("expected error for parentRes > current res")
	}
}

func TestCoarsen_CoversFineCells(t *testing.T) {
	m := New()
	bb := model.BBox{X1: 17.95, Y1: 59.30, X2: 18.15, Y2: 59.40}
	fine, err := m.CellsForBBox(bb, 9)
	if err != nil {
		t.Fatalf("CellsForBBox: %v", err)
	}
	coarse, err := m.Coarsen(fine, 6)
	if err != nil {
		t.Fatalf("Coarsen: %v", err)
	}
	if len(coarse) == 0 || len(coarse) >= len(fine) {
		t.Fatalf("coarse=%d fine=%d", len(coarse), len(fine))
	}
	if !sort.StringsAreSorted([]string(coarse)) || hasDups(coarse) {
		t.Fatalf("coarse cells must be sorted + unique")
	}
	for _, c := range fine {
		p, _ := m.ToParent(c, 6)
		if !slices.Contains(coarse, p) {
			t.Fatalf("parent %s of %s missing from coarse cover", p, c)
		}
	}
}
