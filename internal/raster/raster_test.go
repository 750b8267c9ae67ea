package raster

import (
	"reflect"
	"testing"

	"github.com/mohammed-shakir/band-algebra/internal/graph"
)

func TestImage_SelectRenameKeepID(t *testing.T) {
	img := Load("COPERNICUS/S2_SR/20200101T000000_T30TXX", "B4", "B8", "QA60")
	sel := img.Select("B8").Rename("NIR")
	if sel.ID() != img.ID() {
		t.Fatalf("id lost through select/rename: %q", sel.ID())
	}
	if !reflect.DeepEqual(sel.Bands(), []string{"NIR"}) {
		t.Fatalf("bands=%v", sel.Bands())
	}
}

func TestImage_AddBands(t *testing.T) {
	img := Load("x", "B4", "B8")
	out := img.AddBands(FromNode(graph.Const(1), "NDVI"), false)
	if !reflect.DeepEqual(out.Bands(), []string{"B4", "B8", "NDVI"}) {
		t.Fatalf("bands=%v", out.Bands())
	}
	dup := out.AddBands(FromNode(graph.Const(1), "NDVI"), false)
	if !reflect.DeepEqual(dup.Bands(), []string{"B4", "B8", "NDVI", "NDVI_1"}) {
		t.Fatalf("bands=%v", dup.Bands())
	}
	over := out.AddBands(FromNode(graph.Const(1), "B4"), true)
	if !reflect.DeepEqual(over.Bands(), []string{"B4", "B8", "NDVI"}) {
		t.Fatalf("overwrite bands=%v", over.Bands())
	}
	if over.Node().Params["overwrite"] != true {
		t.Fatalf("overwrite flag missing: %s", over.Node())
	}
}

func TestImage_UnknownBandsStayUnknown(t *testing.T) {
	img := Load("x")
	if img.Bands() != nil {
		t.Fatalf("expected nil bands")
	}
	if out := img.AddBands(FromNode(graph.Const(1), "A"), false); out.Bands() != nil {
		t.Fatalf("merging into unknown bands must stay unknown, got %v", out.Bands())
	}
}

func TestCollection_MapBuildsBodyOnce(t *testing.T) {
	calls := 0
	col := LoadCollection("LANDSAT/LC08/C02/T1_L2", "SR_B4", "SR_B5")
	out := col.Map(func(img *Image) *Image {
		calls++
		if img.Node().Op != graph.OpArgument {
			t.Fatalf("placeholder op=%s", img.Node().Op)
		}
		return img.AddBands(img.Select("SR_B5").Rename("N"), false)
	})
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}
	if out.Node().Op != graph.OpMap || out.Node().Body == nil {
		t.Fatalf("unexpected node %s", out.Node())
	}
	if !reflect.DeepEqual(out.Bands(), []string{"SR_B4", "SR_B5", "N"}) {
		t.Fatalf("bands=%v", out.Bands())
	}
}

func TestApply_DispatchesStructurally(t *testing.T) {
	rename := func(img *Image) *Image { return img.Rename("X") }

	img := Load("a", "B1")
	if got := Apply(img, rename); got.Node().Op != graph.OpRename {
		t.Fatalf("image apply op=%s", got.Node().Op)
	}
	col := LoadCollection("c", "B1")
	if got := Apply(col, rename); got.Node().Op != graph.OpMap {
		t.Fatalf("collection apply op=%s", got.Node().Op)
	}
}

func TestIdent(t *testing.T) {
	col := FromImages(Load("MODIS/061/MOD09GA/2020_01_01", "sur_refl_b01"))
	id := col.Ident()
	if id.ID != "MODIS/061/MOD09GA/2020_01_01" {
		t.Fatalf("ident id=%q", id.ID)
	}
	if id.Probe.Op != graph.OpGet || id.Probe.Args[0].Op != graph.OpFirst {
		t.Fatalf("probe=%s", id.Probe)
	}
	if got := LoadCollection("MODIS/061/MOD09GA").Ident().ID; got != "MODIS/061/MOD09GA" {
		t.Fatalf("collection ident=%q", got)
	}
}

func TestLift_ImageRoundTripsThroughCollection(t *testing.T) {
	img := Load("COPERNICUS/S2_SR/a", "B4")
	out := Lift(img, func(c *Collection) *Collection {
		return c.Map(func(i *Image) *Image { return i.Select("B4") })
	})
	single, ok := out.(*Image)
	if !ok {
		t.Fatalf("lifted image came back as %T", out)
	}
	if single.Node().Op != graph.OpFirst || single.ID() != "COPERNICUS/S2_SR/a" {
		t.Fatalf("node=%s id=%q", single.Node().Op, single.ID())
	}

	col := LoadCollection("COPERNICUS/S2_SR")
	if got := Lift(col, func(c *Collection) *Collection { return c }); got != Raster(col) {
		t.Fatalf("collection lift must not wrap")
	}
}
