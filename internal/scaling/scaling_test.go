package scaling

import (
	"context"
	"encoding/json"
	"slices"
	"testing"

	"github.com/mohammed-shakir/band-algebra/internal/diag"
	"github.com/mohammed-shakir/band-algebra/internal/graph"
	"github.com/mohammed-shakir/band-algebra/internal/platform"
	"github.com/mohammed-shakir/band-algebra/internal/raster"
)

type bandsMat struct{ bands []string }

func (m bandsMat) Value(_ context.Context, _ *graph.Node) (json.RawMessage, error) {
	return json.Marshal(m.bands)
}

func newNormalizer(t *testing.T, mat platform.Materializer) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(platform.NewResolver(nil, mat, 16, nil), nil)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	return n
}

func TestScaleAndOffset_Landsat(t *testing.T) {
	n := newNormalizer(t, nil)
	img := raster.Load("LANDSAT/LC08/C02/T1_L2/LC08_044034_20200101", "SR_B4", "SR_B5", "ST_B10", "QA_PIXEL")

	out, warns, err := n.ScaleAndOffset(context.Background(), img)
	if err != nil || len(warns) != 0 {
		t.Fatalf("warns=%+v err=%v", warns, err)
	}
	if !slices.Equal(out.Bands(), img.Bands()) {
		t.Fatalf("bands=%v", out.Bands())
	}
	s, o, ok := n.Factors("LANDSAT/LC08/C02/T1_L2", "ST_B10")
	if !ok || s != 0.00341802 || o != 149.0 {
		t.Fatalf("ST_B10 factors=%v,%v,%v", s, o, ok)
	}
	renamed := 0
	graph.Walk(out.Node(), func(c *graph.Node) bool {
		if c.Op == graph.OpRename {
			renamed++
			if slices.Contains(c.Names, "QA_PIXEL") {
				t.Fatalf("QA_PIXEL has no table entry and must pass through")
			}
		}
		return true
	})
	if renamed != 3 {
		t.Fatalf("scaled bands=%d want 3", renamed)
	}
}

func TestScaleAndOffset_NoEntriesIsStable(t *testing.T) {
	n := newNormalizer(t, nil)
	img := raster.Load("COPERNICUS/S2_SR/20200101T000000_T30TXX", "QA60", "SCL")

	once, _, err := n.ScaleAndOffset(context.Background(), img)
	if err != nil {
		t.Fatalf("ScaleAndOffset: %v", err)
	}
	twice, _, _ := n.ScaleAndOffset(context.Background(), once)
	if once != raster.Raster(img) || twice != once {
		t.Fatalf("bands without entries must be left untouched")
	}
	if graph.Fingerprint(twice.Node()) != graph.Fingerprint(img.Node()) {
		t.Fatalf("graph changed")
	}
}

func TestScaleAndOffset_UnsupportedPlatformWarns(t *testing.T) {
	n := newNormalizer(t, nil)
	img := raster.Load("JAXA/ALOS/AW3D30/V3_2")
	out, warns, err := n.ScaleAndOffset(context.Background(), img)
	if err != nil {
		t.Fatalf("unsupported platform must not fail: %v", err)
	}
	if out != raster.Raster(img) || len(warns) != 1 || warns[0].Code != diag.CodeUnsupportedPlatform {
		t.Fatalf("out=%v warns=%+v", out, warns)
	}
}

func TestScaleAndOffset_UnknownBandsFetched(t *testing.T) {
	n := newNormalizer(t, bandsMat{bands: []string{"sur_refl_b01", "sur_refl_b02", "state_1km"}})
	col := raster.LoadCollection("MODIS/061/MOD09GA")

	out, _, err := n.ScaleAndOffset(context.Background(), col)
	if err != nil {
		t.Fatalf("ScaleAndOffset: %v", err)
	}
	if out.Node().Op != graph.OpMap {
		t.Fatalf("collection must be mapped")
	}
	if !slices.Equal(out.Bands(), []string{"sur_refl_b01", "sur_refl_b02", "state_1km"}) {
		t.Fatalf("bands=%v", out.Bands())
	}
}

func TestScaleAndOffset_NoTableForPlatform(t *testing.T) {
	n := newNormalizer(t, nil)
	img := raster.Load("LANDSAT/LC08/C02/T1_TOA/LC08_044034_20200101", "B4")
	out, warns, _ := n.ScaleAndOffset(context.Background(), img)
	if out != raster.Raster(img) || len(warns) != 1 {
		t.Fatalf("out=%v warns=%+v", out, warns)
	}
}
