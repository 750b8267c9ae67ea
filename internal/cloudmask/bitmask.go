package cloudmask

import (
	"github.com/mohammed-shakir/band-algebra/internal/platform"
	"github.com/mohammed-shakir/band-algebra/internal/raster"
)

type flagKind int

const (
	flagCloud flagKind = iota
	flagCirrus
	flagShadow
)

// flag is one quality condition: the value of Width bits starting at Bit of
// Band is at least Min.
type flag struct {
	Kind  flagKind
	Band  string
	Bit   uint
	Width uint
	Min   int64
}

func bit(kind flagKind, band string, b uint) flag {
	return flag{Kind: kind, Band: band, Bit: b, Width: 1, Min: 1}
}

var (
	landsatC2 = []flag{
		bit(flagCirrus, "QA_PIXEL", 2),
		bit(flagCloud, "QA_PIXEL", 3),
		bit(flagShadow, "QA_PIXEL", 4),
	}
	modisState1km = []flag{
		bit(flagCloud, "state_1km", 10),
		bit(flagShadow, "state_1km", 2),
		{Kind: flagCirrus, Band: "state_1km", Bit: 8, Width: 2, Min: 2},
	}
	modisStateQA = []flag{
		bit(flagCloud, "StateQA", 10),
		bit(flagShadow, "StateQA", 2),
		{Kind: flagCirrus, Band: "StateQA", Bit: 8, Width: 2, Min: 2},
	}
	modisState250 = []flag{
		bit(flagCloud, "State", 10),
		bit(flagShadow, "State", 2),
		{Kind: flagCirrus, Band: "State", Bit: 8, Width: 2, Min: 2},
	}
	modisVI = []flag{
		bit(flagCloud, "DetailedQA", 10),
		bit(flagShadow, "DetailedQA", 15),
	}
	olci = []flag{
		bit(flagCloud, "quality_flags", 27),
	}
)

// bitmaskRules returns the quality flags for d, or nil when the platform has
// no usable quality band.
func bitmaskRules(d platform.Descriptor) []flag {
	switch d.Family {
	case platform.FamilyLandsatL2, platform.FamilyLandsatTOA:
		return landsatC2
	case platform.FamilySentinel3:
		return olci
	case platform.FamilyModisVI:
		return modisVI
	case platform.FamilyModisSR:
		switch product(d.ID) {
		case "MOD09GA", "MYD09GA":
			return modisState1km
		case "MOD09A1", "MYD09A1":
			return modisStateQA
		case "MOD09Q1", "MYD09Q1":
			return modisState250
		}
	}
	return nil
}

func product(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '/' {
			return id[i+1:]
		}
	}
	return id
}

func (f flag) test(img *raster.Image) *raster.Image {
	qa := img.Select(f.Band)
	if f.Width <= 1 {
		return qa.BitwiseAnd(1 << f.Bit).Neq(raster.Scalar(0))
	}
	return qa.RightShift(int(f.Bit)).BitwiseAnd(1<<f.Width - 1).Gte(raster.Scalar(float64(f.Min)))
}

// maskBitmask hides pixels with any enabled flag set.
func maskBitmask(img *raster.Image, rules []flag, o Options) *raster.Image {
	var bad *raster.Image
	for _, f := range rules {
		switch {
		case f.Kind == flagCirrus && !o.MaskCirrus:
			continue
		case f.Kind == flagShadow && !o.MaskShadows:
			continue
		}
		t := f.test(img)
		if bad == nil {
			bad = t
		} else {
			bad = bad.Or(t)
		}
	}
	if bad == nil {
		return img
	}
	return img.UpdateMask(bad.Not())
}
