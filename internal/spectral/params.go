package spectral

import "maps"

// DefaultParams are the numeric constants index formulas may reference.
func DefaultParams() map[string]float64 {
	return map[string]float64{
		"g":     2.5,
		"C1":    6.0,
		"C2":    7.5,
		"L":     1.0,
		"cexp":  1.16,
		"nexp":  2.0,
		"alpha": 0.1,
		"beta":  0.05,
		"gamma": 1.0,
		"sla":   1.0,
		"slb":   0.0,
	}
}

func mergeParams(overrides map[string]float64) map[string]float64 {
	p := DefaultParams()
	maps.Copy(p, overrides)
	return p
}
