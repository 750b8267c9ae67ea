package router

import (
	"strconv"
	"strings"
)

type format int

const (
	formatJSON format = iota
	formatGeoJSON
)

const (
	contentJSON    = "application/json"
	contentGeoJSON = "application/geo+json"
)

// negotiate picks the summary representation. An explicit ?format= wins over
// the Accept header; ties in quality keep the first listed type.
func negotiate(formatParam, accept string) format {
	switch strings.ToLower(strings.TrimSpace(formatParam)) {
	case "geojson", contentGeoJSON:
		return formatGeoJSON
	case "json", contentJSON:
		return formatJSON
	}

	bestQ := -1.0
	best := formatJSON
	for part := range strings.SplitSeq(strings.ToLower(accept), ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		mt, params, _ := strings.Cut(token, ";")
		mt = strings.TrimSpace(mt)
		q := 1.0
		for p := range strings.SplitSeq(params, ";") {
			if after, ok := strings.CutPrefix(strings.TrimSpace(p), "q="); ok {
				if v, err := strconv.ParseFloat(after, 64); err == nil {
					q = v
				}
			}
		}
		var cand format
		switch {
		case strings.Contains(mt, "geo+json"):
			cand = formatGeoJSON
		case mt == contentJSON, mt == "*/*":
			cand = formatJSON
		default:
			continue
		}
		if q > bestQ {
			bestQ, best = q, cand
		}
	}
	return best
}
