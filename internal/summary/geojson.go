package summary

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CellOutliner renders the boundary of one cell.
type CellOutliner interface {
	CellPolygon(cell string) (orb.Polygon, error)
}

// FeatureCollection renders r with one polygon feature per cell. The cell
// value is decoded into the "value" property; values that are not JSON are
// kept as strings.
func (r *Result) FeatureCollection(m CellOutliner) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, cv := range r.Cells {
		poly, err := m.CellPolygon(cv.Cell)
		if err != nil {
			return nil, fmt.Errorf("summary: outline %s: %w", cv.Cell, err)
		}
		f := geojson.NewFeature(poly)
		f.ID = cv.Cell
		f.Properties["cell"] = cv.Cell
		f.Properties["cached"] = cv.Cached
		var v any
		if err := json.Unmarshal(cv.Value, &v); err != nil {
			v = string(cv.Value)
		}
		f.Properties["value"] = v
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{
		"platform": r.Platform,
		"res":      r.Res,
		"band":     r.Band,
		"reducer":  r.Reducer,
	}
	return fc, nil
}
