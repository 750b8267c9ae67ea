// Package invalidation defines the scene-ingest and registry events that
// evict cached per-cell summaries.
package invalidation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/band-algebra/internal/core/model"
)

const (
	OpIngest    = "ingest"
	OpReprocess = "reprocess"
	OpRegistry  = "registry"
)

type Event struct {
	Version  int    `json:"version"`
	Op       string `json:"op"`
	Platform string `json:"platform,omitempty"`
	// Scene identifies the ingested asset; repeated deliveries of the same
	// scene with an older or equal ts are ignored.
	Scene    string          `json:"scene,omitempty"`
	TS       time.Time       `json:"ts"`
	BBox     *BBox           `json:"bbox,omitempty"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
}

type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	switch e.Op {
	case OpRegistry:
		return nil
	case OpIngest, OpReprocess:
	default:
		return fmt.Errorf("op must be ingest|reprocess|registry")
	}
	if strings.TrimSpace(e.Platform) == "" {
		return fmt.Errorf("platform is required")
	}
	hasBBox := e.BBox != nil
	hasGeom := len(e.Geometry) > 0
	if hasBBox == hasGeom {
		return fmt.Errorf("exactly one of bbox or geometry is required")
	}
	if hasBBox {
		bb := *e.BBox
		if bb.SRID != "EPSG:4326" {
			return fmt.Errorf("bbox.srid must be EPSG:4326")
		}
		if !(bb.X1 >= -180 && bb.X1 <= 180 && bb.X2 >= -180 && bb.X2 <= 180) {
			return fmt.Errorf("bbox longitude out of range")
		}
		if !(bb.Y1 >= -90 && bb.Y1 <= 90 && bb.Y2 >= -90 && bb.Y2 <= 90) {
			return fmt.Errorf("bbox latitude out of range")
		}
		if !(bb.X2 > bb.X1 && bb.Y2 > bb.Y1) {
			return fmt.Errorf("bbox must satisfy x2>x1 and y2>y1")
		}
		return nil
	}
	g, err := geojson.UnmarshalGeometry(e.Geometry)
	if err != nil {
		return fmt.Errorf("geometry parse: %w", err)
	}
	switch g.Coordinates.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return nil
	}
	return fmt.Errorf("geometry.type must be Polygon or MultiPolygon")
}

// Region converts the event footprint for the cell mapper.
func (e Event) Region() model.Region {
	if e.BBox != nil {
		return model.Region{BBox: &model.BBox{
			X1: e.BBox.X1, Y1: e.BBox.Y1,
			X2: e.BBox.X2, Y2: e.BBox.Y2,
			SRID: e.BBox.SRID,
		}}
	}
	return model.Region{Geometry: e.Geometry}
}
