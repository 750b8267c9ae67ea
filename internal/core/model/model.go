// Package model defines request types shared by the API, the summary
// service and the invalidation consumer.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String representation matching the minx,miny,maxx,maxy,srid query format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

func (b BBox) Validate() error {
	if b.X1 >= b.X2 || b.Y1 >= b.Y2 {
		return fmt.Errorf("bbox %s: min must be below max", b)
	}
	if b.X1 < -180 || b.X2 > 180 || b.Y1 < -90 || b.Y2 > 90 {
		return fmt.Errorf("bbox %s: outside EPSG:4326 bounds", b)
	}
	return nil
}

// UnmarshalJSON accepts [minx, miny, maxx, maxy].
func (b *BBox) UnmarshalJSON(raw []byte) error {
	var v []float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("bbox: want 4 numbers, got %d", len(v))
	}
	*b = BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], SRID: "EPSG:4326"}
	return nil
}

func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64{b.X1, b.Y1, b.X2, b.Y2})
}

type Polygon struct {
	GeoJSON string
}

type Cells []string

// Region is a bbox or a GeoJSON Polygon/MultiPolygon; exactly one is set.
type Region struct {
	BBox     *BBox           `json:"bbox,omitempty"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
}

func (r Region) Validate() error {
	switch {
	case r.BBox != nil && len(r.Geometry) > 0:
		return errors.New("region: set either bbox or geometry, not both")
	case r.BBox != nil:
		return r.BBox.Validate()
	case len(r.Geometry) > 0:
		return nil
	}
	return errors.New("region: bbox or geometry is required")
}

// RasterRef names the image or collection an API call works on.
type RasterRef struct {
	Image      string   `json:"image,omitempty"`
	Collection string   `json:"collection,omitempty"`
	Bands      []string `json:"bands,omitempty"`
}

func (r RasterRef) Validate() error {
	switch {
	case r.Image != "" && r.Collection != "":
		return errors.New("set either image or collection, not both")
	case r.Image == "" && r.Collection == "":
		return errors.New("image or collection is required")
	}
	return nil
}
