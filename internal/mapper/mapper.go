// Package mapper converts between geometric regions and H3 cells.
package mapper

import (
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/band-algebra/internal/core/model"
)

type Interface interface {
	CellsForRegion(r model.Region, res int) (model.Cells, error)
	CellPolygon(cell string) (orb.Polygon, error)
	CellGeoJSON(cell string) ([]byte, error)
	ToParent(cell string, parentRes int) (string, error)
	Coarsen(cells model.Cells, res int) (model.Cells, error)
}
