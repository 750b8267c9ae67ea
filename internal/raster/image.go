package raster

import (
	"fmt"
	"slices"

	"github.com/mohammed-shakir/band-algebra/internal/graph"
)

// Image is a deferred single image. id and bands are local metadata; either
// may be empty when the image was derived remotely.
type Image struct {
	node  *graph.Node
	id    string
	bands []string
}

var _ Raster = (*Image)(nil)

// Load references a catalog image by asset id. Band names are optional.
func Load(id string, bands ...string) *Image {
	var b []string
	if len(bands) > 0 {
		b = slices.Clone(bands)
	}
	return &Image{node: graph.LoadImage(id), id: id, bands: b}
}

// FromNode wraps an arbitrary image-valued node.
func FromNode(n *graph.Node, bands ...string) *Image {
	var b []string
	if len(bands) > 0 {
		b = slices.Clone(bands)
	}
	return &Image{node: n, bands: b}
}

func (i *Image) Node() *graph.Node { return i.node }

func (i *Image) ID() string { return i.id }

// Bands returns the known band names, or nil when unknown.
func (i *Image) Bands() []string { return cloneBands(i.bands) }

func (i *Image) Ident() Ident {
	return Ident{
		ID:         i.id,
		Probe:      graph.Get(i.node, "system:id"),
		BandsProbe: graph.BandNames(i.node),
	}
}

func (i *Image) apply(fn func(*Image) *Image) Raster { return fn(i) }

func (i *Image) lift(fn func(*Collection) *Collection) Raster {
	return fn(FromImages(i)).First()
}

func (i *Image) withBands(bands []string) Raster {
	return &Image{node: i.node, id: i.id, bands: cloneBands(bands)}
}

// derive keeps the id for operations that preserve image properties.
func (i *Image) derive(n *graph.Node, bands []string) *Image {
	return &Image{node: n, id: i.id, bands: bands}
}

func (i *Image) Select(names ...string) *Image {
	return i.derive(graph.Select(i.node, names...), slices.Clone(names))
}

func (i *Image) Rename(names ...string) *Image {
	return i.derive(graph.Rename(i.node, names...), slices.Clone(names))
}

// AddBands appends src's bands. With overwrite, same-named bands are replaced
// in place; without it, clashing names get a numeric suffix.
func (i *Image) AddBands(src *Image, overwrite bool) *Image {
	var bands []string
	if i.bands != nil && src.bands != nil {
		bands = slices.Clone(i.bands)
		for _, b := range src.bands {
			if !slices.Contains(bands, b) {
				bands = append(bands, b)
				continue
			}
			if !overwrite {
				bands = append(bands, uniqueName(bands, b))
			}
		}
	}
	return i.derive(graph.AddBands(i.node, src.node, overwrite), bands)
}

func uniqueName(existing []string, b string) string {
	for n := 1; ; n++ {
		c := fmt.Sprintf("%s_%d", b, n)
		if !slices.Contains(existing, c) {
			return c
		}
	}
}

func (i *Image) UpdateMask(mask Operand) *Image {
	return i.derive(graph.UpdateMask(i.node, mask.Node()), cloneBands(i.bands))
}

func (i *Image) Mask() *Image {
	return &Image{node: graph.Mask(i.node), bands: cloneBands(i.bands)}
}

// Get reads a numeric image property.
func (i *Image) Get(property string) Number {
	return Number{node: graph.Get(i.node, property)}
}

// GetImage reads an image-valued property, such as one attached by a join.
func (i *Image) GetImage(property string) *Image {
	return &Image{node: graph.Get(i.node, property)}
}

func (i *Image) binary(op graph.Op, o Operand) *Image {
	return &Image{node: graph.Binary(op, i.node, o.Node()), bands: cloneBands(i.bands)}
}

func (i *Image) Add(o Operand) *Image      { return i.binary(graph.OpAdd, o) }
func (i *Image) Subtract(o Operand) *Image { return i.binary(graph.OpSubtract, o) }
func (i *Image) Multiply(o Operand) *Image { return i.binary(graph.OpMultiply, o) }
func (i *Image) Divide(o Operand) *Image   { return i.binary(graph.OpDivide, o) }
func (i *Image) Pow(o Operand) *Image      { return i.binary(graph.OpPow, o) }

func (i *Image) Eq(o Operand) *Image  { return i.binary(graph.OpEq, o) }
func (i *Image) Neq(o Operand) *Image { return i.binary(graph.OpNeq, o) }
func (i *Image) Lt(o Operand) *Image  { return i.binary(graph.OpLt, o) }
func (i *Image) Lte(o Operand) *Image { return i.binary(graph.OpLte, o) }
func (i *Image) Gt(o Operand) *Image  { return i.binary(graph.OpGt, o) }
func (i *Image) Gte(o Operand) *Image { return i.binary(graph.OpGte, o) }
func (i *Image) And(o Operand) *Image { return i.binary(graph.OpAnd, o) }
func (i *Image) Or(o Operand) *Image  { return i.binary(graph.OpOr, o) }

func (i *Image) Exp() *Image {
	return &Image{node: graph.Unary(graph.OpExp, i.node), bands: cloneBands(i.bands)}
}

func (i *Image) Not() *Image {
	return &Image{node: graph.Unary(graph.OpNot, i.node), bands: cloneBands(i.bands)}
}

func (i *Image) BitwiseAnd(mask int64) *Image {
	return i.binary(graph.OpBitwiseAnd, Scalar(float64(mask)))
}

func (i *Image) RightShift(n int) *Image {
	return i.binary(graph.OpRightShift, Scalar(float64(n)))
}

func (i *Image) FocalMin(radius float64, units string) *Image {
	return &Image{node: graph.FocalMin(i.node, radius, units), bands: cloneBands(i.bands)}
}

func (i *Image) FocalMax(radius float64, units string) *Image {
	return &Image{node: graph.FocalMax(i.node, radius, units), bands: cloneBands(i.bands)}
}

// DirectionalDistanceTransform yields "distance" and "value" bands.
func (i *Image) DirectionalDistanceTransform(angle Operand, maxDistance float64) *Image {
	return &Image{
		node:  graph.DirectionalDistanceTransform(i.node, angle.Node(), maxDistance),
		bands: []string{"distance", "value"},
	}
}

// Reproject resamples onto the projection of like's first band.
func (i *Image) Reproject(like *Image, scale float64) *Image {
	first := graph.SelectIndex(like.node, 0)
	if len(like.bands) > 0 {
		first = graph.Select(like.node, like.bands[0])
	}
	crs := graph.Projection(first)
	return &Image{node: graph.Reproject(i.node, crs, scale), bands: cloneBands(i.bands)}
}
