// Package raster wraps deferred graph nodes in image, collection and number
// types so band algebra reads like ordinary method calls.
package raster

import (
	"slices"

	"github.com/mohammed-shakir/band-algebra/internal/graph"
)

// MapVar is the argument name bound by Collection.Map bodies.
const MapVar = "_img"

// Operand is anything that can appear on the right-hand side of an operator.
type Operand interface {
	Node() *graph.Node
}

// Ident carries what is known locally about a raster's identity, plus the
// graphs that recover it remotely when it is not.
type Ident struct {
	ID         string
	Probe      *graph.Node
	BandsProbe *graph.Node
}

// Raster is either a single *Image or a *Collection. The set is closed.
type Raster interface {
	Operand
	Bands() []string
	Ident() Ident
	apply(fn func(*Image) *Image) Raster
	lift(fn func(*Collection) *Collection) Raster
	withBands(bands []string) Raster
}

// Apply runs fn on an image directly, or on every element of a collection
// through a deferred map.
func Apply(r Raster, fn func(*Image) *Image) Raster {
	return r.apply(fn)
}

// Lift runs a collection-level transform on r. A single image is wrapped in
// a one-element collection and unwrapped again afterwards, so both variants
// share one code path.
func Lift(r Raster, fn func(*Collection) *Collection) Raster {
	return r.lift(fn)
}

// WithBands returns r annotated with band names recovered remotely.
func WithBands(r Raster, bands []string) Raster {
	return r.withBands(bands)
}

// Scalar wraps a constant.
func Scalar(v float64) Number {
	return Number{node: graph.Const(v)}
}

type Number struct {
	node *graph.Node
}

func (n Number) Node() *graph.Node { return n.node }

func (n Number) binary(op graph.Op, o Operand) Number {
	return Number{graph.Binary(op, n.node, o.Node())}
}

func (n Number) Add(o Operand) Number      { return n.binary(graph.OpAdd, o) }
func (n Number) Subtract(o Operand) Number { return n.binary(graph.OpSubtract, o) }
func (n Number) Multiply(o Operand) Number { return n.binary(graph.OpMultiply, o) }
func (n Number) Divide(o Operand) Number   { return n.binary(graph.OpDivide, o) }

func cloneBands(b []string) []string {
	if b == nil {
		return nil
	}
	return slices.Clone(b)
}
