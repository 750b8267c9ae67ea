// Package graph defines the deferred computation description that the remote
// raster platform executes. Nothing in this package touches pixels.
package graph

import (
	"encoding/json"
	"fmt"
	"math"
)

type Op string

const (
	OpLoadImage      Op = "Image.load"
	OpLoadCollection Op = "ImageCollection.load"
	OpFromImages     Op = "ImageCollection.fromImages"
	OpArgument       Op = "ArgumentRef"
	OpConstant       Op = "Constant"

	OpSelect   Op = "Image.select"
	OpRename   Op = "Image.rename"
	OpAddBands Op = "Image.addBands"
	OpMask     Op = "Image.mask"
	OpUpdate   Op = "Image.updateMask"
	OpGet      Op = "Element.get"
	OpBandList Op = "Image.bandNames"

	OpAdd      Op = "add"
	OpSubtract Op = "subtract"
	OpMultiply Op = "multiply"
	OpDivide   Op = "divide"
	OpPow      Op = "pow"
	OpExp      Op = "exp"

	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpGt  Op = "gt"
	OpGte Op = "gte"

	OpAnd        Op = "and"
	OpOr         Op = "or"
	OpNot        Op = "not"
	OpBitwiseAnd Op = "bitwiseAnd"
	OpRightShift Op = "rightShift"

	OpFocalMin      Op = "Image.focalMin"
	OpFocalMax      Op = "Image.focalMax"
	OpDirectionalDT Op = "Image.directionalDistanceTransform"
	OpReproject     Op = "Image.reproject"
	OpProjection    Op = "Image.projection"
	OpReduceRegion  Op = "Image.reduceRegion"

	OpMap       Op = "Collection.map"
	OpFilterEq  Op = "Collection.filterEq"
	OpFirst     Op = "Collection.first"
	OpJoinFirst Op = "Join.saveFirst"
	OpCDI       Op = "Algorithms.Sentinel2.CDI"
)

// Node is one operation in a deferred description. A node is never mutated
// after construction; builders always return new nodes.
type Node struct {
	Op     Op             `json:"op"`
	Args   []*Node        `json:"args,omitempty"`
	Name   string         `json:"name,omitempty"`
	Names  []string       `json:"names,omitempty"`
	Value  *float64       `json:"value,omitempty"`
	Params map[string]any `json:"params,omitempty"`
	Body   *Node          `json:"body,omitempty"`
}

func (n *Node) String() string {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Sprintf("<%s: %v>", n.Op, err)
	}
	return string(b)
}

// IsConst reports whether n is a constant and returns its value.
func (n *Node) IsConst() (float64, bool) {
	if n == nil || n.Op != OpConstant || n.Value == nil {
		return 0, false
	}
	return *n.Value, true
}

func Const(v float64) *Node {
	return &Node{Op: OpConstant, Value: &v}
}

func LoadImage(id string) *Node {
	return &Node{Op: OpLoadImage, Name: id}
}

func LoadCollection(id string) *Node {
	return &Node{Op: OpLoadCollection, Name: id}
}

func FromImages(images ...*Node) *Node {
	return &Node{Op: OpFromImages, Args: images}
}

// Arg references the element bound by an enclosing Map.
func Arg(name string) *Node {
	return &Node{Op: OpArgument, Name: name}
}

func Select(img *Node, bands ...string) *Node {
	return &Node{Op: OpSelect, Args: []*Node{img}, Names: append([]string(nil), bands...)}
}

// SelectIndex selects one band by position, for images whose band names are
// not known locally.
func SelectIndex(img *Node, index int) *Node {
	return &Node{Op: OpSelect, Args: []*Node{img}, Params: map[string]any{"index": index}}
}

func Rename(img *Node, names ...string) *Node {
	return &Node{Op: OpRename, Args: []*Node{img}, Names: append([]string(nil), names...)}
}

func AddBands(dst, src *Node, overwrite bool) *Node {
	n := &Node{Op: OpAddBands, Args: []*Node{dst, src}}
	if overwrite {
		n.Params = map[string]any{"overwrite": true}
	}
	return n
}

func UpdateMask(img, mask *Node) *Node {
	return &Node{Op: OpUpdate, Args: []*Node{img, mask}}
}

func Mask(img *Node) *Node {
	return &Node{Op: OpMask, Args: []*Node{img}}
}

func Get(elem *Node, property string) *Node {
	return &Node{Op: OpGet, Args: []*Node{elem}, Name: property}
}

func BandNames(img *Node) *Node {
	return &Node{Op: OpBandList, Args: []*Node{img}}
}

// Binary builds an arithmetic, comparison or logical node. Arithmetic on two
// constants is folded, except division by a zero constant.
func Binary(op Op, a, b *Node) *Node {
	if av, ok := a.IsConst(); ok {
		if bv, ok := b.IsConst(); ok {
			if v, ok := foldBinary(op, av, bv); ok {
				return Const(v)
			}
		}
	}
	return &Node{Op: op, Args: []*Node{a, b}}
}

func Unary(op Op, a *Node) *Node {
	if av, ok := a.IsConst(); ok {
		if v, ok := foldUnary(op, av); ok {
			return Const(v)
		}
	}
	return &Node{Op: op, Args: []*Node{a}}
}

func Neg(a *Node) *Node {
	return Binary(OpMultiply, a, Const(-1))
}

func FocalMin(img *Node, radius float64, units string) *Node {
	return &Node{Op: OpFocalMin, Args: []*Node{img}, Params: map[string]any{"radius": radius, "units": units, "kernelType": "circle"}}
}

func FocalMax(img *Node, radius float64, units string) *Node {
	return &Node{Op: OpFocalMax, Args: []*Node{img}, Params: map[string]any{"radius": radius, "units": units, "kernelType": "circle"}}
}

// DirectionalDistanceTransform projects non-zero pixels of img along angle
// (degrees, node so it can stay deferred) out to maxDistance pixels.
func DirectionalDistanceTransform(img, angle *Node, maxDistance float64) *Node {
	return &Node{Op: OpDirectionalDT, Args: []*Node{img, angle}, Params: map[string]any{"maxDistance": maxDistance}}
}

func Projection(img *Node) *Node {
	return &Node{Op: OpProjection, Args: []*Node{img}}
}

func Reproject(img, crs *Node, scale float64) *Node {
	return &Node{Op: OpReproject, Args: []*Node{img, crs}, Params: map[string]any{"scale": scale}}
}

// ReduceRegion reduces img over a GeoJSON geometry with the named reducer.
func ReduceRegion(img *Node, reducer string, geometry json.RawMessage, scale float64) *Node {
	return &Node{Op: OpReduceRegion, Args: []*Node{img}, Name: reducer, Params: map[string]any{
		"geometry": geometry,
		"scale":    scale,
	}}
}

// Map applies body to every element of coll; body refers to the element via
// Arg(varName).
func Map(coll *Node, varName string, body *Node) *Node {
	return &Node{Op: OpMap, Args: []*Node{coll}, Name: varName, Body: body}
}

func FilterEq(coll *Node, property string, value *Node) *Node {
	return &Node{Op: OpFilterEq, Args: []*Node{coll, value}, Name: property}
}

func First(coll *Node) *Node {
	return &Node{Op: OpFirst, Args: []*Node{coll}}
}

// JoinSaveFirst attaches to each primary element the first secondary element
// whose matchKey property is equal, stored under the property saveAs.
func JoinSaveFirst(primary, secondary *Node, matchKey, saveAs string) *Node {
	return &Node{Op: OpJoinFirst, Args: []*Node{primary, secondary}, Name: saveAs, Params: map[string]any{
		"leftField":  matchKey,
		"rightField": matchKey,
	}}
}

func CloudDisplacementIndex(toa *Node) *Node {
	return &Node{Op: OpCDI, Args: []*Node{toa}}
}

func foldBinary(op Op, a, b float64) (float64, bool) {
	switch op {
	case OpAdd:
		return a + b, true
	case OpSubtract:
		return a - b, true
	case OpMultiply:
		return a * b, true
	case OpDivide:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case OpPow:
		v := math.Pow(a, b)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

func foldUnary(op Op, a float64) (float64, bool) {
	if op == OpExp {
		v := math.Exp(a)
		if math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
