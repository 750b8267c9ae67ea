package raster

import (
	"slices"

	"github.com/mohammed-shakir/band-algebra/internal/graph"
)

// Collection is a deferred, homogeneous image collection.
type Collection struct {
	node    *graph.Node
	id      string
	firstID string
	bands   []string
}

var _ Raster = (*Collection)(nil)

// LoadCollection references a catalog collection. bands are the band names
// shared by its elements, when known.
func LoadCollection(id string, bands ...string) *Collection {
	var b []string
	if len(bands) > 0 {
		b = slices.Clone(bands)
	}
	return &Collection{node: graph.LoadCollection(id), id: id, bands: b}
}

// FromImages builds a collection from images assumed to share a platform.
func FromImages(images ...*Image) *Collection {
	nodes := make([]*graph.Node, len(images))
	for i, img := range images {
		nodes[i] = img.node
	}
	c := &Collection{node: graph.FromImages(nodes...)}
	if len(images) > 0 {
		c.firstID = images[0].id
		c.bands = cloneBands(images[0].bands)
	}
	return c
}

func (c *Collection) Node() *graph.Node { return c.node }

func (c *Collection) ID() string { return c.id }

func (c *Collection) Bands() []string { return cloneBands(c.bands) }

// Ident prefers the first element's id; homogeneity is assumed, not checked.
func (c *Collection) Ident() Ident {
	id := c.firstID
	if id == "" {
		id = c.id
	}
	first := graph.First(c.node)
	return Ident{
		ID:         id,
		Probe:      graph.Get(first, "system:id"),
		BandsProbe: graph.BandNames(first),
	}
}

func (c *Collection) apply(fn func(*Image) *Image) Raster { return c.Map(fn) }

func (c *Collection) lift(fn func(*Collection) *Collection) Raster { return fn(c) }

func (c *Collection) withBands(bands []string) Raster {
	out := *c
	out.bands = cloneBands(bands)
	return &out
}

// Map calls fn once on a placeholder element to build the per-image body.
// fn must be pure: the platform may evaluate it in any order.
func (c *Collection) Map(fn func(*Image) *Image) *Collection {
	placeholder := &Image{node: graph.Arg(MapVar), bands: cloneBands(c.bands)}
	body := fn(placeholder)
	return &Collection{
		node:    graph.Map(c.node, MapVar, body.node),
		id:      c.id,
		firstID: c.firstID,
		bands:   cloneBands(body.bands),
	}
}

func (c *Collection) FilterEq(property string, value Operand) *Collection {
	out := *c
	out.node = graph.FilterEq(c.node, property, value.Node())
	out.firstID = ""
	return &out
}

func (c *Collection) First() *Image {
	return &Image{node: graph.First(c.node), id: c.firstID, bands: cloneBands(c.bands)}
}

// JoinSaveFirst attaches to each element the first element of secondary with
// an equal key property, stored as the image property saveAs.
func (c *Collection) JoinSaveFirst(secondary *Collection, key, saveAs string) *Collection {
	out := *c
	out.node = graph.JoinSaveFirst(c.node, secondary.node, key, saveAs)
	return &out
}
