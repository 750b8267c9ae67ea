// Package scaling converts stored integer bands to physical values with the
// per-platform scale and offset tables.
package scaling

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/band-algebra/internal/diag"
	"github.com/mohammed-shakir/band-algebra/internal/platform"
	"github.com/mohammed-shakir/band-algebra/internal/raster"
)

var (
	//go:embed data/scale.json
	bundledScale []byte
	//go:embed data/offset.json
	bundledOffset []byte
)

// Table is platform -> band -> value.
type Table map[string]map[string]float64

func LoadTables(scaleRaw, offsetRaw []byte) (scale, offset Table, err error) {
	if err := json.Unmarshal(scaleRaw, &scale); err != nil {
		return nil, nil, fmt.Errorf("scaling: decode scale table: %w", err)
	}
	if err := json.Unmarshal(offsetRaw, &offset); err != nil {
		return nil, nil, fmt.Errorf("scaling: decode offset table: %w", err)
	}
	return scale, offset, nil
}

type PlatformResolver interface {
	Resolve(ctx context.Context, r raster.Raster) (platform.Descriptor, error)
	BandNames(ctx context.Context, r raster.Raster) ([]string, error)
}

type Normalizer struct {
	resolver PlatformResolver
	scale    Table
	offset   Table
	log      *slog.Logger
}

// NewNormalizer uses the bundled tables.
func NewNormalizer(resolver PlatformResolver, log *slog.Logger) (*Normalizer, error) {
	scale, offset, err := LoadTables(bundledScale, bundledOffset)
	if err != nil {
		return nil, err
	}
	return NewNormalizerWithTables(resolver, scale, offset, log), nil
}

func NewNormalizerWithTables(resolver PlatformResolver, scale, offset Table, log *slog.Logger) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{resolver: resolver, scale: scale, offset: offset, log: log}
}

// Factors returns the scale and offset for a band (1 and 0 when absent) and
// whether either table has an entry.
func (n *Normalizer) Factors(platformID, band string) (scale, offset float64, ok bool) {
	scale, offset = 1, 0
	if v, found := n.scale[platformID][band]; found {
		scale, ok = v, true
	}
	if v, found := n.offset[platformID][band]; found {
		offset, ok = v, true
	}
	return scale, offset, ok
}

// ScaleAndOffset replaces every band with a table entry by b*scale+offset.
// Other bands pass through. When nothing applies the input is returned as is,
// so a second call on an unlisted band leaves it untouched.
func (n *Normalizer) ScaleAndOffset(ctx context.Context, r raster.Raster) (raster.Raster, diag.Warnings, error) {
	var warns diag.Warnings
	d, err := n.resolver.Resolve(ctx, r)
	if err != nil {
		var up *platform.UnsupportedPlatformError
		if !errors.As(err, &up) {
			return nil, nil, err
		}
		warns.Add(diag.CodeUnsupportedPlatform, up.ID, "scale and offset are not available for platform %s, image returned unchanged", up.ID)
		warns.Report(ctx, n.log, "scale")
		return r, warns, nil
	}
	if n.scale[d.ID] == nil && n.offset[d.ID] == nil {
		warns.Add(diag.CodeUnsupportedPlatform, d.ID, "platform %s has no scale or offset table, image returned unchanged", d.ID)
		warns.Report(ctx, n.log, "scale")
		return r, warns, nil
	}

	bands, err := n.resolver.BandNames(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	type factor struct {
		band          string
		scale, offset float64
	}
	var todo []factor
	for _, b := range bands {
		s, o, ok := n.Factors(d.ID, b)
		if ok && (s != 1 || o != 0) {
			todo = append(todo, factor{band: b, scale: s, offset: o})
		}
	}
	if len(todo) == 0 {
		return r, nil, nil
	}
	if r.Bands() == nil {
		r = raster.WithBands(r, bands)
	}
	out := raster.Apply(r, func(img *raster.Image) *raster.Image {
		res := img
		for _, f := range todo {
			v := img.Select(f.band)
			if f.scale != 1 {
				v = v.Multiply(raster.Scalar(f.scale))
			}
			if f.offset != 0 {
				v = v.Add(raster.Scalar(f.offset))
			}
			res = res.AddBands(v.Rename(f.band), true)
		}
		return res
	})
	n.log.DebugContext(ctx, "scale and offset applied", "platform", d.ID, "bands", len(todo))
	return out, nil, nil
}
