package cloudmask

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mohammed-shakir/band-algebra/internal/core/observability"
	"github.com/mohammed-shakir/band-algebra/internal/diag"
	"github.com/mohammed-shakir/band-algebra/internal/platform"
	"github.com/mohammed-shakir/band-algebra/internal/raster"
)

type PlatformResolver interface {
	Resolve(ctx context.Context, r raster.Raster) (platform.Descriptor, error)
}

type Masker struct {
	resolver PlatformResolver
	log      *slog.Logger
}

func NewMasker(resolver PlatformResolver, log *slog.Logger) *Masker {
	if log == nil {
		log = slog.Default()
	}
	return &Masker{resolver: resolver, log: log}
}

// MaskClouds hides cloud (and optionally shadow) pixels of r. Platforms
// without mask rules yield a single warning and r unchanged.
func (m *Masker) MaskClouds(ctx context.Context, r raster.Raster, opts Options) (raster.Raster, diag.Warnings, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	var warns diag.Warnings
	d, err := m.resolver.Resolve(ctx, r)
	if err != nil {
		var up *platform.UnsupportedPlatformError
		if !errors.As(err, &up) {
			return nil, nil, err
		}
		warns.Add(diag.CodeUnsupportedPlatform, up.ID, "cloud masking is not supported for platform %s, image returned unmasked", up.ID)
		warns.Report(ctx, m.log, "mask")
		return r, warns, nil
	}

	if d.Family == platform.FamilySentinel2 {
		observability.IncMaskPipeline(string(d.Family), string(opts.Method))
		return s2Pipeline{opts: opts, desc: d}.run(r), nil, nil
	}

	rules := bitmaskRules(d)
	if rules == nil {
		warns.Add(diag.CodeUnsupportedPlatform, d.ID, "platform %s has no quality band to mask clouds with, image returned unmasked", d.ID)
		warns.Report(ctx, m.log, "mask")
		return r, warns, nil
	}
	observability.IncMaskPipeline(string(d.Family), "bitmask")
	return raster.Apply(r, func(img *raster.Image) *raster.Image {
		return maskBitmask(img, rules, opts)
	}), nil, nil
}
