package spectral

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mohammed-shakir/band-algebra/internal/core/observability"
	"github.com/mohammed-shakir/band-algebra/internal/diag"
	"github.com/mohammed-shakir/band-algebra/internal/formula"
	"github.com/mohammed-shakir/band-algebra/internal/graph"
	"github.com/mohammed-shakir/band-algebra/internal/platform"
	"github.com/mohammed-shakir/band-algebra/internal/raster"
)

// PlatformResolver is the part of platform.Resolver the engine needs.
type PlatformResolver interface {
	Resolve(ctx context.Context, r raster.Raster) (platform.Descriptor, error)
}

type IndexRequest struct {
	Selector Selector
	// Params override DefaultParams.
	Params map[string]float64
	Kernel KernelSpec
	// Online selects the refreshed registry instead of the bundled one.
	Online bool
}

type Engine struct {
	registries *Registries
	resolver   PlatformResolver
	log        *slog.Logger
}

func NewEngine(registries *Registries, resolver PlatformResolver, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{registries: registries, resolver: resolver, log: log}
}

// ComputeIndices appends one band per selected index to r. Kernel and platform
// problems fail the call before any per-image work; unknown indices and
// indices the platform lacks bands for are skipped with a warning.
func (e *Engine) ComputeIndices(ctx context.Context, r raster.Raster, req IndexRequest) (raster.Raster, diag.Warnings, error) {
	kernel := req.Kernel.WithDefaults()
	if err := ValidateKernel(kernel); err != nil {
		return nil, nil, err
	}
	reg, err := e.registries.Get(ctx, req.Online)
	if err != nil {
		return nil, nil, err
	}
	d, err := e.resolver.Resolve(ctx, r)
	if err != nil {
		return nil, nil, err
	}

	var warns diag.Warnings
	names, unknown := req.Selector.Expand(reg)
	for _, n := range unknown {
		observability.IncIndexOutcome("unknown")
		warns.Add(diag.CodeUnknownIndex, n, "index %s is not in the registry, skipped", n)
	}

	params := mergeParams(req.Params)
	codes := availableCodes(d, r.Bands())
	avail := availableNames(codes, params)

	var plan []*IndexDefinition
	needKernel := false
	for _, n := range names {
		def, _ := reg.Lookup(n)
		required := requiredNames(def)
		if missing := missingFrom(required, avail); len(missing) > 0 {
			observability.IncIndexOutcome("missing_bands")
			warns.Add(diag.CodeMissingBands, n, "platform %s lacks required bands for index %s: %s",
				d.ID, n, strings.Join(missing, ", "))
			continue
		}
		observability.IncIndexOutcome("computed")
		plan = append(plan, def)
		if usesKernel(required) {
			needKernel = true
		}
	}
	warns.Report(ctx, e.log, "indices")

	if len(plan) == 0 {
		return r, warns, nil
	}

	var lowerErr error
	out := raster.Apply(r, func(img *raster.Image) *raster.Image {
		vars := variableTable(img, d, codes, params)
		if needKernel {
			if err := addKernelPairs(vars, kernel); err != nil {
				lowerErr = err
				return img
			}
		}
		res := img
		for _, def := range plan {
			n, err := def.Expr().Lower(vars)
			if err != nil {
				lowerErr = fmt.Errorf("spectral: index %s: %w", def.ShortName, err)
				return img
			}
			band := raster.FromNode(graph.Rename(n, def.ShortName), def.ShortName)
			res = res.AddBands(band, true)
		}
		return res
	})
	if lowerErr != nil {
		return nil, warns, lowerErr
	}
	e.log.DebugContext(ctx, "indices computed", "platform", d.ID, "indices", len(plan), "warnings", len(warns))
	return out, warns, nil
}

// availableCodes returns the semantic codes of d whose native band is present
// in bands. Unknown band lists trust the alias table.
func availableCodes(d platform.Descriptor, bands []string) []string {
	var out []string
	for _, c := range d.Codes() {
		native, _ := d.Band(c)
		if bands == nil || slices.Contains(bands, native) {
			out = append(out, c)
		}
	}
	return out
}

func availableNames(codes []string, params map[string]float64) map[string]struct{} {
	avail := make(map[string]struct{}, len(codes)+len(params)+len(kernelPairs))
	for _, c := range codes {
		avail[c] = struct{}{}
	}
	for p := range params {
		avail[p] = struct{}{}
	}
	for _, p := range kernelPairs {
		_, okA := avail[p[0]]
		_, okB := avail[p[1]]
		if okA && okB {
			avail["k"+p[0]+p[1]] = struct{}{}
		}
	}
	return avail
}

// variableTable binds band codes to selections of img and parameters to
// constants. It is rebuilt for every image and always refers to img's
// original bands, so one index never sees another's output.
func variableTable(img *raster.Image, d platform.Descriptor, codes []string, params map[string]float64) formula.Table {
	vars := make(formula.Table, len(codes)+len(params))
	for _, c := range codes {
		native, _ := d.Band(c)
		vars[c] = graph.Select(img.Node(), native)
	}
	for name, v := range params {
		if _, ok := vars[name]; !ok {
			vars[name] = graph.Const(v)
		}
	}
	return vars
}

func requiredNames(def *IndexDefinition) []string {
	req := slices.Clone(def.Bands)
	for _, v := range def.Expr().Vars() {
		if !slices.Contains(req, v) {
			req = append(req, v)
		}
	}
	return req
}

func missingFrom(required []string, avail map[string]struct{}) []string {
	var out []string
	for _, r := range required {
		if _, ok := avail[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func usesKernel(names []string) bool {
	kn := KernelNames()
	for _, n := range names {
		if slices.Contains(kn, n) {
			return true
		}
	}
	return false
}
