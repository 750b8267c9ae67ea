// Package router exposes the band algebra operations as a JSON API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/band-algebra/internal/cloudmask"
	"github.com/mohammed-shakir/band-algebra/internal/core/model"
	"github.com/mohammed-shakir/band-algebra/internal/diag"
	"github.com/mohammed-shakir/band-algebra/internal/formula"
	"github.com/mohammed-shakir/band-algebra/internal/graph"
	mylog "github.com/mohammed-shakir/band-algebra/internal/logger"
	"github.com/mohammed-shakir/band-algebra/internal/materialize"
	"github.com/mohammed-shakir/band-algebra/internal/platform"
	"github.com/mohammed-shakir/band-algebra/internal/raster"
	"github.com/mohammed-shakir/band-algebra/internal/spectral"
	"github.com/mohammed-shakir/band-algebra/internal/summary"
)

type Resolver interface {
	Resolve(ctx context.Context, r raster.Raster) (platform.Descriptor, error)
	ResolveID(id string) (platform.Descriptor, error)
	Table() *platform.Table
}

type Indexer interface {
	ComputeIndices(ctx context.Context, r raster.Raster, req spectral.IndexRequest) (raster.Raster, diag.Warnings, error)
}

type Masker interface {
	MaskClouds(ctx context.Context, r raster.Raster, opts cloudmask.Options) (raster.Raster, diag.Warnings, error)
}

type Normalizer interface {
	ScaleAndOffset(ctx context.Context, r raster.Raster) (raster.Raster, diag.Warnings, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, img *raster.Image, platformID string, region model.Region, res int, band string) (*summary.Result, error)
}

type RegistrySource interface {
	Get(ctx context.Context, online bool) (*spectral.Registry, error)
}

// Deps are the services behind the API. Summaries is optional; without it
// /v1/summary answers 503.
type Deps struct {
	Resolver   Resolver
	Catalog    *platform.Catalog
	Registries RegistrySource
	Indexer    Indexer
	Masker     Masker
	Normalizer Normalizer
	Summaries  Summarizer
	// Cells outlines summary cells for GeoJSON responses.
	Cells      summary.CellOutliner
	DefaultRes int
}

type api struct {
	Deps
	log *slog.Logger
}

// Mount registers the /v1 routes on r.
func Mount(r chi.Router, logger *slog.Logger, d Deps) {
	a := &api{Deps: d, log: logger}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", a.resolve)
		r.Post("/indices", a.indices)
		r.Get("/indices", a.listIndices)
		r.Get("/indices/categories", a.listCategories)
		r.Post("/mask", a.mask)
		r.Post("/scale", a.scale)
		r.Post("/summary", a.summarize)
		r.Get("/platforms", a.listPlatforms)
		r.Get("/platforms/*", a.platform)
	})
}

type rasterResponse struct {
	Platform string        `json:"platform,omitempty"`
	Bands    []string      `json:"bands"`
	Graph    *graph.Node   `json:"graph"`
	Warnings diag.Warnings `json:"warnings"`
}

// respond resolves the platform for the response header without failing the
// call; operations that tolerate unknown platforms already warned about it.
func (a *api) respond(w http.ResponseWriter, r *http.Request, out raster.Raster, warns diag.Warnings) {
	resp := rasterResponse{Bands: out.Bands(), Graph: out.Node(), Warnings: warns}
	if d, err := a.Resolver.Resolve(r.Context(), out); err == nil {
		resp.Platform = d.ID
	}
	if resp.Warnings == nil {
		resp.Warnings = diag.Warnings{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) resolve(w http.ResponseWriter, r *http.Request) {
	var body resolveBody
	if err := decode(r, &body); err != nil {
		a.fail(w, r, "resolve", err)
		return
	}
	rs, err := rasterFrom(body.RasterRef)
	if err != nil {
		a.fail(w, r, "resolve", err)
		return
	}
	d, err := a.Resolver.Resolve(r.Context(), rs)
	if err != nil {
		a.fail(w, r, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, a.describe(d))
}

func (a *api) indices(w http.ResponseWriter, r *http.Request) {
	var body indicesBody
	if err := decode(r, &body); err != nil {
		a.fail(w, r, "indices", err)
		return
	}
	rs, err := rasterFrom(body.RasterRef)
	if err != nil {
		a.fail(w, r, "indices", err)
		return
	}
	ctx := mylog.WithOperation(r.Context(), "indices")
	out, warns, err := a.Indexer.ComputeIndices(ctx, rs, body.request())
	if err != nil {
		a.fail(w, r, "indices", err)
		return
	}
	a.respond(w, r, out, warns)
}

func (a *api) mask(w http.ResponseWriter, r *http.Request) {
	var body maskBody
	if err := decode(r, &body); err != nil {
		a.fail(w, r, "mask", err)
		return
	}
	rs, err := rasterFrom(body.RasterRef)
	if err != nil {
		a.fail(w, r, "mask", err)
		return
	}
	ctx := mylog.WithOperation(r.Context(), "mask")
	out, warns, err := a.Masker.MaskClouds(ctx, rs, body.Options.options())
	if err != nil {
		a.fail(w, r, "mask", err)
		return
	}
	a.respond(w, r, out, warns)
}

func (a *api) scale(w http.ResponseWriter, r *http.Request) {
	var body scaleBody
	if err := decode(r, &body); err != nil {
		a.fail(w, r, "scale", err)
		return
	}
	rs, err := rasterFrom(body.RasterRef)
	if err != nil {
		a.fail(w, r, "scale", err)
		return
	}
	ctx := mylog.WithOperation(r.Context(), "scale")
	out, warns, err := a.Normalizer.ScaleAndOffset(ctx, rs)
	if err != nil {
		a.fail(w, r, "scale", err)
		return
	}
	a.respond(w, r, out, warns)
}

type summaryResponse struct {
	*summary.Result
	Warnings diag.Warnings `json:"warnings"`
}

func (a *api) summarize(w http.ResponseWriter, r *http.Request) {
	if a.Summaries == nil {
		writeError(w, http.StatusServiceUnavailable, "summaries are not configured")
		return
	}
	var body summaryBody
	if err := decode(r, &body); err != nil {
		a.fail(w, r, "summary", err)
		return
	}
	if err := body.validate(); err != nil {
		a.fail(w, r, "summary", err)
		return
	}
	rs, err := rasterFrom(body.RasterRef)
	if err != nil {
		a.fail(w, r, "summary", err)
		return
	}
	ctx := mylog.WithOperation(r.Context(), "summary")
	d, err := a.Resolver.Resolve(ctx, rs)
	if err != nil {
		a.fail(w, r, "summary", err)
		return
	}
	ctx = mylog.WithPlatform(ctx, d.ID)

	var warns diag.Warnings
	step := func(out raster.Raster, ws diag.Warnings, err error) error {
		if err != nil {
			return err
		}
		rs = out
		warns = append(warns, ws...)
		return nil
	}
	if body.Mask != nil {
		if err := step(a.Masker.MaskClouds(ctx, rs, body.Mask.options())); err != nil {
			a.fail(w, r, "summary", err)
			return
		}
	}
	if body.Scale {
		if err := step(a.Normalizer.ScaleAndOffset(ctx, rs)); err != nil {
			a.fail(w, r, "summary", err)
			return
		}
	}
	band := body.Band
	if body.Index != "" {
		if err := step(a.Indexer.ComputeIndices(ctx, rs, spectral.IndexRequest{Selector: spectral.Names(body.Index)})); err != nil {
			a.fail(w, r, "summary", err)
			return
		}
		if warns.About(body.Index, diag.CodeUnknownIndex, diag.CodeMissingBands) {
			a.fail(w, r, "summary", fmt.Errorf("%w: index %s cannot be computed for %s", summary.ErrInvalidRequest, body.Index, d.ID))
			return
		}
		band = body.Index
	}
	img, ok := rs.(*raster.Image)
	if !ok {
		a.fail(w, r, "summary", badRequest("summaries reduce a single image"))
		return
	}
	res := a.DefaultRes
	if body.Res != nil {
		res = *body.Res
	}
	out, err := a.Summaries.Summarize(ctx, img, d.ID, body.Region, res, band)
	if err != nil {
		a.fail(w, r, "summary", err)
		return
	}
	if warns == nil {
		warns = diag.Warnings{}
	}
	if negotiate(r.URL.Query().Get("format"), r.Header.Get("Accept")) == formatGeoJSON && a.Cells != nil {
		fc, err := out.FeatureCollection(a.Cells)
		if err != nil {
			a.fail(w, r, "summary", err)
			return
		}
		fc.ExtraMembers["warnings"] = warns
		writeAs(w, contentGeoJSON, http.StatusOK, fc)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Result: out, Warnings: warns})
}

func (a *api) listIndices(w http.ResponseWriter, r *http.Request) {
	online, _ := strconv.ParseBool(r.URL.Query().Get("online"))
	reg, err := a.Registries.Get(r.Context(), online)
	if err != nil {
		a.fail(w, r, "list_indices", err)
		return
	}
	names := reg.Names()
	if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" {
		names = reg.InCategory(spectral.Category(c))
	}
	out := make([]*spectral.IndexDefinition, 0, len(names))
	for _, n := range names {
		if def, ok := reg.Lookup(n); ok {
			out = append(out, def)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "indices": out, "loadedAt": reg.LoadedAt()})
}

func (a *api) listCategories(w http.ResponseWriter, r *http.Request) {
	online, _ := strconv.ParseBool(r.URL.Query().Get("online"))
	reg, err := a.Registries.Get(r.Context(), online)
	if err != nil {
		a.fail(w, r, "list_categories", err)
		return
	}
	cats := reg.Categories()
	out := make([]map[string]any, 0, len(cats))
	for _, c := range cats {
		out = append(out, map[string]any{"category": c, "count": len(reg.InCategory(c))})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

type platformInfo struct {
	ID                 string                 `json:"id"`
	Family             platform.Family        `json:"family"`
	SurfaceReflectance bool                   `json:"surfaceReflectance"`
	Bands              map[string]string      `json:"bands"`
	Catalog            *platform.CatalogEntry `json:"catalog,omitempty"`
}

func (a *api) describe(d platform.Descriptor) platformInfo {
	info := platformInfo{ID: d.ID, Family: d.Family, SurfaceReflectance: d.SurfaceReflectance, Bands: d.Aliases()}
	if a.Catalog != nil {
		if e, ok := a.Catalog.Entry(d.ID); ok {
			info.Catalog = &e
		}
	}
	return info
}

func (a *api) listPlatforms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"platforms": a.Resolver.Table().IDs()})
}

// platform looks up an id containing slashes, e.g. /v1/platforms/COPERNICUS/S2_SR.
func (a *api) platform(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(chi.URLParam(r, "*"), "/")
	d, err := a.Resolver.ResolveID(id)
	if err != nil {
		a.fail(w, r, "platform", err)
		return
	}
	writeJSON(w, http.StatusOK, a.describe(d))
}

// statusFor maps an operation error onto the response status: malformed
// input is 400, conditions the operation cannot proceed under are 422.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, platform.ErrUnsupportedPlatform),
		errors.Is(err, spectral.ErrInvalidKernelParameter),
		errors.Is(err, cloudmask.ErrInvalidOption),
		errors.Is(err, summary.ErrInvalidRequest),
		errors.Is(err, formula.ErrSyntax),
		errors.Is(err, formula.ErrUndefinedVariable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, materialize.ErrRemote):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	lvl := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		lvl = slog.LevelError
	}
	a.log.Log(mylog.WithOperation(r.Context(), op), lvl, "request failed", "status", status, "err", err)
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	writeAs(w, contentJSON, status, v)
}

func writeAs(w http.ResponseWriter, contentType string, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
