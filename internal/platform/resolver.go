package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/band-algebra/internal/core/observability"
	"github.com/mohammed-shakir/band-algebra/internal/graph"
	"github.com/mohammed-shakir/band-algebra/internal/raster"
)

// Materializer fetches the concrete value of a deferred description.
type Materializer interface {
	Value(ctx context.Context, n *graph.Node) (json.RawMessage, error)
}

// Resolver identifies the platform of an image or collection. Identities that
// had to be fetched remotely are memoized by the fingerprint of the probe, so
// callers resolving the same derived raster repeatedly pay the round trip once.
type Resolver struct {
	table *Table
	mat   Materializer
	log   *slog.Logger
	ids   *lru.Cache[uint64, string]
	bands *lru.Cache[uint64, []string]
}

func NewResolver(table *Table, mat Materializer, cacheSize int, log *slog.Logger) *Resolver {
	if table == nil {
		table = Default()
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	ids, _ := lru.New[uint64, string](cacheSize)
	bands, _ := lru.New[uint64, []string](cacheSize)
	return &Resolver{table: table, mat: mat, log: log, ids: ids, bands: bands}
}

func (r *Resolver) Table() *Table { return r.table }

// Resolve returns the descriptor of r's platform. For a collection the first
// element decides; homogeneity is not checked.
func (r *Resolver) Resolve(ctx context.Context, rs raster.Raster) (Descriptor, error) {
	ident := rs.Ident()
	id, outcome, err := r.identify(ctx, ident)
	if err != nil {
		observability.IncResolution("error")
		return Descriptor{}, err
	}
	d, err := r.ResolveID(id)
	if err != nil {
		observability.IncResolution("unsupported")
		return Descriptor{}, err
	}
	observability.IncResolution(outcome)
	r.log.DebugContext(ctx, "platform resolved", "id", id, "platform", d.ID, "outcome", outcome)
	return d, nil
}

// ResolveID matches an asset id without any remote lookup.
func (r *Resolver) ResolveID(id string) (Descriptor, error) {
	if id == "" {
		return Descriptor{}, &UnsupportedPlatformError{Reason: "empty identifier"}
	}
	d, ok := r.table.Match(id)
	if !ok {
		return Descriptor{}, &UnsupportedPlatformError{ID: id}
	}
	return d, nil
}

func (r *Resolver) identify(ctx context.Context, ident raster.Ident) (string, string, error) {
	if ident.ID != "" {
		return ident.ID, "local", nil
	}
	key := graph.Fingerprint(ident.Probe)
	if id, ok := r.ids.Get(key); ok {
		return id, "memo", nil
	}
	if r.mat == nil {
		return "", "", &UnsupportedPlatformError{Reason: "identifier unknown and no materializer configured"}
	}
	raw, err := r.mat.Value(ctx, ident.Probe)
	if err != nil {
		return "", "", fmt.Errorf("platform: fetch system:id: %w", err)
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", "", fmt.Errorf("platform: decode system:id: %w", err)
	}
	if id == "" {
		return "", "", &UnsupportedPlatformError{Reason: "image has no system:id"}
	}
	r.ids.Add(key, id)
	return id, "remote", nil
}

// BandNames returns rs's band names, fetching them remotely when they are not
// known locally.
func (r *Resolver) BandNames(ctx context.Context, rs raster.Raster) ([]string, error) {
	if b := rs.Bands(); b != nil {
		return b, nil
	}
	probe := rs.Ident().BandsProbe
	key := graph.Fingerprint(probe)
	if b, ok := r.bands.Get(key); ok {
		return append([]string(nil), b...), nil
	}
	if r.mat == nil {
		return nil, fmt.Errorf("platform: band names unknown and no materializer configured")
	}
	raw, err := r.mat.Value(ctx, probe)
	if err != nil {
		return nil, fmt.Errorf("platform: fetch band names: %w", err)
	}
	var b []string
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("platform: decode band names: %w", err)
	}
	r.bands.Add(key, b)
	return append([]string(nil), b...), nil
}
