// Package spectral holds the index registry, the kernel parameter generator
// and the engine that appends index bands to images and collections.
package spectral

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mohammed-shakir/band-algebra/internal/core/observability"
	"github.com/mohammed-shakir/band-algebra/internal/formula"
)

//go:embed data/indices.json
var bundledIndices []byte

// DefaultRegistryURL serves the community spectral index catalog.
const DefaultRegistryURL = "https://raw.githubusercontent.com/awesome-spectral-indices/awesome-spectral-indices/main/output/spectral-indices-dict.json"

type Category string

const (
	CategoryVegetation Category = "vegetation"
	CategoryBurn       Category = "burn"
	CategoryWater      Category = "water"
	CategorySnow       Category = "snow"
	CategoryDrought    Category = "drought"
	CategoryKernel     Category = "kernel"
	CategoryUrban      Category = "urban"
	CategorySoil       Category = "soil"
)

// IndexDefinition is one named derived quantity. Definitions are shared
// read-only between calls.
type IndexDefinition struct {
	ShortName string   `json:"short_name"`
	LongName  string   `json:"long_name,omitempty"`
	Formula   string   `json:"formula"`
	Bands     []string `json:"bands"`
	Category  Category `json:"category"`
	Reference string   `json:"reference,omitempty"`

	expr *formula.Expr
}

// Expr returns the parsed formula.
func (d *IndexDefinition) Expr() *formula.Expr { return d.expr }

type rawDefinition struct {
	ShortName         string   `json:"short_name"`
	LongName          string   `json:"long_name"`
	Formula           string   `json:"formula"`
	Bands             []string `json:"bands"`
	Type              string   `json:"type"`
	ApplicationDomain string   `json:"application_domain"`
	Reference         string   `json:"reference"`
}

type Registry struct {
	defs     map[string]*IndexDefinition
	skipped  []string
	loadedAt time.Time
}

// ParseRegistry accepts {"NAME": {...}} or {"SpectralIndices": {"NAME": {...}}};
// the category comes from "type" or "application_domain". Entries whose
// formula falls outside the supported grammar are skipped and listed by
// Skipped.
func ParseRegistry(raw []byte) (*Registry, error) {
	var wrapped struct {
		SpectralIndices map[string]rawDefinition `json:"SpectralIndices"`
	}
	entries := map[string]rawDefinition{}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.SpectralIndices) > 0 {
		entries = wrapped.SpectralIndices
	} else if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("spectral: decode registry: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("spectral: registry is empty")
	}

	reg := &Registry{defs: make(map[string]*IndexDefinition, len(entries)), loadedAt: time.Now()}
	for key, e := range entries {
		name := e.ShortName
		if name == "" {
			name = key
		}
		cat := e.ApplicationDomain
		if cat == "" {
			cat = e.Type
		}
		expr, err := formula.Parse(e.Formula)
		if err != nil {
			reg.skipped = append(reg.skipped, name)
			continue
		}
		bands := slices.Clone(e.Bands)
		if len(bands) == 0 {
			bands = expr.Vars()
		}
		reg.defs[name] = &IndexDefinition{
			ShortName: name,
			LongName:  e.LongName,
			Formula:   e.Formula,
			Bands:     bands,
			Category:  Category(cat),
			Reference: e.Reference,
			expr:      expr,
		}
	}
	if len(reg.defs) == 0 {
		return nil, fmt.Errorf("spectral: registry has no usable definitions")
	}
	sort.Strings(reg.skipped)
	return reg, nil
}

// Skipped lists entries rejected at load time.
func (r *Registry) Skipped() []string { return slices.Clone(r.skipped) }

func (r *Registry) LoadedAt() time.Time { return r.loadedAt }

func (r *Registry) Lookup(name string) (*IndexDefinition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

func (r *Registry) Len() int { return len(r.defs) }

// Names returns every short name, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.defs))
}

// Categories returns the distinct categories, sorted.
func (r *Registry) Categories() []Category {
	seen := map[Category]struct{}{}
	for _, d := range r.defs {
		seen[d.Category] = struct{}{}
	}
	out := slices.Collect(maps.Keys(seen))
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) hasCategory(c Category) bool {
	for _, d := range r.defs {
		if d.Category == c {
			return true
		}
	}
	return false
}

// InCategory returns the short names of category c, sorted.
func (r *Registry) InCategory(c Category) []string {
	var out []string
	for name, d := range r.defs {
		if d.Category == c {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

var bundled = sync.OnceValues(func() (*Registry, error) { return ParseRegistry(bundledIndices) })

// Bundled returns the registry snapshot shipped with the binary.
func Bundled() (*Registry, error) { return bundled() }

// Registries selects between the bundled snapshot and a copy fetched from a
// remote catalog. The choice is made per call.
type Registries struct {
	url    string
	client *http.Client
	log    *slog.Logger

	mu     sync.RWMutex
	online *Registry
}

func NewRegistries(url string, client *http.Client, log *slog.Logger) *Registries {
	if url == "" {
		url = DefaultRegistryURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registries{url: url, client: client, log: log}
}

// Get returns the online registry when online is set (fetching it on first
// use), otherwise the bundled one.
func (rs *Registries) Get(ctx context.Context, online bool) (*Registry, error) {
	if !online {
		return Bundled()
	}
	rs.mu.RLock()
	r := rs.online
	rs.mu.RUnlock()
	if r != nil {
		return r, nil
	}
	return rs.Refresh(ctx)
}

// Refresh reloads the online registry. On failure the previous copy stays.
func (rs *Registries) Refresh(ctx context.Context) (*Registry, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rs.url, nil)
	if err != nil {
		return nil, fmt.Errorf("spectral: build registry request: %w", err)
	}
	resp, err := rs.client.Do(req)
	observability.ObserveUpstreamLatency("registry", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("spectral: fetch registry: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spectral: fetch registry: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("spectral: read registry: %w", err)
	}
	r, err := ParseRegistry(body)
	if err != nil {
		return nil, err
	}
	rs.mu.Lock()
	rs.online = r
	rs.mu.Unlock()
	rs.log.InfoContext(ctx, "online index registry refreshed", "indices", r.Len(), "skipped", len(r.skipped), "url", rs.url)
	return r, nil
}

// RefreshRegistry is Refresh for callers that only need the outcome.
func (rs *Registries) RefreshRegistry(ctx context.Context) error {
	_, err := rs.Refresh(ctx)
	return err
}
