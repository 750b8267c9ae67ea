// Package summary computes per-H3-cell zonal means of one band and caches
// them in Redis hashes keyed by platform, resolution and cell.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/band-algebra/internal/cache"
	"github.com/mohammed-shakir/band-algebra/internal/cache/keys"
	"github.com/mohammed-shakir/band-algebra/internal/core/model"
	"github.com/mohammed-shakir/band-algebra/internal/graph"
	"github.com/mohammed-shakir/band-algebra/internal/raster"
)

const Reducer = "mean"

var ErrInvalidRequest = errors.New("invalid summary request")

// CellMapper covers regions with cells and renders cell outlines.
type CellMapper interface {
	CellsForRegion(r model.Region, res int) (model.Cells, error)
	CellGeoJSON(cell string) ([]byte, error)
}

type Materializer interface {
	Value(ctx context.Context, n *graph.Node) (json.RawMessage, error)
}

type Config struct {
	ResMin, ResMax int
	MaxCells       int
	Workers        int
	// Scale is the pixel size in meters the reduction runs at.
	Scale float64
	TTL   time.Duration
	// TTLFor overrides TTL per platform when set.
	TTLFor    func(platform string) time.Duration
	OpTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ResMin:    5,
		ResMax:    10,
		MaxCells:  2000,
		Workers:   8,
		Scale:     30,
		TTL:       time.Hour,
		OpTimeout: 250 * time.Millisecond,
	}
}

type CellValue struct {
	Cell   string          `json:"cell"`
	Value  json.RawMessage `json:"value"`
	Cached bool            `json:"cached"`
}

type Result struct {
	Platform string      `json:"platform"`
	Res      int         `json:"res"`
	Band     string      `json:"band"`
	Reducer  string      `json:"reducer"`
	Cells    []CellValue `json:"cells"`
}

type Summarizer struct {
	cfg    Config
	mapper CellMapper
	mat    Materializer
	store  cache.SummaryStore
	log    *slog.Logger
}

// New builds a Summarizer; store may be nil to disable caching.
func New(cfg Config, m CellMapper, mat Materializer, store cache.SummaryStore, log *slog.Logger) *Summarizer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Summarizer{cfg: cfg, mapper: m, mat: mat, store: store, log: log}
}

// Summarize reduces band of img over every cell covering region at res.
func (s *Summarizer) Summarize(ctx context.Context, img *raster.Image, platformID string, region model.Region, res int, band string) (*Result, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidRequest)
	}
	if res < s.cfg.ResMin || res > s.cfg.ResMax {
		return nil, fmt.Errorf("%w: res %d outside [%d, %d]", ErrInvalidRequest, res, s.cfg.ResMin, s.cfg.ResMax)
	}
	if band == "" {
		return nil, fmt.Errorf("%w: band is required", ErrInvalidRequest)
	}
	if bands := img.Bands(); len(bands) > 0 && !slices.Contains(bands, band) {
		return nil, fmt.Errorf("%w: band %q not in %v", ErrInvalidRequest, band, bands)
	}
	cells, err := s.mapper.CellsForRegion(region, res)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if s.cfg.MaxCells > 0 && len(cells) > s.cfg.MaxCells {
		return nil, fmt.Errorf("%w: region covers %d cells at res %d (max %d)", ErrInvalidRequest, len(cells), res, s.cfg.MaxCells)
	}

	sel := img.Select(band).Node()
	field := keys.Field(graph.Fingerprint(sel))
	cacheKeys := make([]string, len(cells))
	for i, c := range cells {
		cacheKeys[i] = keys.SummaryKey(platformID, res, c)
	}

	out := &Result{Platform: platformID, Res: res, Band: band, Reducer: Reducer, Cells: make([]CellValue, len(cells))}
	hits := s.lookup(ctx, cacheKeys, field)

	var missing []int
	for i, c := range cells {
		out.Cells[i].Cell = c
		if v, ok := hits[cacheKeys[i]]; ok {
			out.Cells[i].Value = v
			out.Cells[i].Cached = true
			continue
		}
		missing = append(missing, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, i := range missing {
		g.Go(func() error {
			geom, err := s.mapper.CellGeoJSON(cells[i])
			if err != nil {
				return fmt.Errorf("cell %s: %w", cells[i], err)
			}
			v, err := s.mat.Value(gctx, graph.ReduceRegion(sel, Reducer, geom, s.cfg.Scale))
			if err != nil {
				return fmt.Errorf("cell %s: %w", cells[i], err)
			}
			out.Cells[i].Value = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fill := make(map[string][]byte, len(missing))
	for _, i := range missing {
		fill[cacheKeys[i]] = out.Cells[i].Value
	}
	s.fill(ctx, fill, field, s.ttl(platformID))

	s.log.DebugContext(ctx, "summary computed",
		"platform", platformID, "res", res, "band", band,
		"cells", len(cells), "cached", len(cells)-len(missing))
	return out, nil
}

func (s *Summarizer) lookup(ctx context.Context, cacheKeys []string, field string) map[string][]byte {
	if s.store == nil || len(cacheKeys) == 0 {
		return nil
	}
	cctx, cancel := s.opContext(ctx)
	defer cancel()
	hits, err := s.store.HMGetField(cctx, cacheKeys, field)
	if err != nil {
		s.log.WarnContext(ctx, "summary cache read failed", "err", err, "keys", len(cacheKeys))
		return nil
	}
	return hits
}

func (s *Summarizer) ttl(platform string) time.Duration {
	if s.cfg.TTLFor != nil {
		return s.cfg.TTLFor(platform)
	}
	return s.cfg.TTL
}

func (s *Summarizer) fill(ctx context.Context, kv map[string][]byte, field string, ttl time.Duration) {
	if s.store == nil || len(kv) == 0 {
		return
	}
	cctx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.store.HSetFieldWithTTL(cctx, kv, field, ttl); err != nil {
		s.log.WarnContext(ctx, "summary cache write failed", "err", err, "keys", len(kv))
	}
}

func (s *Summarizer) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OpTimeout)
}
