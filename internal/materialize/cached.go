package materialize

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/band-algebra/internal/cache"
	"github.com/mohammed-shakir/band-algebra/internal/cache/keys"
	"github.com/mohammed-shakir/band-algebra/internal/graph"
)

// Cached serves values of structurally identical descriptions from Redis.
// Cache failures fall through to the wrapped client.
type Cached struct {
	next  Client
	store cache.ValueStore
	ttl   time.Duration
	opTO  time.Duration
	log   *slog.Logger
}

func NewCached(next Client, store cache.ValueStore, ttl, opTimeout time.Duration, log *slog.Logger) *Cached {
	if log == nil {
		log = slog.Default()
	}
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	return &Cached{next: next, store: store, ttl: ttl, opTO: opTimeout, log: log}
}

func (c *Cached) Value(ctx context.Context, n *graph.Node) (json.RawMessage, error) {
	key := keys.ValueKey(graph.Fingerprint(n))

	gctx, cancel := context.WithTimeout(ctx, c.opTO)
	v, ok, err := c.store.Get(gctx, key)
	cancel()
	if err != nil {
		c.log.WarnContext(ctx, "value cache read failed", "key", key, "err", err)
	} else if ok {
		return json.RawMessage(v), nil
	}

	v, err = c.next.Value(ctx, n)
	if err != nil {
		return nil, err
	}
	sctx, cancel := context.WithTimeout(ctx, c.opTO)
	defer cancel()
	if err := c.store.Set(sctx, key, v, c.ttl); err != nil {
		c.log.WarnContext(ctx, "value cache write failed", "key", key, "err", err)
	}
	return v, nil
}
