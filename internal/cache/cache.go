// Package cache declares the storage contracts of the value and summary
// caches; redisstore implements both.
package cache

import (
	"context"
	"time"
)

type ValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type SummaryStore interface {
	HMGetField(ctx context.Context, keys []string, field string) (map[string][]byte, error)
	HSetFieldWithTTL(ctx context.Context, kv map[string][]byte, field string, ttl time.Duration) error
	DelCount(ctx context.Context, keys ...string) (int64, error)
}
