package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/band-algebra/internal/cache/keys"
	"github.com/mohammed-shakir/band-algebra/internal/core/model"
	obs "github.com/mohammed-shakir/band-algebra/internal/core/observability"
	"github.com/mohammed-shakir/band-algebra/internal/invalidation"
	mylog "github.com/mohammed-shakir/band-algebra/internal/logger"
)

type CellMapper interface {
	CellsForRegion(r model.Region, res int) (model.Cells, error)
	Coarsen(cells model.Cells, res int) (model.Cells, error)
}

type KeyDeleter interface {
	DelCount(ctx context.Context, keys ...string) (int64, error)
}

// RegistryRefresher reloads the online index registry.
type RegistryRefresher interface {
	RefreshRegistry(ctx context.Context) error
}

type Consumer struct {
	cfg      Config
	logger   *slog.Logger
	store    KeyDeleter
	mapper   CellMapper
	registry RegistryRefresher
	resRange []int
	seen     *sceneDedupe
	zlog     *zerolog.Logger
}

// New builds a consumer that evicts summaries at every resolution in resRange.
// registry may be nil when the online registry is disabled.
func New(cfg Config, logger *slog.Logger, store KeyDeleter, mapper CellMapper, registry RegistryRefresher, resRange []int) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	zl := mylog.Build(mylog.Config{
		Level:     cfg.LogLevel,
		Service:   "band-algebra",
		Component: "kafka_consumer",
	}, nil)
	return &Consumer{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		mapper:   mapper,
		registry: registry,
		resRange: slices.Sorted(slices.Values(resRange)),
		seen:     newSceneDedupe(cfg.DedupeSize),
		zlog:     &zl,
	}
}

// consumes invalidation events from kafka until ctx is done
func (c *Consumer) Start(ctx context.Context) error {
	if c.store == nil || c.mapper == nil {
		return errors.New("kafkaconsumer: missing dependencies (store/mapper)")
	}

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, c.cfg.sarama())
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne, log: c.logger}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil && !errors.Is(err, context.Canceled) {
			obs.IncKafkaConsumerError("consume")
			c.zlog.Error().Err(err).
				Strs("brokers", c.cfg.Brokers).
				Str("topic", c.cfg.Topic).
				Msg("kafka consumer error")
		}
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		case <-time.After(c.cfg.RetryBackoff):
		}
	}
}

// ProcessOne handles one message. Undecodable or invalid events are counted
// and skipped; store and registry failures are returned so the offset is not
// marked.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	ctx = mylog.WithComponent(ctx, "kafka_consumer")

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.skip(ctx, msg, "decode", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		c.skip(ctx, msg, "invalid", err)
		return nil
	}
	ctx = mylog.WithOperation(mylog.WithPlatform(ctx, ev.Platform), ev.Op)

	if ev.Op == invalidation.OpRegistry {
		return c.refreshRegistry(ctx, start)
	}

	if ev.Scene != "" && !c.seen.shouldApply(ev.Platform+"/"+ev.Scene, ev.TS) {
		obs.ObserveInvalidation(ev.Op, ev.Platform, 0, time.Since(start), nil)
		c.logger.DebugContext(ctx, "duplicate scene event (skipping)", "scene", ev.Scene, "ts", ev.TS)
		return nil
	}

	delKeys, cells, err := c.keysForEvent(ev)
	if err != nil {
		obs.ObserveInvalidation(ev.Op, ev.Platform, 0, time.Since(start), err)
		c.skip(ctx, msg, "cells", err)
		return nil
	}
	if len(delKeys) == 0 {
		obs.ObserveInvalidation(ev.Op, ev.Platform, 0, time.Since(start), nil)
		c.logger.DebugContext(ctx, "no cells to invalidate (skipping)")
		return nil
	}

	n, err := c.store.DelCount(ctx, delKeys...)
	if err != nil {
		obs.IncKafkaConsumerError("redis_del")
		obs.ObserveInvalidation(ev.Op, ev.Platform, 0, time.Since(start), err)
		mylog.FromContext(ctx, c.zlog).Error().Err(err).
			Str("kind", "redis_del").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int("keys", len(delKeys)).
			Msg("kafka error")
		return fmt.Errorf("redis del: %w", err)
	}

	obs.ObserveInvalidation(ev.Op, ev.Platform, int(n), time.Since(start), nil)
	mylog.FromContext(ctx, c.zlog).Info().
		Str("event", "invalidation").
		Int("cells", cells).
		Int("keys", len(delKeys)).
		Int64("deleted", n).
		Msg("invalidated summaries")
	return nil
}

func (c *Consumer) refreshRegistry(ctx context.Context, start time.Time) error {
	if c.registry == nil {
		obs.ObserveInvalidation(invalidation.OpRegistry, "", 0, time.Since(start), nil)
		c.logger.DebugContext(ctx, "registry event without online registry (skipping)")
		return nil
	}
	err := c.registry.RefreshRegistry(ctx)
	obs.ObserveInvalidation(invalidation.OpRegistry, "", 0, time.Since(start), err)
	if err != nil {
		obs.IncKafkaConsumerError("registry")
		return fmt.Errorf("refresh registry: %w", err)
	}
	c.logger.InfoContext(ctx, "index registry refreshed")
	return nil
}

// keysForEvent covers the footprint at the finest resolution and coarsens
// that cover for every other one.
func (c *Consumer) keysForEvent(ev invalidation.Event) ([]string, int, error) {
	if len(c.resRange) == 0 {
		return nil, 0, nil
	}
	finest := c.resRange[len(c.resRange)-1]
	fine, err := c.mapper.CellsForRegion(ev.Region(), finest)
	if err != nil {
		return nil, 0, fmt.Errorf("cells at res %d: %w", finest, err)
	}
	var out []string
	total := 0
	for _, res := range c.resRange {
		cells := fine
		if res != finest {
			if cells, err = c.mapper.Coarsen(fine, res); err != nil {
				return nil, 0, fmt.Errorf("coarsen to res %d: %w", res, err)
			}
		}
		total += len(cells)
		for _, cell := range cells {
			out = append(out, keys.SummaryKey(ev.Platform, res, cell))
		}
	}
	return out, total, nil
}

func (c *Consumer) skip(ctx context.Context, msg *sarama.ConsumerMessage, kind string, err error) {
	obs.IncKafkaConsumerError(kind)
	mylog.FromContext(ctx, c.zlog).Warn().Err(err).
		Str("kind", kind).
		Str("topic", msg.Topic).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("skipping invalidation message")
}
