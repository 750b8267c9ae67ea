package kafkaconsumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/band-algebra/internal/core/observability"
)

type messageProcessor func(context.Context, *sarama.ConsumerMessage) error

// groupHandler feeds one claim at a time through process. log may be nil.
type groupHandler struct {
	process messageProcessor
	log     *slog.Logger
}

func (h *groupHandler) Setup(s sarama.ConsumerGroupSession) error {
	if h.log != nil {
		h.log.Info("invalidation partitions assigned",
			"member", s.MemberID(), "generation", s.GenerationID(), "claims", s.Claims())
	}
	return nil
}

func (h *groupHandler) Cleanup(s sarama.ConsumerGroupSession) error {
	if h.log != nil {
		h.log.Info("invalidation partitions released", "generation", s.GenerationID())
	}
	return nil
}

// ConsumeClaim marks a scene event only after its summaries were evicted. A
// failed event ends the claim so the group rebalances and redelivers it.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("claim context done: %w", ctx.Err())
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				obs.IncKafkaConsumerError("process")
				if h.log != nil {
					h.log.WarnContext(ctx, "invalidation event not applied, offset held",
						"partition", msg.Partition, "offset", msg.Offset, "err", err)
				}
				return fmt.Errorf("process failed (topic=%s, part=%d, off=%d): %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}
