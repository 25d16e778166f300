package kafkaconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/IBM/sarama"
)

type messageProcessor func(context.Context, *sarama.ConsumerMessage) error

type groupHandler struct {
	process messageProcessor
	claimed *atomic.Int32
	logger  *slog.Logger
}

func (h *groupHandler) Setup(s sarama.ConsumerGroupSession) error {
	n := 0
	for _, parts := range s.Claims() {
		n += len(parts)
	}
	if h.claimed != nil {
		h.claimed.Store(int32(min(n, 1<<30)))
	}
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	if h.claimed != nil {
		h.claimed.Store(0)
	}
	return nil
}

// ConsumeClaim processes a partition in order and marks each message only
// after its work is done. Poison messages are marked and skipped.
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
				if !errors.Is(err, ErrPoison) {
					return fmt.Errorf("process failed (topic=%s, part=%d, off=%d): %w",
						msg.Topic, msg.Partition, msg.Offset, err)
				}
				if h.logger != nil {
					h.logger.WarnContext(ctx, "skipping unprocessable message",
						"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
				}
			}
			sess.MarkMessage(msg, "")
		}
	}
}
