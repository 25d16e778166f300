package kafkaconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	obs "github.com/mohammed-shakir/gee-wms/internal/core/observability"
	"github.com/mohammed-shakir/gee-wms/internal/invalidation"
	mylog "github.com/mohammed-shakir/gee-wms/internal/logger"
)

// ErrPoison marks a message that can never be processed; it is committed
// and skipped instead of blocking its partition.
var ErrPoison = errors.New("unprocessable message")

// Invalidator drops cached layer definitions.
type Invalidator interface {
	Invalidate(ctx context.Context, serverURL, targetPath string)
	InvalidateTarget(ctx context.Context, targetPath string) int
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	zlog   *zerolog.Logger
	inv    Invalidator
	// claimed counts partitions held by the current group session.
	claimed atomic.Int32
}

func New(cfg Config, logger *slog.Logger, zl *zerolog.Logger, inv Invalidator) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{cfg: cfg, logger: logger, zlog: zl, inv: inv}
}

func (c *Consumer) saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.ClientID = "gee-wms"
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	return cfg
}

// Start consumes publish events until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.inv == nil {
		return errors.New("kafkaconsumer: missing invalidator")
	}

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, c.saramaConfig())
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	ctx = mylog.WithComponent(ctx, "kafka_consumer")
	handler := &groupHandler{process: c.ProcessOne, claimed: &c.claimed, logger: c.logger}

	c.logger.InfoContext(ctx, "kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				obs.IncKafkaConsumerError("consume")
				mylog.FromContext(ctx, c.zlog).Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-ctx.Done():
				case <-time.After(c.cfg.RetryBackoff):
				}
			}
		}
	}
}

// Ready reports whether the consumer currently holds at least one partition.
func (c *Consumer) Ready(context.Context) error {
	if c.claimed.Load() == 0 {
		return errors.New("no partitions assigned")
	}
	return nil
}

// ProcessOne applies a single publish event to the registry.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	defer func() { obs.ObserveUpstreamLatency("kafka_event", time.Since(start).Seconds()) }()

	ev, err := invalidation.Decode(msg.Value)
	if err != nil {
		obs.IncKafkaConsumerError("decode")
		mylog.FromContext(ctx, c.zlog).Error().Err(err).
			Str("kind", "decode").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		return fmt.Errorf("%w: %w", ErrPoison, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("process event: %w", err)
	}

	ctx = mylog.WithTarget(ctx, ev.Target)
	var removed int
	if ev.Server != "" {
		c.inv.Invalidate(ctx, ev.Server, ev.Target)
		removed = 1
	} else {
		removed = c.inv.InvalidateTarget(ctx, ev.Target)
	}
	obs.IncInvalidation("kafka")

	c.logger.DebugContext(ctx, "registry invalidated",
		"op", ev.Op, "target", ev.Target, "server", ev.Server, "removed", removed)
	mylog.FromContext(ctx, c.zlog).Info().
		Str("event", "invalidation").
		Str("op", ev.Op).
		Str("source", ev.Source).
		Int("removed", removed).
		Msg("registry invalidated")
	return nil
}
