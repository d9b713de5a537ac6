package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tracefold/anonymizer/internal/config"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

var ErrConsumerClosed = errors.New(errors.ErrCodeInternal, "consumer closed")

// EventHandler processes one decoded envelope. Returning an error leaves
// the offset uncommitted so the event is redelivered.
type EventHandler func(ctx context.Context, event *EventEnvelope) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads audit envelopes and hands them to a handler. Malformed
// messages are committed and skipped; only handler failures block the
// offset.
type Consumer struct {
	reader    ReaderInterface
	handler   EventHandler
	logger    logging.Logger
	closed    atomic.Bool
	processed atomic.Int64
	skipped   atomic.Int64
}

// NewConsumer builds a group consumer on the audit topic.
func NewConsumer(cfg config.KafkaConfig, groupID string, handler EventHandler, log logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if groupID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "consumer group id required")
	}
	if handler == nil {
		return nil, errors.New(errors.ErrCodeValidation, "event handler required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        groupID,
		Topic:          cfg.AuditTopic,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		CommitInterval: 0, // explicit commits only
		StartOffset:    kafka.FirstOffset,
		MaxWait:        time.Second,
	})

	return &Consumer{
		reader:  reader,
		handler: handler,
		logger:  log,
	}, nil
}

// NewConsumerWithReader wraps an existing reader (for testing).
func NewConsumerWithReader(r ReaderInterface, handler EventHandler, log logging.Logger) *Consumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Consumer{reader: r, handler: handler, logger: log}
}

// Run consumes until ctx is cancelled or the consumer is closed. It returns
// nil on cancellation and the fetch error otherwise.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if c.closed.Load() {
			return nil
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || c.closed.Load() || errors.Is(err, context.Canceled) {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to fetch audit event")
		}

		event, err := DecodeEnvelope(msg.Value)
		if err != nil {
			c.skipped.Add(1)
			c.logger.Warn("Skipping malformed audit event",
				logging.Int64("offset", msg.Offset),
				logging.Err(err),
			)
			c.commit(ctx, msg)
			continue
		}

		if err := c.handler(ctx, event); err != nil {
			c.logger.Error("Audit event handler failed; leaving offset uncommitted",
				logging.String("event_id", event.EventID),
				logging.Err(err),
			)
			continue
		}

		c.processed.Add(1)
		c.commit(ctx, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit audit offset",
			logging.Int64("offset", msg.Offset),
			logging.Err(err),
		)
	}
}

// Stats reports processed and skipped counts.
func (c *Consumer) Stats() (processed, skipped int64) {
	return c.processed.Load(), c.skipped.Load()
}

// Close stops the consumer and releases the reader.
func (c *Consumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.reader.Close()
	c.logger.Info("Kafka consumer closed", logging.Int64("processed", c.processed.Load()))
	return err
}
