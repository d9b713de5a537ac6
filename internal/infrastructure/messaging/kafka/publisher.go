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

var ErrPublisherClosed = errors.New(errors.ErrCodeInternal, "publisher closed")

// maxEventBytes caps a single audit event. Larger events indicate a
// runaway document and are rejected rather than truncated.
const maxEventBytes = 1 << 20

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.WriterStats
}

// PublisherMetrics holds producer-side counters.
type PublisherMetrics struct {
	EventsSent   atomic.Int64
	EventsFailed atomic.Int64
	BytesSent    atomic.Int64
}

// Publisher writes audit envelopes to the configured topic. In async mode
// failures are logged, never surfaced; callers that need delivery
// guarantees use Publish directly.
type Publisher struct {
	writer  WriterInterface
	topic   string
	async   bool
	logger  logging.Logger
	closed  atomic.Bool
	metrics PublisherMetrics
}

// NewPublisher builds a Publisher from the audit producer config.
func NewPublisher(cfg config.KafkaConfig, log logging.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.AuditTopic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "audit topic required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	retries := cfg.ProducerRetries
	if retries <= 0 {
		retries = 3
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  retries + 1,
		BatchSize:    batchSize,
		BatchTimeout: batchTimeout,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
	}

	return &Publisher{
		writer: writer,
		topic:  cfg.AuditTopic,
		async:  cfg.Async,
		logger: log,
	}, nil
}

// NewPublisherWithWriter wraps an existing writer (for testing).
func NewPublisherWithWriter(w WriterInterface, topic string, async bool, log logging.Logger) *Publisher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Publisher{writer: w, topic: topic, async: async, logger: log}
}

// Publish writes one envelope synchronously. The event ID keys the message
// so replays of the same event land on the same partition.
func (p *Publisher) Publish(ctx context.Context, event *EventEnvelope) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	data, err := event.Encode()
	if err != nil {
		return err
	}
	if len(data) > maxEventBytes {
		return errors.Newf(errors.ErrCodeValidation, "audit event %s exceeds %d bytes", event.EventID, maxEventBytes)
	}

	msg := kafka.Message{
		Key:   []byte(event.EventID),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(event.SchemaVersion)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.EventsFailed.Add(1)
		return errors.Wrap(err, errors.ErrCodeAuditPublishFailed, "failed to publish audit event")
	}

	p.metrics.EventsSent.Add(1)
	p.metrics.BytesSent.Add(int64(len(data)))
	p.logger.Debug("Audit event published",
		logging.String("event_id", event.EventID),
		logging.String("event_type", event.EventType),
	)
	return nil
}

// Emit publishes according to the configured mode: synchronously, or in a
// goroutine with failures logged. Anonymization never fails because the
// audit stream is down; the error is only surfaced in sync mode.
func (p *Publisher) Emit(ctx context.Context, event *EventEnvelope) error {
	if !p.async {
		return p.Publish(ctx, event)
	}
	go func() {
		// Detach from the request context so an answered request does not
		// cancel the in-flight publish.
		pubCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := p.Publish(pubCtx, event); err != nil {
			p.logger.Error("Async audit publish failed",
				logging.String("event_id", event.EventID),
				logging.Err(err),
			)
		}
	}()
	return nil
}

// Metrics returns a snapshot of the counters.
func (p *Publisher) Metrics() (sent, failed, bytes int64) {
	return p.metrics.EventsSent.Load(), p.metrics.EventsFailed.Load(), p.metrics.BytesSent.Load()
}

// Close flushes and closes the writer. Subsequent publishes fail with
// ErrPublisherClosed.
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka publisher closed", logging.Int64("events_sent", p.metrics.EventsSent.Load()))
	return err
}
