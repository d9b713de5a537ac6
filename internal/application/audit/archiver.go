// Package audit consumes audit events from the broker and archives them to
// object storage in newline-delimited JSON batches.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/tracefold/anonymizer/internal/infrastructure/messaging/kafka"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/prometheus"
	"github.com/tracefold/anonymizer/pkg/errors"
)

const (
	defaultFlushSize     = 100
	defaultFlushInterval = 30 * time.Second
)

// BatchStore persists one batch of encoded audit events. Satisfied by
// *minio.AuditArchive.
type BatchStore interface {
	StoreBatch(ctx context.Context, day time.Time, lines [][]byte) (string, error)
}

// Archiver buffers incoming audit events and flushes them to the store when
// the buffer fills or the flush interval elapses. Handle is the consumer's
// EventHandler; a failed flush is reported back so the triggering message
// stays uncommitted and is redelivered.
//
// Delivery is best-effort across crashes: events that were buffered (and
// their offsets committed) but not yet flushed are lost if the process dies
// before the next flush. The window is bounded by flushSize and
// flushInterval, and graceful shutdown drains the buffer.
type Archiver struct {
	store   BatchStore
	metrics *prometheus.AppMetrics
	logger  logging.Logger

	flushSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	pending [][]byte
}

// ArchiverOption customizes an Archiver.
type ArchiverOption func(*Archiver)

// WithFlushSize sets the buffered-event count that triggers a flush.
func WithFlushSize(n int) ArchiverOption {
	return func(a *Archiver) {
		if n > 0 {
			a.flushSize = n
		}
	}
}

// WithFlushInterval sets the maximum time events sit in the buffer.
func WithFlushInterval(d time.Duration) ArchiverOption {
	return func(a *Archiver) {
		if d > 0 {
			a.flushInterval = d
		}
	}
}

// NewArchiver builds an archiver over the given store. metrics may be nil.
func NewArchiver(store BatchStore, metrics *prometheus.AppMetrics, logger logging.Logger, opts ...ArchiverOption) *Archiver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	a := &Archiver{
		store:         store,
		metrics:       metrics,
		logger:        logger,
		flushSize:     defaultFlushSize,
		flushInterval: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle buffers one event, flushing when the buffer reaches the configured
// size. It implements kafka.EventHandler.
func (a *Archiver) Handle(ctx context.Context, event *kafka.EventEnvelope) error {
	line, err := event.Encode()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode audit event")
	}

	a.mu.Lock()
	a.pending = append(a.pending, line)
	full := len(a.pending) >= a.flushSize
	a.mu.Unlock()

	if full {
		return a.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered events as one archive object. On failure the
// buffer is retained for the next attempt.
func (a *Archiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	key, err := a.store.StoreBatch(ctx, time.Now().UTC(), batch)
	if err != nil {
		a.mu.Lock()
		a.pending = append(batch, a.pending...)
		a.mu.Unlock()
		a.recordFlush("failure")
		a.logger.Error("audit archive flush failed",
			logging.Int("events", len(batch)),
			logging.Err(err))
		return err
	}

	a.recordFlush("success")
	a.logger.Info("audit batch archived",
		logging.String("key", key),
		logging.Int("events", len(batch)))
	return nil
}

// Pending reports the current buffer depth.
func (a *Archiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Run flushes on the configured interval until ctx is cancelled, then makes
// a final best-effort flush with a short grace period.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				a.logger.Warn("periodic audit flush failed, will retry", logging.Err(err))
			}
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.Flush(drainCtx); err != nil {
				a.logger.Error("final audit flush failed, events lost", logging.Err(err))
			}
			return ctx.Err()
		}
	}
}

func (a *Archiver) recordFlush(status string) {
	if a.metrics == nil {
		return
	}
	a.metrics.AuditArchiveTotal.WithLabelValues(status).Inc()
}
