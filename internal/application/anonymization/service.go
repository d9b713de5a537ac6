// Package anonymization provides the application-level service wrapping the
// anonymization engine: normalization, metrics, and best-effort audit event
// publication around the core pipeline.
package anonymization

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tracefold/anonymizer/internal/anonymizer"
	"github.com/tracefold/anonymizer/internal/infrastructure/messaging/kafka"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/prometheus"
	"github.com/tracefold/anonymizer/pkg/errors"
)

// maxDocumentBytes bounds a single document. Larger inputs are rejected up
// front rather than fed to the model endpoint.
const maxDocumentBytes = 1 << 20

// maxBatchDocuments bounds one batch request.
const maxBatchDocuments = 500

// AuditPublisher emits audit events to the broker. Satisfied by
// *kafka.Publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event *kafka.EventEnvelope) error
}

// Service defines the anonymization application operations.
type Service interface {
	Anonymize(ctx context.Context, input *AnonymizeInput) (*AnonymizeResult, error)
	AnonymizeBatch(ctx context.Context, input *BatchInput) (*BatchResult, error)
}

// AnonymizeInput is one document plus per-request options.
type AnonymizeInput struct {
	Text         string
	IncludeTypes []string
	Audit        bool
}

// AnonymizeResult is the outcome for one document.
type AnonymizeResult struct {
	DocumentID string
	Text       string
	Audit      *anonymizer.AuditLog
}

// BatchInput is a batch of documents sharing one set of options.
type BatchInput struct {
	Texts        []string
	IncludeTypes []string
	Audit        bool
}

// BatchItem is the per-document outcome within a batch. Err is set for a
// failed document; the rest of the batch is unaffected.
type BatchItem struct {
	Index      int
	DocumentID string
	Text       string
	Audit      *anonymizer.AuditLog
	Err        error
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	Items     []BatchItem
	Succeeded int
	Failed    int
}

type service struct {
	engine    *anonymizer.Engine
	batch     *anonymizer.BatchRunner
	publisher AuditPublisher
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
}

// NewService assembles the anonymization service. publisher may be nil, in
// which case no audit events are emitted; metrics may be nil.
func NewService(engine *anonymizer.Engine, batch *anonymizer.BatchRunner, publisher AuditPublisher, metrics *prometheus.AppMetrics, logger logging.Logger) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &service{
		engine:    engine,
		batch:     batch,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *service) Anonymize(ctx context.Context, input *AnonymizeInput) (*AnonymizeResult, error) {
	if input == nil {
		return nil, errors.New(errors.ErrCodeValidation, "input is required")
	}
	if len(input.Text) > maxDocumentBytes {
		return nil, errors.Newf(errors.ErrCodeValidation, "document exceeds %d bytes", maxDocumentBytes)
	}

	start := time.Now()
	text := anonymizer.NormalizeInput(input.Text)
	out, audit, err := s.engine.Anonymize(ctx, text, s.options(input.IncludeTypes, input.Audit))
	if s.metrics != nil {
		byType := map[string]int{}
		if audit != nil {
			byType = audit.ByType
		}
		prometheus.RecordAnonymization(s.metrics, "single", time.Since(start), byType, err)
	}
	if err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	s.publishAudit(ctx, docID, "single", audit)

	return &AnonymizeResult{DocumentID: docID, Text: out, Audit: audit}, nil
}

func (s *service) AnonymizeBatch(ctx context.Context, input *BatchInput) (*BatchResult, error) {
	if input == nil || len(input.Texts) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "at least one document is required")
	}
	if len(input.Texts) > maxBatchDocuments {
		return nil, errors.Newf(errors.ErrCodeValidation, "batch exceeds %d documents", maxBatchDocuments)
	}
	for i, text := range input.Texts {
		if len(text) > maxDocumentBytes {
			return nil, errors.Newf(errors.ErrCodeValidation, "document %d exceeds %d bytes", i, maxDocumentBytes)
		}
	}

	texts := make([]string, len(input.Texts))
	for i, text := range input.Texts {
		texts[i] = anonymizer.NormalizeInput(text)
	}

	start := time.Now()
	results, err := s.batch.Run(ctx, texts, s.options(input.IncludeTypes, input.Audit))
	if err != nil {
		return nil, err
	}

	out := &BatchResult{Items: make([]BatchItem, len(results))}
	byType := make(map[string]int)
	for i, res := range results {
		item := BatchItem{Index: res.Index, Err: res.Err}
		if res.Err != nil {
			out.Failed++
			if s.metrics != nil {
				s.metrics.DocumentFailuresTotal.WithLabelValues(string(errors.GetCode(res.Err))).Inc()
			}
		} else {
			out.Succeeded++
			item.DocumentID = uuid.NewString()
			item.Text = res.Text
			item.Audit = res.Audit
			for entityType, n := range res.Audit.ByType {
				byType[entityType] += n
			}
			s.publishAudit(ctx, item.DocumentID, "batch", res.Audit)
		}
		out.Items[i] = item
	}

	if s.metrics != nil {
		s.metrics.BatchSize.WithLabelValues().Observe(float64(len(texts)))
		prometheus.RecordAnonymization(s.metrics, "batch", time.Since(start), byType, nil)
	}

	s.logger.Info("batch anonymization complete",
		logging.Int("documents", len(texts)),
		logging.Int("succeeded", out.Succeeded),
		logging.Int("failed", out.Failed),
	)
	return out, nil
}

func (s *service) options(includeTypes []string, audit bool) anonymizer.Options {
	return anonymizer.Options{
		Strategy:     anonymizer.StrategyRedact,
		IncludeTypes: includeTypes,
		Audit:        audit,
	}
}

// publishAudit emits a document.anonymized event. Publication is best
// effort: a broker outage must never fail the anonymization call the
// caller is waiting on.
func (s *service) publishAudit(ctx context.Context, docID, mode string, audit *anonymizer.AuditLog) {
	if s.publisher == nil || audit == nil {
		return
	}

	event, err := kafka.NewEventEnvelope(kafka.EventTypeDocumentAnonymized, "anonymization-service", kafka.DocumentAnonymizedPayload{
		DocumentID:     docID,
		Mode:           mode,
		TotalMasked:    audit.TotalMasked,
		ByType:         audit.ByType,
		MaskedEntities: audit.MaskedEntities,
		ProcessedAt:    time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to build audit event", logging.String("document_id", docID), logging.Err(err))
		return
	}

	status := "success"
	if err := s.publisher.Emit(ctx, event); err != nil {
		status = "failure"
		s.logger.Warn("audit event publication failed",
			logging.String("document_id", docID),
			logging.Err(err))
	}
	if s.metrics != nil {
		s.metrics.AuditPublishTotal.WithLabelValues(status).Inc()
	}
}
