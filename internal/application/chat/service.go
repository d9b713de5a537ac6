// Package chat provides the application-level service for the conversational
// pipeline: user resolution, intent classification, anonymization, template
// response generation, and chat log persistence.
package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tracefold/anonymizer/internal/anonymizer"
	domainchat "github.com/tracefold/anonymizer/internal/domain/chat"
	"github.com/tracefold/anonymizer/internal/infrastructure/database/redis"
	"github.com/tracefold/anonymizer/internal/infrastructure/messaging/kafka"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/prometheus"
	"github.com/tracefold/anonymizer/internal/intelligence/intent"
	"github.com/tracefold/anonymizer/internal/response"
	"github.com/tracefold/anonymizer/pkg/errors"
)

// defaultIntentCacheTTL is how long a cached intent prediction stays valid.
const defaultIntentCacheTTL = 10 * time.Minute

// EntityDetector extracts entity spans from text. Satisfied by
// *entity.Recognizer.
type EntityDetector interface {
	Detect(ctx context.Context, text string) ([]anonymizer.Span, error)
}

// AuditPublisher emits audit events to the broker. Satisfied by
// *kafka.Publisher.
type AuditPublisher interface {
	Emit(ctx context.Context, event *kafka.EventEnvelope) error
}

// Service defines the chat application operations.
type Service interface {
	Chat(ctx context.Context, input *ChatInput) (*ChatResult, error)
	PredictIntent(ctx context.Context, text string) (intent.Prediction, error)
}

// ChatInput is one user turn. Email identifies the user; an unknown email
// creates the user on the fly.
type ChatInput struct {
	Email    string
	Name     string
	Question string
}

// ChatResult is the answer plus the anonymization summary for one turn.
type ChatResult struct {
	ChatLogID   uuid.UUID
	UserID      uuid.UUID
	Answer      string
	Intent      string
	Confidence  float64
	Fallback    bool
	Anonymized  string
	TotalMasked int
	ByType      map[string]int
}

type service struct {
	repo      domainchat.Repository
	detector  EntityDetector
	intents   intent.Classifier
	engine    *anonymizer.Engine
	generator *response.Generator
	cache     redis.Cache
	publisher AuditPublisher
	metrics   *prometheus.AppMetrics
	logger    logging.Logger

	fieldMap  map[string]string
	intentTTL time.Duration
}

// Option customizes the chat service.
type Option func(*service)

// WithCache enables redis-backed intent prediction caching.
func WithCache(cache redis.Cache) Option {
	return func(s *service) { s.cache = cache }
}

// WithPublisher enables audit event publication.
func WithPublisher(publisher AuditPublisher) Option {
	return func(s *service) { s.publisher = publisher }
}

// WithMetrics enables metric recording.
func WithMetrics(metrics *prometheus.AppMetrics) Option {
	return func(s *service) { s.metrics = metrics }
}

// WithFieldMap overrides the label→template-field aliases.
func WithFieldMap(m map[string]string) Option {
	return func(s *service) {
		if len(m) > 0 {
			s.fieldMap = m
		}
	}
}

// WithIntentCacheTTL overrides the intent prediction cache TTL.
func WithIntentCacheTTL(ttl time.Duration) Option {
	return func(s *service) {
		if ttl > 0 {
			s.intentTTL = ttl
		}
	}
}

// defaultFieldMap aliases model entity labels to the lowercase field names
// the answer templates use.
func defaultFieldMap() map[string]string {
	return map[string]string{
		"PERSON": "name",
		"MONEY":  "amount",
		"GPE":    "location",
		"ORG":    "organization",
		"DATE":   "date",
	}
}

// NewService assembles the chat service. repo may be nil to disable
// persistence; the remaining collaborators are required.
func NewService(repo domainchat.Repository, detector EntityDetector, intents intent.Classifier, engine *anonymizer.Engine, generator *response.Generator, logger logging.Logger, opts ...Option) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &service{
		repo:      repo,
		detector:  detector,
		intents:   intents,
		engine:    engine,
		generator: generator,
		logger:    logger,
		fieldMap:  defaultFieldMap(),
		intentTTL: defaultIntentCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Chat(ctx context.Context, input *ChatInput) (*ChatResult, error) {
	if err := validateChatInput(input); err != nil {
		return nil, err
	}
	question := anonymizer.NormalizeInput(input.Question)

	user, err := s.getOrCreateUser(ctx, input.Email, input.Name)
	if err != nil {
		s.recordChat("", "error")
		return nil, err
	}

	// One model call serves both the template fields and the redaction
	// pass. Detection failure degrades to pattern-only anonymization, the
	// same fail-open stance the engine takes.
	spans, err := s.detectEntities(ctx, question)
	if err != nil {
		s.logger.Warn("entity detection failed, continuing without extracted fields",
			logging.Err(err))
		spans = nil
	}
	fields := s.fieldsFromSpans(question, spans)

	anonymized, audit, err := s.engine.AnonymizeWithSpans(question, spans, anonymizer.DefaultOptions())
	if err != nil {
		s.recordChat("", "error")
		return nil, err
	}

	// Intent classification sees only the anonymized question, so no PII
	// reaches the classifier or the prediction cache.
	pred, err := s.cachedPredict(ctx, anonymized)
	if err != nil {
		s.logger.Warn("intent prediction failed, answering with fallback",
			logging.Err(err))
		if s.metrics != nil {
			prometheus.RecordError(s.metrics, "chat", string(errors.GetCode(err)))
		}
		pred = intent.Prediction{}
	}

	res, err := s.generator.Generate(pred.Intent, pred.Confidence, fields)
	if field := response.MissingField(err); field != "" {
		// The original answer survives as a clarification request rather
		// than an error the caller has to interpret.
		res = response.Result{
			Answer:   fmt.Sprintf("I need more information to answer that. Missing: %q.", field),
			Intent:   pred.Intent,
			Fallback: true,
		}
	} else if err != nil {
		s.recordChat(pred.Intent, "error")
		return nil, err
	}

	result := &ChatResult{
		UserID:      user.ID,
		Answer:      res.Answer,
		Intent:      res.Intent,
		Confidence:  pred.Confidence,
		Fallback:    res.Fallback,
		Anonymized:  anonymized,
		TotalMasked: audit.TotalMasked,
		ByType:      audit.ByType,
	}

	if s.repo != nil {
		log := &domainchat.ChatLog{
			ID:           uuid.New(),
			UserID:       user.ID,
			Question:     anonymized, // only the anonymized form is stored
			Answer:       res.Answer,
			Intent:       res.Intent,
			Confidence:   pred.Confidence,
			Fallback:     res.Fallback,
			TotalMasked:  audit.TotalMasked,
			MaskedByType: audit.ByType,
		}
		if err := s.repo.CreateChatLog(ctx, log); err != nil {
			s.recordChat(res.Intent, "error")
			return nil, errors.Wrap(err, errors.ErrCodeChatLogPersistFailed, "failed to persist chat log")
		}
		result.ChatLogID = log.ID
		s.publishExchange(ctx, log)
	}

	s.recordChat(res.Intent, "success")
	if res.Fallback && s.metrics != nil {
		s.metrics.IntentFallbackTotal.WithLabelValues().Inc()
	}
	return result, nil
}

// PredictIntent classifies text without running the chat pipeline.
// Predictions are cached on the normalized text.
func (s *service) PredictIntent(ctx context.Context, text string) (intent.Prediction, error) {
	text = strings.TrimSpace(anonymizer.NormalizeInput(text))
	if text == "" {
		return intent.Prediction{}, errors.New(errors.ErrCodeValidation, "text cannot be empty")
	}
	return s.cachedPredict(ctx, text)
}

func validateChatInput(input *ChatInput) error {
	if input == nil {
		return errors.New(errors.ErrCodeValidation, "input is required")
	}
	if !strings.Contains(input.Email, "@") {
		return errors.New(errors.ErrCodeValidation, "a valid email is required")
	}
	if strings.TrimSpace(input.Question) == "" {
		return errors.New(errors.ErrCodeValidation, "question cannot be empty")
	}
	return nil
}

// getOrCreateUser resolves the user by email, creating the record on first
// contact. A concurrent create is absorbed by re-reading on conflict.
func (s *service) getOrCreateUser(ctx context.Context, email, name string) (*domainchat.User, error) {
	if s.repo == nil {
		return &domainchat.User{ID: uuid.New(), Email: email, Name: name}, nil
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.IsCode(err, errors.ErrCodeUserNotFound) {
		return nil, err
	}

	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	user = &domainchat.User{Email: email, Name: name}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.IsCode(err, errors.ErrCodeConflict) {
			return s.repo.GetUserByEmail(ctx, email)
		}
		return nil, err
	}
	return user, nil
}

func (s *service) detectEntities(ctx context.Context, text string) ([]anonymizer.Span, error) {
	if s.detector == nil {
		return nil, nil
	}
	return s.detector.Detect(ctx, text)
}

// fieldsFromSpans builds the template substitution map. Each label keeps its
// last-seen surface text, under the raw label and, when aliased, the
// template-facing field name.
func (s *service) fieldsFromSpans(text string, spans []anonymizer.Span) map[string]string {
	fields := make(map[string]string, len(spans))
	for _, span := range spans {
		surface := span.Text
		if surface == "" && span.Start >= 0 && span.End <= len(text) && span.Start < span.End {
			surface = text[span.Start:span.End]
		}
		if surface == "" {
			continue
		}
		fields[span.Label] = surface
		if alias, ok := s.fieldMap[span.Label]; ok {
			fields[alias] = surface
		}
	}
	return fields
}

// cachedPredict returns the classifier's prediction for text, consulting the
// redis cache when one is configured.
func (s *service) cachedPredict(ctx context.Context, text string) (intent.Prediction, error) {
	if s.cache == nil {
		return s.intents.Predict(ctx, text)
	}

	sum := sha256.Sum256([]byte(text))
	key := "intent:" + hex.EncodeToString(sum[:])

	loaded := false
	var pred intent.Prediction
	err := s.cache.GetOrSet(ctx, key, &pred, s.intentTTL, func(ctx context.Context) (interface{}, error) {
		loaded = true
		p, err := s.intents.Predict(ctx, text)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	if s.metrics != nil {
		prometheus.RecordCacheAccess(s.metrics, "intent", !loaded && err == nil)
	}
	if err != nil {
		return intent.Prediction{}, err
	}
	return pred, nil
}

// publishExchange emits a chat.exchange audit event. Best effort: the user
// already has their answer.
func (s *service) publishExchange(ctx context.Context, log *domainchat.ChatLog) {
	if s.publisher == nil {
		return
	}

	event, err := kafka.NewEventEnvelope(kafka.EventTypeChatExchange, "chat-service", kafka.ChatExchangePayload{
		ChatLogID:   log.ID.String(),
		UserID:      log.UserID.String(),
		Intent:      log.Intent,
		Confidence:  log.Confidence,
		Fallback:    log.Fallback,
		TotalMasked: log.TotalMasked,
		ByType:      log.MaskedByType,
		ProcessedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to build chat exchange event", logging.Err(err))
		return
	}

	status := "success"
	if err := s.publisher.Emit(ctx, event); err != nil {
		status = "failure"
		s.logger.Warn("chat exchange publication failed",
			logging.String("chat_log_id", log.ID.String()),
			logging.Err(err))
	}
	if s.metrics != nil {
		s.metrics.AuditPublishTotal.WithLabelValues(status).Inc()
	}
}

func (s *service) recordChat(intentName, status string) {
	if s.metrics == nil {
		return
	}
	if intentName == "" {
		intentName = "unknown"
	}
	s.metrics.ChatRequestsTotal.WithLabelValues(intentName, status).Inc()
}
