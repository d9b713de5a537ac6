package anonymization_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracefold/anonymizer/internal/anonymizer"
	"github.com/tracefold/anonymizer/internal/application/anonymization"
	"github.com/tracefold/anonymizer/internal/infrastructure/messaging/kafka"
	"github.com/tracefold/anonymizer/pkg/errors"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []*kafka.EventEnvelope
	err    error
}

func (p *capturingPublisher) Emit(_ context.Context, event *kafka.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) published() []*kafka.EventEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*kafka.EventEnvelope(nil), p.events...)
}

func newTestService(t *testing.T, publisher anonymization.AuditPublisher) anonymization.Service {
	t.Helper()
	labels := anonymizer.TokenTable{"PERSON": "[REDACTED_PERSON]"}
	matcher, err := anonymizer.NewMatcherSet([]anonymizer.DetectorSpec{{
		Name:    "EMAIL",
		Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
		Token:   "[REDACTED_EMAIL]",
	}}, labels.Tokens())
	require.NoError(t, err)

	engine := anonymizer.NewEngine(nil, matcher, labels, anonymizer.PolicyModelWins, nil)
	batch := anonymizer.NewBatchRunner(engine, anonymizer.BatchConfig{Concurrency: 4}, nil)
	return anonymization.NewService(engine, batch, publisher, nil, nil)
}

func TestAnonymizeRedactsAndPublishesAuditEvent(t *testing.T) {
	pub := &capturingPublisher{}
	svc := newTestService(t, pub)

	res, err := svc.Anonymize(context.Background(), &anonymization.AnonymizeInput{
		Text:  "Write to bob@example.com please.",
		Audit: true,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
	assert.Equal(t, "Write to [REDACTED_EMAIL] please.", res.Text)
	assert.Equal(t, 1, res.Audit.TotalMasked)

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, kafka.EventTypeDocumentAnonymized, events[0].EventType)

	var payload kafka.DocumentAnonymizedPayload
	require.NoError(t, events[0].DecodePayload(&payload))
	assert.Equal(t, res.DocumentID, payload.DocumentID)
	assert.Equal(t, "single", payload.Mode)
	assert.Equal(t, 1, payload.TotalMasked)
}

func TestAnonymizeNormalizesInput(t *testing.T) {
	svc := newTestService(t, nil)

	// Decomposed e + combining acute; output should carry the composed form.
	res, err := svc.Anonymize(context.Background(), &anonymization.AnonymizeInput{
		Text: "José has no email here.",
	})

	require.NoError(t, err)
	assert.Equal(t, "José has no email here.", res.Text)
}

func TestAnonymizeRejectsOversizedDocument(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Anonymize(context.Background(), &anonymization.AnonymizeInput{
		Text: strings.Repeat("a", 1<<20+1),
	})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.GetCode(err))
}

func TestAnonymizePublisherFailureDoesNotFailCall(t *testing.T) {
	pub := &capturingPublisher{err: errors.New(errors.ErrCodeAuditPublishFailed, "broker down")}
	svc := newTestService(t, pub)

	res, err := svc.Anonymize(context.Background(), &anonymization.AnonymizeInput{
		Text:  "Write to bob@example.com please.",
		Audit: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "Write to [REDACTED_EMAIL] please.", res.Text)
}

func TestAnonymizeBatchPerDocumentEvents(t *testing.T) {
	pub := &capturingPublisher{}
	svc := newTestService(t, pub)

	res, err := svc.AnonymizeBatch(context.Background(), &anonymization.BatchInput{
		Texts: []string{
			"First: a@example.com",
			"Second has nothing.",
			"Third: b@example.com",
		},
		Audit: true,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 0, res.Failed)
	require.Len(t, res.Items, 3)
	assert.Equal(t, "First: [REDACTED_EMAIL]", res.Items[0].Text)
	assert.Equal(t, "Second has nothing.", res.Items[1].Text)
	assert.Equal(t, "Third: [REDACTED_EMAIL]", res.Items[2].Text)

	events := pub.published()
	require.Len(t, events, 3)
	var payload kafka.DocumentAnonymizedPayload
	require.NoError(t, events[0].DecodePayload(&payload))
	assert.Equal(t, "batch", payload.Mode)
}

func TestAnonymizeBatchRejectsEmptyAndOversized(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.AnonymizeBatch(context.Background(), &anonymization.BatchInput{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.GetCode(err))

	_, err = svc.AnonymizeBatch(context.Background(), &anonymization.BatchInput{
		Texts: make([]string, 501),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.GetCode(err))
}
