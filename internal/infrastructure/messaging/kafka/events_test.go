package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracefold/anonymizer/internal/anonymizer"
	"github.com/tracefold/anonymizer/pkg/errors"
)

func TestNewEventEnvelope_PopulatesMetadata(t *testing.T) {
	t.Parallel()

	payload := DocumentAnonymizedPayload{
		DocumentID:  "doc-1",
		Mode:        "single",
		TotalMasked: 2,
		ByType:      map[string]int{"PERSON": 1, "EMAIL": 1},
		ProcessedAt: time.Now().UTC(),
	}

	env, err := NewEventEnvelope(EventTypeDocumentAnonymized, "anonymizer", payload)
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, EventTypeDocumentAnonymized, env.EventType)
	assert.Equal(t, "anonymizer", env.Source)
	assert.Equal(t, schemaVersion, env.SchemaVersion)
	assert.False(t, env.Timestamp.IsZero())

	var decoded DocumentAnonymizedPayload
	require.NoError(t, env.DecodePayload(&decoded))
	assert.Equal(t, payload.DocumentID, decoded.DocumentID)
	assert.Equal(t, payload.ByType, decoded.ByType)
}

func TestEventEnvelope_EncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	env, err := NewEventEnvelope(EventTypeChatExchange, "chat", ChatExchangePayload{
		ChatLogID:   "log-1",
		UserID:      "user-1",
		Intent:      "file_claim",
		Confidence:  0.9,
		TotalMasked: 1,
		ByType:      map[string]int{"MONEY": 1},
	})
	require.NoError(t, err)

	data, err := env.Encode()
	require.NoError(t, err)

	got, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, got.EventID)
	assert.Equal(t, env.EventType, got.EventType)

	var payload ChatExchangePayload
	require.NoError(t, got.DecodePayload(&payload))
	assert.Equal(t, "file_claim", payload.Intent)
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	t.Parallel()

	_, err := DecodeEnvelope([]byte("{not json"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))

	_, err = DecodeEnvelope([]byte(`{"event_id":"x"}`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestDocumentAnonymizedPayload_CarriesAuditRecords(t *testing.T) {
	t.Parallel()

	payload := DocumentAnonymizedPayload{
		DocumentID:  "doc-2",
		Mode:        "batch",
		TotalMasked: 1,
		ByType:      map[string]int{"EMAIL": 1},
		MaskedEntities: []anonymizer.AuditRecord{
			{Type: "EMAIL", Original: "jane@example.com", Replacement: "[REDACTED_EMAIL]"},
		},
	}

	env, err := NewEventEnvelope(EventTypeDocumentAnonymized, "anonymizer", payload)
	require.NoError(t, err)

	var decoded DocumentAnonymizedPayload
	require.NoError(t, env.DecodePayload(&decoded))
	require.Len(t, decoded.MaskedEntities, 1)
	assert.Equal(t, "jane@example.com", decoded.MaskedEntities[0].Original)
}
