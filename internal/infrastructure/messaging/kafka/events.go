// Package kafka publishes and consumes the audit event stream. Every
// anonymization produces one event on the audit topic; downstream consumers
// archive them for compliance.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tracefold/anonymizer/internal/anonymizer"
	"github.com/tracefold/anonymizer/pkg/errors"
)

// Event types carried on the audit topic.
const (
	EventTypeDocumentAnonymized = "document.anonymized"
	EventTypeChatExchange       = "chat.exchange"
)

const schemaVersion = "1.0"

// EventEnvelope standardizes audit messages: a typed payload wrapped with
// identity, ordering, and schema metadata.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// DocumentAnonymizedPayload is the audit record for one anonymized document.
// MaskedEntities carries the original values; the audit stream is the only
// place they survive, so its topic must be treated as sensitive.
type DocumentAnonymizedPayload struct {
	DocumentID     string                   `json:"document_id"`
	Mode           string                   `json:"mode"`
	TotalMasked    int                      `json:"total_masked"`
	ByType         map[string]int           `json:"by_type"`
	MaskedEntities []anonymizer.AuditRecord `json:"masked_entities,omitempty"`
	ProcessedAt    time.Time                `json:"processed_at"`
}

// ChatExchangePayload is the audit record for one chat turn. Question and
// answer are stored post-anonymization.
type ChatExchangePayload struct {
	ChatLogID   string         `json:"chat_log_id"`
	UserID      string         `json:"user_id"`
	Intent      string         `json:"intent"`
	Confidence  float64        `json:"confidence"`
	Fallback    bool           `json:"fallback"`
	TotalMasked int            `json:"total_masked"`
	ByType      map[string]int `json:"by_type"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// NewEventEnvelope wraps a payload in a fresh envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode event payload")
	}
	return nil
}

// Encode serializes the full envelope for the wire.
func (e *EventEnvelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode event envelope")
	}
	return data, nil
}

// DecodeEnvelope parses a wire message back into an envelope.
func DecodeEnvelope(data []byte) (*EventEnvelope, error) {
	var e EventEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode event envelope")
	}
	if e.EventType == "" {
		return nil, errors.New(errors.ErrCodeValidation, "event envelope missing event_type")
	}
	return &e, nil
}
