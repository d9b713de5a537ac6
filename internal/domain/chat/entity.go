// Package chat holds the persistence-facing domain model for the chatbot:
// registered users and the anonymized conversation log. Only anonymized text
// ever reaches these types; raw input is masked before the application layer
// hands anything to a repository.
package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tracefold/anonymizer/pkg/errors"
)

// User is a registered chatbot user. Email and Name are stored as provided
// at registration; they are account data, not conversation content, and are
// never echoed into chat logs.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Validate checks the fields a caller controls before insert.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return errors.New(errors.ErrCodeValidation, "user email is required")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.Newf(errors.ErrCodeValidation, "invalid user email %q", u.Email)
	}
	if strings.TrimSpace(u.Name) == "" {
		return errors.New(errors.ErrCodeValidation, "user name is required")
	}
	return nil
}

// ChatLog is one question/answer exchange, stored after anonymization.
// Question and Answer contain redaction tokens in place of any PII the
// engine found. MaskedByType summarizes the audit log per entity type so
// the masked counts survive even when full audit records are not persisted.
type ChatLog struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	Question     string         `json:"question"`
	Answer       string         `json:"answer"`
	Intent       string         `json:"intent"`
	Confidence   float64        `json:"confidence"`
	Fallback     bool           `json:"fallback"`
	TotalMasked  int            `json:"total_masked"`
	MaskedByType map[string]int `json:"masked_by_type,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Validate rejects logs that would violate storage invariants. An empty
// intent is allowed: fallback answers may be produced without one.
func (c *ChatLog) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New(errors.ErrCodeValidation, "chat log requires a user id")
	}
	if c.Question == "" {
		return errors.New(errors.ErrCodeValidation, "chat log requires a question")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return errors.Newf(errors.ErrCodeValidation, "confidence %.3f out of range [0,1]", c.Confidence)
	}
	if c.TotalMasked < 0 {
		return errors.New(errors.ErrCodeValidation, "total_masked cannot be negative")
	}
	return nil
}

// ListFilter narrows chat log listings. Zero values mean "no constraint";
// Limit falls back to a sane page size in the repository when unset.
type ListFilter struct {
	UserID *uuid.UUID
	Intent string
	Since  *time.Time
	Until  *time.Time
	Offset int
	Limit  int
}
