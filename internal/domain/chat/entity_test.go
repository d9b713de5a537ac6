package chat_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tracefold/anonymizer/internal/domain/chat"
	"github.com/tracefold/anonymizer/pkg/errors"
)

func TestUser_Validate_Valid(t *testing.T) {
	t.Parallel()

	u := &chat.User{Email: "jane@example.com", Name: "Jane"}
	assert.NoError(t, u.Validate())
}

func TestUser_Validate_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		user chat.User
	}{
		{"empty email", chat.User{Name: "Jane"}},
		{"malformed email", chat.User{Email: "not-an-email", Name: "Jane"}},
		{"blank name", chat.User{Email: "jane@example.com", Name: "   "}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.user.Validate()
			assert.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
		})
	}
}

func TestChatLog_Validate_Valid(t *testing.T) {
	t.Parallel()

	log := &chat.ChatLog{
		UserID:     uuid.New(),
		Question:   "My name is [REDACTED_PERSON] and I want to file a claim.",
		Answer:     "I can help with that claim.",
		Intent:     "file_claim",
		Confidence: 0.93,
	}
	assert.NoError(t, log.Validate())
}

func TestChatLog_Validate_Invalid(t *testing.T) {
	t.Parallel()

	base := chat.ChatLog{
		UserID:     uuid.New(),
		Question:   "hello",
		Confidence: 0.5,
	}

	cases := []struct {
		name   string
		mutate func(*chat.ChatLog)
	}{
		{"nil user id", func(c *chat.ChatLog) { c.UserID = uuid.Nil }},
		{"empty question", func(c *chat.ChatLog) { c.Question = "" }},
		{"confidence above one", func(c *chat.ChatLog) { c.Confidence = 1.2 }},
		{"negative confidence", func(c *chat.ChatLog) { c.Confidence = -0.1 }},
		{"negative masked count", func(c *chat.ChatLog) { c.TotalMasked = -1 }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			log := base
			tc.mutate(&log)
			assert.True(t, errors.IsCode(log.Validate(), errors.ErrCodeValidation))
		})
	}
}

func TestChatLog_Validate_EmptyIntentAllowed(t *testing.T) {
	t.Parallel()

	log := &chat.ChatLog{
		UserID:     uuid.New(),
		Question:   "gibberish input",
		Answer:     "Sorry, I did not understand that.",
		Fallback:   true,
		Confidence: 0.1,
	}
	assert.NoError(t, log.Validate())
}
