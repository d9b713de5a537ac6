package handlers

import (
	"net/http"

	"github.com/google/uuid"

	appchat "github.com/tracefold/anonymizer/internal/application/chat"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
)

// ChatHandler serves the conversational endpoints.
type ChatHandler struct {
	service appchat.Service
	logger  logging.Logger
}

// NewChatHandler builds the handler.
func NewChatHandler(service appchat.Service, logger logging.Logger) *ChatHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ChatHandler{service: service, logger: logger}
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Question string `json:"question"`
}

// ChatResponse is one chat turn's answer plus its anonymization summary.
type ChatResponse struct {
	ChatLogID   string         `json:"chat_log_id,omitempty"`
	Answer      string         `json:"answer"`
	Intent      string         `json:"intent"`
	Confidence  float64        `json:"confidence"`
	Fallback    bool           `json:"fallback"`
	Anonymized  string         `json:"anonymized_question"`
	TotalMasked int            `json:"total_masked"`
	ByType      map[string]int `json:"masked_by_type,omitempty"`
}

// Chat handles POST /api/v1/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := h.service.Chat(r.Context(), &appchat.ChatInput{
		Email:    req.Email,
		Name:     req.Name,
		Question: req.Question,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	resp := ChatResponse{
		Answer:      result.Answer,
		Intent:      result.Intent,
		Confidence:  result.Confidence,
		Fallback:    result.Fallback,
		Anonymized:  result.Anonymized,
		TotalMasked: result.TotalMasked,
		ByType:      result.ByType,
	}
	if result.ChatLogID != uuid.Nil {
		resp.ChatLogID = result.ChatLogID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// IntentRequest is the body of POST /api/v1/intent.
type IntentRequest struct {
	Text string `json:"text"`
}

// IntentResponse is one intent prediction.
type IntentResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// PredictIntent handles POST /api/v1/intent.
func (h *ChatHandler) PredictIntent(w http.ResponseWriter, r *http.Request) {
	var req IntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	pred, err := h.service.PredictIntent(r.Context(), req.Text)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IntentResponse{Intent: pred.Intent, Confidence: pred.Confidence})
}
