package handlers

import (
	"net/http"

	"github.com/tracefold/anonymizer/internal/anonymizer"
	"github.com/tracefold/anonymizer/internal/application/anonymization"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

// AnonymizeHandler serves the anonymization endpoints.
type AnonymizeHandler struct {
	service anonymization.Service
	logger  logging.Logger
}

// NewAnonymizeHandler builds the handler.
func NewAnonymizeHandler(service anonymization.Service, logger logging.Logger) *AnonymizeHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AnonymizeHandler{service: service, logger: logger}
}

// AnonymizeRequest is the body of POST /api/v1/anonymize. Audit defaults to
// true when the field is omitted.
type AnonymizeRequest struct {
	Text         string   `json:"text"`
	IncludeTypes []string `json:"include_types,omitempty"`
	Audit        bool     `json:"audit"`
}

// AnonymizeResponse is the anonymization result for one document.
type AnonymizeResponse struct {
	DocumentID string               `json:"document_id"`
	Text       string               `json:"text"`
	Audit      *anonymizer.AuditLog `json:"audit,omitempty"`
}

// Anonymize handles POST /api/v1/anonymize.
func (h *AnonymizeHandler) Anonymize(w http.ResponseWriter, r *http.Request) {
	req := AnonymizeRequest{Audit: true}
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := h.service.Anonymize(r.Context(), &anonymization.AnonymizeInput{
		Text:         req.Text,
		IncludeTypes: req.IncludeTypes,
		Audit:        req.Audit,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	resp := AnonymizeResponse{DocumentID: result.DocumentID, Text: result.Text}
	if req.Audit {
		resp.Audit = result.Audit
	}
	writeJSON(w, http.StatusOK, resp)
}

// BatchRequest is the body of POST /api/v1/anonymize/batch. Audit defaults
// to true when the field is omitted.
type BatchRequest struct {
	Texts        []string `json:"texts"`
	IncludeTypes []string `json:"include_types,omitempty"`
	Audit        bool     `json:"audit"`
}

// BatchItemResponse is one document's outcome in a batch response.
type BatchItemResponse struct {
	Index      int                  `json:"index"`
	DocumentID string               `json:"document_id,omitempty"`
	Text       string               `json:"text,omitempty"`
	Audit      *anonymizer.AuditLog `json:"audit,omitempty"`
	Error      *ErrorResponse       `json:"error,omitempty"`
}

// BatchResponse is the body of a batch anonymization response.
type BatchResponse struct {
	Items     []BatchItemResponse `json:"items"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// AnonymizeBatch handles POST /api/v1/anonymize/batch. Per-document failures
// surface inside the items; the call itself stays 200.
func (h *AnonymizeHandler) AnonymizeBatch(w http.ResponseWriter, r *http.Request) {
	req := BatchRequest{Audit: true}
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := h.service.AnonymizeBatch(r.Context(), &anonymization.BatchInput{
		Texts:        req.Texts,
		IncludeTypes: req.IncludeTypes,
		Audit:        req.Audit,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	resp := BatchResponse{
		Items:     make([]BatchItemResponse, len(result.Items)),
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
	}
	for i, item := range result.Items {
		out := BatchItemResponse{Index: item.Index}
		if item.Err != nil {
			out.Error = &ErrorResponse{
				Code:    string(errors.GetCode(item.Err)),
				Message: item.Err.Error(),
			}
		} else {
			out.DocumentID = item.DocumentID
			out.Text = item.Text
			if req.Audit {
				out.Audit = item.Audit
			}
		}
		resp.Items[i] = out
	}
	writeJSON(w, http.StatusOK, resp)
}
