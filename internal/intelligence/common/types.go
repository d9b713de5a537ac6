// Package common holds the shared plumbing for talking to the external NLP
// serving endpoint: request/response types, the HTTP client, and the lazy
// model registry.
package common

import (
	"context"
	"encoding/json"
)

// PredictRequest carries the input payload for one inference call.
type PredictRequest struct {
	Model  string            `json:"model"`
	Text   string            `json:"text"`
	Params map[string]string `json:"params,omitempty"`
}

// PredictResponse carries the raw model output. Outputs stays opaque here;
// the entity and intent adapters own their respective shapes.
type PredictResponse struct {
	Model           string          `json:"model"`
	Outputs         json.RawMessage `json:"outputs"`
	InferenceTimeMs int64           `json:"inference_time_ms"`
}

// ServingClient is the transport to the model serving endpoint.
type ServingClient interface {
	Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error)
	Healthy(ctx context.Context) error
	Close() error
}

// RawEntity is one recognized entity as the serving endpoint reports it.
// Start and End are byte offsets into the submitted text.
type RawEntity struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// EntityOutputs is the decoded payload of an entity-recognition response.
type EntityOutputs struct {
	Entities []RawEntity `json:"entities"`
}

// IntentOutputs is the decoded payload of an intent-classification response.
type IntentOutputs struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}
