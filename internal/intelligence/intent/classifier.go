// Package intent adapts the external intent-classification model.
package intent

import (
	"context"
	"encoding/json"

	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/internal/intelligence/common"
	"github.com/tracefold/anonymizer/pkg/errors"
)

// Prediction is one intent classification result.
type Prediction struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Classifier predicts the user's intent from free text.
type Classifier interface {
	Predict(ctx context.Context, text string) (Prediction, error)
}

type classifier struct {
	handle *common.Handle
	model  string
	logger logging.Logger
}

// NewClassifier builds a Classifier on top of a registry handle.
func NewClassifier(handle *common.Handle, model string, logger logging.Logger) Classifier {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &classifier{
		handle: handle,
		model:  model,
		logger: logger.Named("intent"),
	}
}

func (c *classifier) Predict(ctx context.Context, text string) (Prediction, error) {
	if text == "" {
		return Prediction{}, errors.New(errors.ErrCodeValidation, "text cannot be empty")
	}

	client, err := c.handle.Client()
	if err != nil {
		return Prediction{}, err
	}

	resp, err := client.Predict(ctx, &common.PredictRequest{
		Model: c.model,
		Text:  text,
	})
	if err != nil {
		return Prediction{}, errors.Wrap(err, errors.ErrCodeIntentPredictFailed, "intent prediction")
	}

	var outputs common.IntentOutputs
	if err := json.Unmarshal(resp.Outputs, &outputs); err != nil {
		return Prediction{}, errors.Wrap(err, errors.ErrCodeModelBadResponse, "decode intent outputs")
	}
	if outputs.Intent == "" {
		return Prediction{}, errors.New(errors.ErrCodeModelBadResponse, "intent outputs missing intent field")
	}

	return Prediction{Intent: outputs.Intent, Confidence: outputs.Confidence}, nil
}
