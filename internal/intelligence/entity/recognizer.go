// Package entity adapts the external named-entity-recognition model to the
// anonymization engine's EntitySource interface.
package entity

import (
	"context"
	"encoding/json"

	"github.com/tracefold/anonymizer/internal/anonymizer"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/internal/intelligence/common"
	"github.com/tracefold/anonymizer/pkg/errors"
)

// Recognizer queries the serving endpoint's NER model and converts its raw
// entities into model-origin span candidates. It owns no fail-open logic:
// errors propagate to the engine, which decides how to degrade.
type Recognizer struct {
	handle    *common.Handle
	model     string
	threshold float64
	logger    logging.Logger
}

// Config holds the recognizer parameters.
type Config struct {
	// Model is the serving endpoint model name.
	Model string

	// ConfidenceThreshold drops entities the model is unsure about.
	// Low-confidence spans cause over-redaction of ordinary words.
	ConfidenceThreshold float64
}

// NewRecognizer builds a Recognizer on top of a registry handle.
func NewRecognizer(handle *common.Handle, cfg Config, logger logging.Logger) *Recognizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Recognizer{
		handle:    handle,
		model:     cfg.Model,
		threshold: cfg.ConfidenceThreshold,
		logger:    logger.Named("entity"),
	}
}

// Detect implements anonymizer.EntitySource.
func (r *Recognizer) Detect(ctx context.Context, text string) ([]anonymizer.Span, error) {
	client, err := r.handle.Client()
	if err != nil {
		return nil, err
	}

	resp, err := client.Predict(ctx, &common.PredictRequest{
		Model: r.model,
		Text:  text,
	})
	if err != nil {
		return nil, err
	}

	var outputs common.EntityOutputs
	if err := json.Unmarshal(resp.Outputs, &outputs); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelBadResponse, "decode entity outputs")
	}

	spans := make([]anonymizer.Span, 0, len(outputs.Entities))
	for _, ent := range outputs.Entities {
		if ent.Confidence < r.threshold {
			r.logger.Debug("dropping low-confidence entity",
				logging.String("label", ent.Label),
				logging.Float64("confidence", ent.Confidence))
			continue
		}
		spans = append(spans, anonymizer.Span{
			Start:  ent.Start,
			End:    ent.End,
			Label:  ent.Label,
			Source: anonymizer.SourceModel,
			Text:   ent.Text,
		})
	}
	return spans, nil
}
