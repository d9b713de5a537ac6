package response

import (
	"strings"

	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

// Generator renders answers from the knowledge base.
type Generator struct {
	kb        *KnowledgeBase
	threshold float64
	fallback  string
	logger    logging.Logger
}

// Config holds the generator parameters.
type Config struct {
	// ConfidenceThreshold below which the intent prediction is not trusted
	// and the fallback answer is returned.
	ConfidenceThreshold float64

	// Fallback is the answer for low-confidence predictions.
	Fallback string
}

// NewGenerator builds a Generator over a validated knowledge base.
func NewGenerator(kb *KnowledgeBase, cfg Config, logger logging.Logger) (*Generator, error) {
	if kb == nil {
		return nil, errors.New(errors.ErrCodeKnowledgeBaseInvalid, "knowledge base is nil")
	}
	if err := kb.Validate(); err != nil {
		return nil, err
	}
	if cfg.Fallback == "" {
		cfg.Fallback = kb.Default
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Generator{
		kb:        kb,
		threshold: cfg.ConfidenceThreshold,
		fallback:  cfg.Fallback,
		logger:    logger.Named("response"),
	}, nil
}

// Result is one generated answer. Fallback reports whether the low-confidence
// fallback was used instead of an intent template.
type Result struct {
	Answer   string `json:"answer"`
	Intent   string `json:"intent"`
	Fallback bool   `json:"fallback"`
}

// Generate renders the answer for a predicted intent. Low-confidence
// predictions return the fallback answer rather than an error; a template
// placeholder with no value in fields returns ErrCodeTemplateFieldMissing
// with the field name in the error detail.
func (g *Generator) Generate(intentName string, confidence float64, fields map[string]string) (Result, error) {
	if confidence < g.threshold {
		g.logger.Debug("intent confidence below threshold, using fallback",
			logging.String("intent", intentName),
			logging.Float64("confidence", confidence))
		return Result{Answer: g.fallback, Intent: intentName, Fallback: true}, nil
	}

	tpl, ok := g.kb.Templates[intentName]
	if !ok {
		return Result{Answer: g.kb.Default, Intent: intentName, Fallback: true}, nil
	}

	answer := tpl
	for _, field := range g.kb.Placeholders(intentName) {
		value, ok := fields[field]
		if !ok || value == "" {
			return Result{}, errors.Newf(errors.ErrCodeTemplateFieldMissing,
				"intent %q requires field %q", intentName, field).WithDetail(field)
		}
		answer = strings.ReplaceAll(answer, "{"+field+"}", value)
	}

	return Result{Answer: answer, Intent: intentName}, nil
}

// MissingField extracts the field name from an ErrCodeTemplateFieldMissing
// error, or "" when err is anything else.
func MissingField(err error) string {
	if !errors.IsCode(err, errors.ErrCodeTemplateFieldMissing) {
		return ""
	}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr.Detail
	}
	return ""
}
