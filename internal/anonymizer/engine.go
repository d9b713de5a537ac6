package anonymizer

import (
	"context"

	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

// EntitySource is the adapter over the external entity-recognition model.
// It returns raw, possibly overlapping spans with Source = SourceModel.
// Detect may fail (model unavailable, inference error); the engine treats
// such failures as degradation, never as a failure of Anonymize.
type EntitySource interface {
	Detect(ctx context.Context, text string) ([]Span, error)
}

// TokenTable maps a model-origin entity label to its redaction token
// (e.g. PERSON → "[REDACTED_PERSON]"). Labels absent from the table are not
// considered PII and their spans are dropped.
type TokenTable map[string]string

// Tokens returns the table's tokens, for vocabulary construction.
func (t TokenTable) Tokens() []string {
	out := make([]string, 0, len(t))
	for _, tok := range t {
		out = append(out, tok)
	}
	return out
}

// Strategy selects how detected PII is rewritten. Only redaction is
// implemented; the enum is the extension point for future strategies.
type Strategy string

// StrategyRedact replaces each detected span with its configured token.
const StrategyRedact Strategy = "redact"

// Options control a single Anonymize call.
type Options struct {
	// Strategy defaults to StrategyRedact when empty.
	Strategy Strategy

	// IncludeTypes restricts detection to the listed labels and pattern
	// names. Nil or empty means all configured types are eligible.
	IncludeTypes []string

	// Audit controls whether MaskedEntities records are collected. Counts
	// are always maintained.
	Audit bool
}

// DefaultOptions returns the options used when the caller passes none:
// redact everything, full audit.
func DefaultOptions() Options {
	return Options{Strategy: StrategyRedact, Audit: true}
}

func (o Options) validate() error {
	if o.Strategy != "" && o.Strategy != StrategyRedact {
		return errors.Newf(errors.ErrCodeInvalidStrategy, "unsupported strategy %q", o.Strategy)
	}
	return nil
}

// includeSet converts the include list to a membership set; nil means no
// restriction.
func (o Options) includeSet() map[string]bool {
	if len(o.IncludeTypes) == 0 {
		return nil
	}
	set := make(map[string]bool, len(o.IncludeTypes))
	for _, t := range o.IncludeTypes {
		set[t] = true
	}
	return set
}

// Engine runs the full detection → resolution → redaction pipeline for one
// document at a time. It is stateless across calls apart from the read-only
// entity source handle and is safe for concurrent use.
type Engine struct {
	source   EntitySource
	matcher  *MatcherSet
	labels   TokenTable
	resolver *Resolver
	logger   logging.Logger
}

// NewEngine assembles an engine from its collaborators. source may be nil,
// in which case only pattern detection runs.
func NewEngine(source EntitySource, matcher *MatcherSet, labels TokenTable, policy Policy, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		source:   source,
		matcher:  matcher,
		labels:   labels,
		resolver: NewResolver(policy),
		logger:   logger,
	}
}

// Anonymize rewrites text with redaction tokens and returns the new text
// plus the audit log. It never returns an error for ordinary text content —
// including unusual scripts, punctuation, and pre-existing redaction tokens —
// and returns empty input unchanged with an empty audit log. The only error
// condition is invalid Options.
func (e *Engine) Anonymize(ctx context.Context, text string, opts Options) (string, *AuditLog, error) {
	if err := opts.validate(); err != nil {
		return text, NewAuditLog(), err
	}
	if text == "" {
		return text, NewAuditLog(), nil
	}

	include := opts.includeSet()
	modelSpans := e.collectModelSpans(ctx, text, include)
	return e.finish(text, modelSpans, include, opts)
}

// AnonymizeWithSpans runs the pipeline with model spans the caller already
// holds, so a caller that needed the raw entities for its own purposes does
// not trigger a second model call. The given spans go through the same
// filtering and validation as a live source's output.
func (e *Engine) AnonymizeWithSpans(text string, modelSpans []Span, opts Options) (string, *AuditLog, error) {
	if err := opts.validate(); err != nil {
		return text, NewAuditLog(), err
	}
	if text == "" {
		return text, NewAuditLog(), nil
	}

	include := opts.includeSet()
	return e.finish(text, e.normalizeModelSpans(text, modelSpans, include), include, opts)
}

func (e *Engine) finish(text string, modelSpans []Span, include map[string]bool, opts Options) (string, *AuditLog, error) {
	patternSpans := e.matcher.Detect(text, include)

	resolved := e.resolver.Resolve(modelSpans, patternSpans, len(text))
	redacted := Redact(text, resolved)

	log := BuildAuditLog(resolved)
	if !opts.Audit {
		log.MaskedEntities = []AuditRecord{}
	}

	e.logger.Debug("anonymization complete",
		logging.Int("model_spans", len(modelSpans)),
		logging.Int("pattern_spans", len(patternSpans)),
		logging.Int("total_masked", log.TotalMasked),
	)
	return redacted, log, nil
}

// collectModelSpans queries the entity source and normalizes its output:
// labels are filtered against the include list and the token table, tokens
// are resolved, offsets validated, and spans covering an existing redaction
// token discarded. A source failure degrades to pattern-only detection.
func (e *Engine) collectModelSpans(ctx context.Context, text string, include map[string]bool) []Span {
	if e.source == nil {
		return nil
	}

	raw, err := e.source.Detect(ctx, text)
	if err != nil {
		// Fail-open: the document still gets pattern-based protection.
		e.logger.Warn("entity source failed, continuing with pattern detection only",
			logging.Err(err))
		return nil
	}
	return e.normalizeModelSpans(text, raw, include)
}

func (e *Engine) normalizeModelSpans(text string, raw []Span, include map[string]bool) []Span {
	var spans []Span
	for _, s := range raw {
		if include != nil && !include[s.Label] {
			continue
		}
		token, ok := e.labels[s.Label]
		if !ok {
			continue
		}
		if !s.validIn(len(text)) {
			e.logger.Warn("dropping model span with invalid offsets",
				logging.String("span", s.String()))
			continue
		}
		covered := text[s.Start:s.End]
		if e.matcher.ContainsToken(covered) {
			continue
		}
		spans = append(spans, Span{
			Start:  s.Start,
			End:    s.End,
			Label:  s.Label,
			Source: SourceModel,
			Text:   covered,
			Token:  token,
		})
	}
	return spans
}
