// Package anonymizer implements the PII anonymization engine: deterministic
// pattern detection, reconciliation of pattern spans with spans produced by
// an external entity-recognition model, offset-safe redaction, and an
// auditable record of every substitution.
//
// All spans are byte offsets into a frozen snapshot of the input text; they
// are never held across a mutation of that text. Conflict resolution yields a
// pairwise non-overlapping span set before any rewriting happens, and the
// redactor applies substitutions right-to-left so that pending offsets stay
// valid.
package anonymizer

import "fmt"

// SpanSource identifies which detector produced a span. It participates in
// priority tie-breaking during conflict resolution.
type SpanSource string

const (
	// SourceModel marks spans produced by the external entity-recognition
	// model.
	SourceModel SpanSource = "model"

	// SourcePattern marks spans produced by a configured deterministic
	// pattern detector.
	SourcePattern SpanSource = "pattern"
)

// Span is a candidate redaction unit: a half-open byte range [Start, End)
// into the original text, tagged with a PII category.
type Span struct {
	// Start and End are byte offsets into the original text,
	// 0 <= Start < End <= len(text).
	Start int `json:"start"`
	End   int `json:"end"`

	// Label is the semantic PII category (e.g. PERSON, EMAIL, SSN).
	Label string `json:"label"`

	// Source records whether the span came from the model or a pattern.
	Source SpanSource `json:"source"`

	// Text is the exact substring covered by [Start, End).
	Text string `json:"text"`

	// Token is the replacement resolved from the label→token table at
	// detection time.
	Token string `json:"token"`
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether s and o share at least one byte offset.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// validIn reports whether the span is well-formed against a text of n bytes.
func (s Span) validIn(n int) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= n
}

func (s Span) String() string {
	return fmt.Sprintf("%s[%d,%d)%s", s.Label, s.Start, s.End, s.Source)
}
