package anonymizer

import "sort"

// Redact applies a resolved span set to the original text, replacing every
// span's covered substring with its token.
//
// Spans are applied in descending start order (rightmost first) so that no
// substitution invalidates the offsets of a span not yet applied — required
// because tokens generally differ in length from the substring they replace.
// The output length equals len(text) + Σ(len(token) - span length), and all
// non-redacted regions are byte-for-byte preserved.
//
// Redact never panics: spans that are out of bounds or overlap an
// already-applied span are skipped. The resolver guarantees neither occurs
// for its own output, so the guard only matters for hand-built span sets.
func Redact(text string, spans []Span) string {
	if len(spans) == 0 {
		return text
	}

	ordered := make([]Span, len(spans))
	copy(ordered, spans)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Start > ordered[j].Start
	})

	out := text
	// Everything at or beyond this offset has been rewritten already;
	// original-text offsets are only valid strictly below it.
	applied := len(text)
	for _, s := range ordered {
		if !s.validIn(len(text)) || s.End > applied {
			continue
		}
		out = out[:s.Start] + s.Token + out[s.End:]
		applied = s.Start
	}
	return out
}
