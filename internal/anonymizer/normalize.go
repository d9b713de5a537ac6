package anonymizer

import "golang.org/x/text/unicode/norm"

// NormalizeInput returns text in NFC form. Spans index bytes of the text the
// engine was given, so callers normalize before that text is frozen — never
// after detection.
func NormalizeInput(text string) string {
	if norm.NFC.IsNormalString(text) {
		return text
	}
	return norm.NFC.String(text)
}
