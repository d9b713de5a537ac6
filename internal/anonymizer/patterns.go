package anonymizer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tracefold/anonymizer/pkg/errors"
)

// DetectorSpec is the configuration for one deterministic pattern detector.
// Specs are supplied by the configuration layer, never hard-coded, so the
// detector set is extensible without code changes.
type DetectorSpec struct {
	// Name is the PII category the detector reports (e.g. EMAIL, PHONE, SSN).
	Name string

	// Pattern is the regular expression source. Patterns are expected to be
	// word-boundary anchored; compilation failure is fatal at startup.
	Pattern string

	// Token is the replacement substituted for every match.
	Token string
}

// detector pairs a compiled pattern with its category and token.
type detector struct {
	name  string
	re    *regexp.Regexp
	token string
}

// MatcherSet is an ordered collection of named pattern detectors plus the
// vocabulary of every configured redaction token. Matching is strictly
// deterministic given identical text and configuration.
type MatcherSet struct {
	detectors []detector
	vocab     []string
}

// NewMatcherSet compiles the given detector specs. The token vocabulary is
// the union of the detectors' tokens and extraTokens (the model label→token
// table); it drives the already-redacted guard.
//
// A malformed pattern or an incomplete spec returns ErrCodePatternCompile:
// the engine refuses to start rather than silently skipping a misconfigured
// detector.
func NewMatcherSet(specs []DetectorSpec, extraTokens []string) (*MatcherSet, error) {
	set := &MatcherSet{detectors: make([]detector, 0, len(specs))}

	seen := make(map[string]bool, len(specs))
	vocab := make(map[string]bool)

	for _, spec := range specs {
		if spec.Name == "" || spec.Pattern == "" || spec.Token == "" {
			return nil, errors.Newf(errors.ErrCodePatternCompile,
				"detector %q: name, pattern, and token are all required", spec.Name)
		}
		if seen[spec.Name] {
			return nil, errors.Newf(errors.ErrCodePatternCompile,
				"detector %q: duplicate name", spec.Name)
		}
		seen[spec.Name] = true

		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodePatternCompile,
				"detector "+spec.Name+": invalid pattern")
		}

		set.detectors = append(set.detectors, detector{name: spec.Name, re: re, token: spec.Token})
		vocab[spec.Token] = true
	}

	for _, tok := range extraTokens {
		if tok != "" {
			vocab[tok] = true
		}
	}
	for tok := range vocab {
		set.vocab = append(set.vocab, tok)
	}
	sort.Strings(set.vocab)

	return set, nil
}

// Names returns the configured detector names in registration order.
func (m *MatcherSet) Names() []string {
	out := make([]string, len(m.detectors))
	for i, d := range m.detectors {
		out[i] = d.name
	}
	return out
}

// ContainsToken reports whether s contains any token from the configured
// vocabulary. A candidate span covering such a region is already redacted
// and must be discarded, which is what makes anonymization idempotent.
func (m *MatcherSet) ContainsToken(s string) bool {
	for _, tok := range m.vocab {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// Detect applies every detector (restricted to names present in include, if
// include is non-nil) against the original text and returns pattern-origin
// spans. Matches of a single detector never overlap each other (regexp
// FindAll semantics); overlaps across detectors and against model spans are
// the resolver's concern. Matches covering an existing redaction token are
// discarded.
func (m *MatcherSet) Detect(text string, include map[string]bool) []Span {
	var spans []Span
	for _, d := range m.detectors {
		if include != nil && !include[d.name] {
			continue
		}
		for _, loc := range d.re.FindAllStringIndex(text, -1) {
			covered := text[loc[0]:loc[1]]
			if m.ContainsToken(covered) {
				continue
			}
			spans = append(spans, Span{
				Start:  loc[0],
				End:    loc[1],
				Label:  d.name,
				Source: SourcePattern,
				Text:   covered,
				Token:  d.token,
			})
		}
	}
	return spans
}
