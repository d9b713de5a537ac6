package anonymizer

import "sort"

// Policy selects which source wins when a model-origin span and a
// pattern-origin span overlap. Model spans are assumed more contextually
// accurate for names, organizations, locations, and amounts; patterns exist
// to catch formats models miss. "Model wins" is therefore the default, but
// the rule is an explicit configuration choice, not an ordering artifact.
type Policy string

const (
	PolicyModelWins   Policy = "model_wins"
	PolicyPatternWins Policy = "pattern_wins"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyModelWins || p == PolicyPatternWins
}

// Resolver merges span candidates from both sources into a single pairwise
// non-overlapping set.
type Resolver struct {
	policy Policy
}

// NewResolver constructs a Resolver with the given overlap policy. An
// unknown policy falls back to PolicyModelWins.
func NewResolver(policy Policy) *Resolver {
	if !policy.Valid() {
		policy = PolicyModelWins
	}
	return &Resolver{policy: policy}
}

// priority ranks a span under the configured policy; higher wins on overlap.
func (r *Resolver) priority(s Span) int {
	winner := SourceModel
	if r.policy == PolicyPatternWins {
		winner = SourcePattern
	}
	if s.Source == winner {
		return 1
	}
	return 0
}

// Resolve produces the canonical resolved span set from the union of model
// and pattern candidates: pairwise non-overlapping, sorted by ascending
// start. Candidates that are out of bounds for a text of textLen bytes are
// dropped rather than allowed to corrupt redaction.
//
// On overlap the higher-priority span is kept; on a priority tie the span
// with the earlier start wins, then the longer span. Every surviving span
// retains its original offsets unchanged.
func (r *Resolver) Resolve(modelSpans, patternSpans []Span, textLen int) []Span {
	candidates := make([]Span, 0, len(modelSpans)+len(patternSpans))
	for _, s := range modelSpans {
		if s.validIn(textLen) {
			candidates = append(candidates, s)
		}
	}
	for _, s := range patternSpans {
		if s.validIn(textLen) {
			candidates = append(candidates, s)
		}
	}

	// Order by selection preference: priority, then earlier start, then
	// longer span. A greedy sweep in this order implements the overlap rule.
	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := r.priority(candidates[i]), r.priority(candidates[j])
		if pi != pj {
			return pi > pj
		}
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		return candidates[i].Len() > candidates[j].Len()
	})

	var resolved []Span
	for _, c := range candidates {
		conflict := false
		for _, kept := range resolved {
			if c.Overlaps(kept) {
				conflict = true
				break
			}
		}
		if !conflict {
			resolved = append(resolved, c)
		}
	}

	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].Start < resolved[j].Start
	})
	return resolved
}
