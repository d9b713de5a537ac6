package anonymizer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracefold/anonymizer/pkg/errors"
)

func testTokenTable() TokenTable {
	return TokenTable{
		"PERSON": "[REDACTED_PERSON]",
		"GPE":    "[REDACTED_LOCATION]",
		"ORG":    "[REDACTED_ORG]",
		"MONEY":  "[REDACTED_AMOUNT]",
	}
}

// fakeNER finds every occurrence of its configured surface strings and
// reports them with the associated label, mimicking a recognition model
// without the model.
type fakeNER struct {
	entities map[string]string // surface text → label
	err      error
	calls    int
}

func (f *fakeNER) Detect(_ context.Context, text string) ([]Span, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var spans []Span
	for surface, label := range f.entities {
		from := 0
		for {
			i := strings.Index(text[from:], surface)
			if i < 0 {
				break
			}
			start := from + i
			spans = append(spans, Span{
				Start:  start,
				End:    start + len(surface),
				Label:  label,
				Source: SourceModel,
			})
			from = start + len(surface)
		}
	}
	return spans, nil
}

func newTestEngine(t *testing.T, source EntitySource) *Engine {
	t.Helper()
	labels := testTokenTable()
	matcher, err := NewMatcherSet(testSpecs(), labels.Tokens())
	require.NoError(t, err)
	return NewEngine(source, matcher, labels, PolicyModelWins, nil)
}

func TestAnonymizePersonName(t *testing.T) {
	ner := &fakeNER{entities: map[string]string{"John Doe": "PERSON"}}
	eng := newTestEngine(t, ner)

	out, log, err := eng.Anonymize(context.Background(), "My name is John Doe.", DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "My name is [REDACTED_PERSON].", out)
	assert.Equal(t, 1, log.TotalMasked)
	assert.Equal(t, map[string]int{"PERSON": 1}, log.ByType)
	require.Len(t, log.MaskedEntities, 1)
	assert.Equal(t, "John Doe", log.MaskedEntities[0].Original)
}

func TestAnonymizeMonetaryAmount(t *testing.T) {
	ner := &fakeNER{entities: map[string]string{"$500": "MONEY"}}
	eng := newTestEngine(t, ner)

	out, log, err := eng.Anonymize(context.Background(), "The claim is for $500.", DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "The claim is for [REDACTED_AMOUNT].", out)
	assert.Equal(t, map[string]int{"MONEY": 1}, log.ByType)
}

func TestAnonymizeEmailViaPattern(t *testing.T) {
	eng := newTestEngine(t, &fakeNER{})

	out, log, err := eng.Anonymize(context.Background(), "Contact me at john.doe@example.com.", DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "Contact me at [REDACTED_EMAIL].", out)
	assert.Equal(t, 1, log.ByType["EMAIL"])
}

func TestAnonymizePhoneViaPattern(t *testing.T) {
	eng := newTestEngine(t, &fakeNER{})

	out, log, err := eng.Anonymize(context.Background(), "Call me at 555-123-4567.", DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "Call me at [REDACTED_PHONE].", out)
	assert.Equal(t, 1, log.TotalMasked)
}

func TestAnonymizeAlreadyRedactedTextUnchanged(t *testing.T) {
	eng := newTestEngine(t, &fakeNER{})

	text := "Contact [REDACTED_EMAIL] for support."
	out, log, err := eng.Anonymize(context.Background(), text, DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, text, out)
	assert.Equal(t, 0, log.TotalMasked)
}

func TestAnonymizeIsIdempotent(t *testing.T) {
	ner := &fakeNER{entities: map[string]string{
		"John Doe": "PERSON",
		"Oslo":     "GPE",
	}}
	eng := newTestEngine(t, ner)

	text := "John Doe (john@example.com, 555-123-4567) lives in Oslo."
	once, firstLog, err := eng.Anonymize(context.Background(), text, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, firstLog.TotalMasked)

	twice, secondLog, err := eng.Anonymize(context.Background(), once, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.Equal(t, 0, secondLog.TotalMasked)
	assert.Empty(t, secondLog.MaskedEntities)
}

func TestAnonymizeCountConsistency(t *testing.T) {
	ner := &fakeNER{entities: map[string]string{
		"John": "PERSON",
		"Mary": "PERSON",
		"ACME": "ORG",
	}}
	eng := newTestEngine(t, ner)

	text := "John and Mary of ACME: john@example.com, mary@example.com."
	_, log, err := eng.Anonymize(context.Background(), text, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, log.TotalMasked, len(log.MaskedEntities))
	sum := 0
	for _, n := range log.ByType {
		sum += n
	}
	assert.Equal(t, log.TotalMasked, sum)
	assert.Equal(t, 5, log.TotalMasked)
}

func TestAnonymizeNonRedactedRegionsPreserved(t *testing.T) {
	ner := &fakeNER{entities: map[string]string{"John Doe": "PERSON"}}
	eng := newTestEngine(t, ner)

	out, _, err := eng.Anonymize(context.Background(),
		"Before John Doe after, reach john@example.com now.", DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "Before [REDACTED_PERSON] after, reach [REDACTED_EMAIL] now.", out)
}

func TestAnonymizeModelWinsOnOverlap(t *testing.T) {
	// The model labels the whole mailbox-style handle as a PERSON; the
	// pattern matcher simultaneously sees an email inside it.
	ner := &fakeNER{entities: map[string]string{"john.doe@example.com": "PERSON"}}
	eng := newTestEngine(t, ner)

	out, log, err := eng.Anonymize(context.Background(), "Sent by john.doe@example.com today.", DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "Sent by [REDACTED_PERSON] today.", out)
	assert.Equal(t, map[string]int{"PERSON": 1}, log.ByType)
}

func TestAnonymizePatternWinsWhenConfigured(t *testing.T) {
	labels := testTokenTable()
	matcher, err := NewMatcherSet(testSpecs(), labels.Tokens())
	require.NoError(t, err)
	ner := &fakeNER{entities: map[string]string{"john.doe@example.com": "PERSON"}}
	eng := NewEngine(ner, matcher, labels, PolicyPatternWins, nil)

	out, log, err := eng.Anonymize(context.Background(), "Sent by john.doe@example.com today.", DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "Sent by [REDACTED_EMAIL] today.", out)
	assert.Equal(t, map[string]int{"EMAIL": 1}, log.ByType)
}

func TestAnonymizeSelectiveTypes(t *testing.T) {
	ner := &fakeNER{entities: map[string]string{"John Doe": "PERSON", "Oslo": "GPE"}}
	eng := newTestEngine(t, ner)

	opts := DefaultOptions()
	opts.IncludeTypes = []string{"PERSON"}

	out, log, err := eng.Anonymize(context.Background(),
		"John Doe of Oslo: john@example.com.", opts)

	require.NoError(t, err)
	assert.Equal(t, "[REDACTED_PERSON] of Oslo: john@example.com.", out)
	assert.Equal(t, map[string]int{"PERSON": 1}, log.ByType)
	for _, rec := range log.MaskedEntities {
		assert.Equal(t, "PERSON", rec.Type)
	}
}

func TestAnonymizeDegradesWhenModelFails(t *testing.T) {
	ner := &fakeNER{err: errors.New(errors.ErrCodeModelUnavailable, "connection refused")}
	eng := newTestEngine(t, ner)

	out, log, err := eng.Anonymize(context.Background(),
		"John Doe, john@example.com", DefaultOptions())

	require.NoError(t, err)
	// Name detection is lost, format-based detection survives.
	assert.Equal(t, "John Doe, [REDACTED_EMAIL]", out)
	assert.Equal(t, 1, log.TotalMasked)
	assert.Equal(t, 1, ner.calls)
}

func TestAnonymizeNilSourceIsPatternOnly(t *testing.T) {
	eng := newTestEngine(t, nil)

	out, log, err := eng.Anonymize(context.Background(), "Reach john@example.com", DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "Reach [REDACTED_EMAIL]", out)
	assert.Equal(t, 1, log.TotalMasked)
}

func TestAnonymizeEmptyInput(t *testing.T) {
	ner := &fakeNER{}
	eng := newTestEngine(t, ner)

	out, log, err := eng.Anonymize(context.Background(), "", DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "", out)
	assert.Equal(t, 0, log.TotalMasked)
	assert.Zero(t, ner.calls)
}

func TestAnonymizeInvalidStrategy(t *testing.T) {
	eng := newTestEngine(t, &fakeNER{})

	_, _, err := eng.Anonymize(context.Background(), "text", Options{Strategy: "hashing"})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidStrategy))
}

func TestAnonymizeAuditDisabledKeepsCounts(t *testing.T) {
	eng := newTestEngine(t, &fakeNER{})

	opts := DefaultOptions()
	opts.Audit = false

	_, log, err := eng.Anonymize(context.Background(), "mail john@example.com", opts)

	require.NoError(t, err)
	assert.Equal(t, 1, log.TotalMasked)
	assert.Equal(t, map[string]int{"EMAIL": 1}, log.ByType)
	assert.Empty(t, log.MaskedEntities)
}

func TestAnonymizeDropsUnknownModelLabels(t *testing.T) {
	ner := &fakeNER{entities: map[string]string{"Tuesday": "DATE"}}
	eng := newTestEngine(t, ner)

	out, log, err := eng.Anonymize(context.Background(), "See you Tuesday.", DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "See you Tuesday.", out)
	assert.Equal(t, 0, log.TotalMasked)
}

func TestAnonymizeDropsModelSpanOverExistingToken(t *testing.T) {
	ner := &fakeNER{entities: map[string]string{"[REDACTED_PERSON]": "PERSON"}}
	eng := newTestEngine(t, ner)

	text := "Hello [REDACTED_PERSON]."
	out, log, err := eng.Anonymize(context.Background(), text, DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, text, out)
	assert.Equal(t, 0, log.TotalMasked)
}

func TestAnonymizeMixedScriptText(t *testing.T) {
	ner := &fakeNER{entities: map[string]string{"Søren Kierkegaard": "PERSON"}}
	eng := newTestEngine(t, ner)

	out, log, err := eng.Anonymize(context.Background(),
		"Søren Kierkegaard skrev: soren@example.dk", DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "[REDACTED_PERSON] skrev: [REDACTED_EMAIL]", out)
	assert.Equal(t, 2, log.TotalMasked)
}

func TestAnonymizeAuditRecordsInAscendingTextOrder(t *testing.T) {
	ner := &fakeNER{entities: map[string]string{"Mary": "PERSON", "John": "PERSON"}}
	eng := newTestEngine(t, ner)

	_, log, err := eng.Anonymize(context.Background(),
		"John wrote to mary@example.com about Mary.", DefaultOptions())

	require.NoError(t, err)
	require.Len(t, log.MaskedEntities, 3)
	assert.Equal(t, "John", log.MaskedEntities[0].Original)
	assert.Equal(t, "mary@example.com", log.MaskedEntities[1].Original)
	assert.Equal(t, "Mary", log.MaskedEntities[2].Original)
}

func TestAnonymizeWithSpansSkipsSource(t *testing.T) {
	ner := &fakeNER{entities: map[string]string{"John Doe": "PERSON"}}
	eng := newTestEngine(t, ner)

	spans := []Span{{Start: 11, End: 19, Label: "PERSON", Source: SourceModel}}
	out, log, err := eng.AnonymizeWithSpans("My name is John Doe.", spans, DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "My name is [REDACTED_PERSON].", out)
	assert.Equal(t, 1, log.TotalMasked)
	assert.Equal(t, 0, ner.calls)
}

func TestAnonymizeWithSpansValidatesOffsets(t *testing.T) {
	eng := newTestEngine(t, &fakeNER{})

	spans := []Span{
		{Start: 3, End: 99, Label: "PERSON", Source: SourceModel},
		{Start: -1, End: 4, Label: "PERSON", Source: SourceModel},
	}
	out, log, err := eng.AnonymizeWithSpans("short text", spans, DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "short text", out)
	assert.Equal(t, 0, log.TotalMasked)
}

func TestAnonymizeWithSpansStillRunsPatterns(t *testing.T) {
	eng := newTestEngine(t, &fakeNER{})

	out, log, err := eng.AnonymizeWithSpans("Mail bob@example.com now.", nil, DefaultOptions())

	require.NoError(t, err)
	assert.Equal(t, "Mail [REDACTED_EMAIL] now.", out)
	assert.Equal(t, 1, log.ByType["EMAIL"])
}

func TestAnonymizeWithSpansHonorsIncludeTypes(t *testing.T) {
	eng := newTestEngine(t, &fakeNER{})

	spans := []Span{
		{Start: 0, End: 4, Label: "PERSON", Source: SourceModel},
		{Start: 14, End: 18, Label: "MONEY", Source: SourceModel},
	}
	opts := Options{IncludeTypes: []string{"MONEY"}, Audit: true}
	out, log, err := eng.AnonymizeWithSpans("John paid the $500.", spans, opts)

	require.NoError(t, err)
	assert.Equal(t, "John paid the [REDACTED_AMOUNT].", out)
	assert.Equal(t, map[string]int{"MONEY": 1}, log.ByType)
}
