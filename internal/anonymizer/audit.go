package anonymizer

import "time"

// AuditRecord documents a single applied redaction. Records are created once
// per applied span, appended to an ordered sequence, and never mutated.
type AuditRecord struct {
	Type        string `json:"type"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// AuditLog is the structured record of everything redacted from one
// document, for compliance traceability. Timestamp is the creation time of
// the log, not of the source text.
//
// ByType serializes with alphabetically ordered keys (encoding/json sorts
// map keys); MaskedEntities preserves detection order, which is ascending
// span start in the resolved set.
type AuditLog struct {
	TotalMasked    int            `json:"total_masked"`
	ByType         map[string]int `json:"by_type"`
	MaskedEntities []AuditRecord  `json:"masked_entities"`
	Timestamp      time.Time      `json:"timestamp"`
}

// NewAuditLog returns an empty audit log with initialized collections so it
// serializes as {} and [] rather than null.
func NewAuditLog() *AuditLog {
	return &AuditLog{
		ByType:         map[string]int{},
		MaskedEntities: []AuditRecord{},
		Timestamp:      time.Now().UTC(),
	}
}

// BuildAuditLog creates the audit log for one document from the spans that
// were actually applied, in detection order. total_masked always equals both
// the record count and the sum over by_type.
func BuildAuditLog(applied []Span) *AuditLog {
	log := NewAuditLog()
	for _, s := range applied {
		log.TotalMasked++
		log.ByType[s.Label]++
		log.MaskedEntities = append(log.MaskedEntities, AuditRecord{
			Type:        s.Label,
			Original:    s.Text,
			Replacement: s.Token,
		})
	}
	return log
}
