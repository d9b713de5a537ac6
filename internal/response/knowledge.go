// Package response turns a classified intent plus extracted fields into a
// natural-language answer using a template knowledge base.
package response

import (
	"encoding/json"
	"os"
	"regexp"

	"github.com/tracefold/anonymizer/pkg/errors"
)

// placeholderRe matches {field} placeholders inside templates.
var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// KnowledgeBase maps intent names to answer templates. Templates may contain
// {field} placeholders that are substituted with extracted entity values at
// generation time.
type KnowledgeBase struct {
	// Templates keys are intent names.
	Templates map[string]string `json:"templates"`

	// Default answers intents with no template of their own.
	Default string `json:"default"`
}

// LoadKnowledgeBase reads and validates a knowledge base JSON file.
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeKnowledgeBaseInvalid, "read knowledge base")
	}
	return ParseKnowledgeBase(raw)
}

// ParseKnowledgeBase decodes and validates knowledge base JSON.
func ParseKnowledgeBase(raw []byte) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{}
	if err := json.Unmarshal(raw, kb); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeKnowledgeBaseInvalid, "decode knowledge base")
	}
	if err := kb.Validate(); err != nil {
		return nil, err
	}
	return kb, nil
}

// Validate rejects a knowledge base no generator could serve: no templates,
// an empty template body, or unbalanced placeholder braces.
func (kb *KnowledgeBase) Validate() error {
	if len(kb.Templates) == 0 {
		return errors.New(errors.ErrCodeKnowledgeBaseInvalid, "knowledge base has no templates")
	}
	if kb.Default == "" {
		return errors.New(errors.ErrCodeKnowledgeBaseInvalid, "knowledge base default answer is required")
	}
	for intentName, tpl := range kb.Templates {
		if intentName == "" {
			return errors.New(errors.ErrCodeKnowledgeBaseInvalid, "knowledge base contains an empty intent name")
		}
		if tpl == "" {
			return errors.Newf(errors.ErrCodeKnowledgeBaseInvalid, "intent %q has an empty template", intentName)
		}
		if err := checkBraces(intentName, tpl); err != nil {
			return err
		}
	}
	return nil
}

// checkBraces verifies that every brace opens and closes a well-formed
// placeholder; a stray brace would otherwise surface verbatim in answers.
func checkBraces(intentName, tpl string) error {
	depth := 0
	for _, r := range tpl {
		switch r {
		case '{':
			depth++
			if depth > 1 {
				return errors.Newf(errors.ErrCodeKnowledgeBaseInvalid,
					"intent %q template has nested braces", intentName)
			}
		case '}':
			depth--
			if depth < 0 {
				return errors.Newf(errors.ErrCodeKnowledgeBaseInvalid,
					"intent %q template has an unmatched closing brace", intentName)
			}
		}
	}
	if depth != 0 {
		return errors.Newf(errors.ErrCodeKnowledgeBaseInvalid,
			"intent %q template has an unclosed brace", intentName)
	}
	return nil
}

// Placeholders lists the distinct placeholder fields of an intent's template
// in order of first appearance.
func (kb *KnowledgeBase) Placeholders(intentName string) []string {
	tpl, ok := kb.Templates[intentName]
	if !ok {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, match := range placeholderRe.FindAllStringSubmatch(tpl, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			out = append(out, match[1])
		}
	}
	return out
}
