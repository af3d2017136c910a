// Package llm wraps the language model behind a small completion interface
// and turns model output into amendment suggestions, surviving whatever shape
// the model actually returns.
package llm

// SuggestionTrace links a suggestion back to its regulatory and policy
// anchors.
type SuggestionTrace struct {
	RegulationAnchor string `json:"regulation_anchor"`
	PolicyAnchor     string `json:"policy_anchor"`
}

// SuggestionItem is one drafted amendment suggestion. Every field is a plain
// string so the item survives JSON round-trips byte for byte.
type SuggestionItem struct {
	File           string          `json:"file"`
	Section        string          `json:"section"`
	DiffSummary    string          `json:"diff_summary"`
	ChangeType     string          `json:"change_type"`
	SuggestionText string          `json:"suggestion_text"`
	Reason         string          `json:"reason"`
	Trace          SuggestionTrace `json:"trace"`
}

// Options are per-request generation overrides. Zero values fall back to the
// client's configured defaults; the shared configuration is never mutated.
type Options struct {
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int32   `json:"max_output_tokens,omitempty"`
}
