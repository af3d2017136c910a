package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/policyops/regamend/pkg/docparser"
	"github.com/policyops/regamend/pkg/monitoring"
	"github.com/policyops/regamend/pkg/rag"
)

// Generation modes. Per-document drafts one suggestion per retrieved source
// document; top-document drafts only against the most relevant one.
const (
	ModePerDocument = "per-document"
	ModeTopDocument = "top-document"
)

// GeneratorConfig holds suggestion generation parameters.
type GeneratorConfig struct {
	Mode           string `json:"mode"`
	MaxContextDocs int    `json:"max_context_docs"` // target plus references in one prompt
}

// DefaultGeneratorConfig returns generation defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Mode:           ModePerDocument,
		MaxContextDocs: 3,
	}
}

// SuggestionGenerator turns one amendment item plus its retrieved policy
// contexts into drafted suggestions. Generation failures degrade to
// placeholder items; the generator itself never fails a batch.
type SuggestionGenerator struct {
	client Client
	config GeneratorConfig
	logger *slog.Logger
}

// NewSuggestionGenerator creates a generator over the given completion
// client.
func NewSuggestionGenerator(client Client, config GeneratorConfig) *SuggestionGenerator {
	defaults := DefaultGeneratorConfig()
	if config.Mode == "" {
		config.Mode = defaults.Mode
	}
	if config.MaxContextDocs <= 0 {
		config.MaxContextDocs = defaults.MaxContextDocs
	}
	return &SuggestionGenerator{
		client: client,
		config: config,
		logger: slog.Default().With("component", "suggestion-generator"),
	}
}

// Generate drafts suggestions for one amendment item. In per-document mode
// each retrieved document takes a turn as the drafting target with the others
// as read-only reference; top-document mode drafts once against the most
// relevant document. An empty context list yields no suggestions.
func (g *SuggestionGenerator) Generate(ctx context.Context, item docparser.RegulationDiffItem, contexts []rag.DocumentContext, opts Options) []SuggestionItem {
	if len(contexts) == 0 {
		g.logger.Warn("no policy context for amendment item, skipping", "section", item.SectionTitle)
		return nil
	}

	targets := contexts
	if g.config.Mode == ModeTopDocument {
		targets = contexts[:1]
	}

	items := make([]SuggestionItem, 0, len(targets))
	for i := range targets {
		items = append(items, g.generateOne(ctx, item, contexts, i, opts))
	}
	return items
}

// generateOne drafts one suggestion with contexts[targetIndex] as the target.
func (g *SuggestionGenerator) generateOne(ctx context.Context, item docparser.RegulationDiffItem, contexts []rag.DocumentContext, targetIndex int, opts Options) SuggestionItem {
	target := contexts[targetIndex]
	prompt := g.buildPrompt(item, contexts, targetIndex)

	raw, err := g.client.Complete(ctx, prompt, opts)
	if err != nil {
		g.logger.Error("suggestion generation failed, emitting degraded item",
			"doc_name", target.DocName, "section", item.SectionTitle, "error", err)
		monitoring.SuggestionsGenerated.WithLabelValues("degraded").Inc()
		return g.applyDefaults(SuggestionItem{
			Reason: fmt.Sprintf("generation failed: %v", err),
		}, item, target)
	}

	result := ParseSuggestionResponse(raw)
	outcome := "ok"
	if result.Anomaly != "" {
		monitoring.ParseAnomalies.Inc()
		outcome = "recovered"
		g.logger.Warn("model response required recovery",
			"doc_name", target.DocName, "degraded", result.Degraded, "anomaly", result.Anomaly)
	}
	if result.Degraded {
		outcome = "degraded"
	}
	monitoring.SuggestionsGenerated.WithLabelValues(outcome).Inc()

	return g.applyDefaults(result.Item, item, target)
}

// Fallback returns a degraded placeholder for an amendment item retrieval
// could not serve, keeping the suggestion batch complete item for item.
func (g *SuggestionGenerator) Fallback(item docparser.RegulationDiffItem, reason string) SuggestionItem {
	g.logger.Warn("no policy context for amendment item, emitting degraded item",
		"section", item.SectionTitle, "reason", reason)
	monitoring.SuggestionsGenerated.WithLabelValues("degraded").Inc()

	s := SuggestionItem{
		Section:    item.SectionTitle,
		ChangeType: string(item.DiffType),
		Reason:     reason,
	}
	if len(item.Anchors) > 0 {
		s.Trace.RegulationAnchor = item.Anchors[0]
	}
	return s
}

// applyDefaults fills holes the model left so every item is addressable.
func (g *SuggestionGenerator) applyDefaults(s SuggestionItem, item docparser.RegulationDiffItem, target rag.DocumentContext) SuggestionItem {
	if s.File == "" {
		s.File = target.DocName
	}
	if s.Section == "" && len(target.RelevantSections) > 0 {
		s.Section = target.RelevantSections[0]
	}
	if s.ChangeType == "" {
		s.ChangeType = string(item.DiffType)
	}
	if s.Trace.RegulationAnchor == "" && len(item.Anchors) > 0 {
		s.Trace.RegulationAnchor = item.Anchors[0]
	}
	if s.Trace.PolicyAnchor == "" {
		s.Trace.PolicyAnchor = s.Section
	}
	return s
}

// buildPrompt assembles the drafting prompt: the amendment, the target
// document, and up to MaxContextDocs-1 reference documents, followed by the
// output schema instructions.
func (g *SuggestionGenerator) buildPrompt(item docparser.RegulationDiffItem, contexts []rag.DocumentContext, targetIndex int) string {
	target := contexts[targetIndex]

	var b strings.Builder
	b.WriteString("You are a compliance analyst drafting amendments to internal policy documents ")
	b.WriteString("in response to a regulatory change.\n\n")

	b.WriteString("## Regulatory amendment\n")
	b.WriteString("Provision: " + item.SectionTitle + "\n")
	b.WriteString("Change type: " + string(item.DiffType) + "\n")
	if item.OldText != "" {
		b.WriteString("Current regulatory text:\n" + item.OldText + "\n")
	}
	if item.NewText != "" {
		b.WriteString("Amended regulatory text:\n" + item.NewText + "\n")
	}
	if item.Explanation != "" {
		b.WriteString("Regulator's explanation:\n" + item.Explanation + "\n")
	}

	b.WriteString("\n## Target policy document (draft your amendment for this document only)\n")
	writeDocumentContext(&b, target)

	references := 0
	for i, dc := range contexts {
		if i == targetIndex || references >= g.config.MaxContextDocs-1 {
			continue
		}
		if references == 0 {
			b.WriteString("\n## Reference documents (read-only, do not draft changes for these)\n")
		}
		writeDocumentContext(&b, dc)
		references++
	}

	b.WriteString(`
## Output format
Respond with a single JSON object and nothing else. Every field must be a plain string.
{
  "file": "target document filename",
  "section": "section or article of the target document to amend",
  "diff_summary": "one-sentence summary of the policy change",
  "change_type": "NEW, MODIFY, or DELETE",
  "suggestion_text": "the full amended policy text you propose",
  "reason": "why this change is needed under the amended regulation",
  "trace": {
    "regulation_anchor": "the regulatory provision driving this change",
    "policy_anchor": "the policy provision being changed"
  }
}`)

	return b.String()
}

// writeDocumentContext serializes one document context into the prompt.
func writeDocumentContext(b *strings.Builder, dc rag.DocumentContext) {
	b.WriteString("### " + dc.DocName)
	if dc.Type == rag.ContextSnippet {
		b.WriteString(" (excerpts only)")
	}
	b.WriteString("\n")
	if len(dc.RelevantSections) > 0 {
		b.WriteString("Most relevant sections: " + strings.Join(dc.RelevantSections, "; ") + "\n")
	}
	b.WriteString(dc.Content + "\n")
}
