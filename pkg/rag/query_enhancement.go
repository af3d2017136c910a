package rag

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/policyops/regamend/pkg/docparser"
)

// keyPhrasePattern captures obligation clauses, the parts of a provision most
// likely to match policy language.
var keyPhrasePattern = regexp.MustCompile(
	`(?i)\b((?:shall|must|may not|is prohibited from|is required to)\s+[^.;\n]{3,80})`)

// domainTerms are scanned by substring containment and appended to the query
// when present in the amendment text.
var domainTerms = []string{
	"information security",
	"cloud computing",
	"outsourcing",
	"risk assessment",
	"supply chain",
	"personal data",
	"business continuity",
	"audit",
}

const (
	maxKeyPhrases   = 8
	maxDiffTokens   = 10
	replaceSimilars = 0.5 // character-set Jaccard threshold for pairing a removed token with an added one
)

// QueryEnhancer builds retrieval queries from amendment items. The base query
// concatenates the item fields; the enhanced query adds extracted obligation
// phrases and a lexical diff summary.
type QueryEnhancer struct {
	logger *slog.Logger
}

// NewQueryEnhancer creates a query enhancer.
func NewQueryEnhancer() *QueryEnhancer {
	return &QueryEnhancer{logger: slog.Default().With("component", "query-enhancer")}
}

// BuildQuery returns the base retrieval query for an amendment item: the
// section title, the amended text (or current text for deletions), and the
// explanation.
func (e *QueryEnhancer) BuildQuery(item docparser.RegulationDiffItem) string {
	body := item.NewText
	if body == "" {
		body = item.OldText
	}
	parts := []string{item.SectionTitle, body, item.Explanation}
	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(p))
		}
	}
	return strings.Join(nonEmpty, "\n")
}

// BuildEnhancedQuery augments the base query with key phrases and a summary
// of what the amendment adds, removes, and replaces.
func (e *QueryEnhancer) BuildEnhancedQuery(item docparser.RegulationDiffItem) string {
	query := e.BuildQuery(item)

	phrases := e.ExtractKeyPhrases(item.NewText + "\n" + item.Explanation)
	if len(phrases) > 0 {
		query += "\nKey requirements: " + strings.Join(phrases, "; ")
	}

	if summary := e.DiffSummary(item.OldText, item.NewText); summary != "" {
		query += "\nChanges: " + summary
	}

	return query
}

// ExtractKeyPhrases pulls obligation clauses and known domain terms from the
// text, deduplicated and capped.
func (e *QueryEnhancer) ExtractKeyPhrases(text string) []string {
	seen := map[string]bool{}
	var phrases []string

	add := func(p string) {
		p = strings.TrimSpace(p)
		key := strings.ToLower(p)
		if p == "" || seen[key] || len(phrases) >= maxKeyPhrases {
			return
		}
		seen[key] = true
		phrases = append(phrases, p)
	}

	for _, m := range keyPhrasePattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}

	lower := strings.ToLower(text)
	for _, term := range domainTerms {
		if strings.Contains(lower, term) {
			add(term)
		}
	}

	return phrases
}

// DiffSummary produces a terse token-level description of the amendment.
// Removed tokens that closely resemble an added token are reported as
// replacements; the similarity test is character-set Jaccard, crude but
// stable.
func (e *QueryEnhancer) DiffSummary(oldText, newText string) string {
	oldTokens := tokenSet(oldText)
	newTokens := tokenSet(newText)

	var added, removed []string
	for t := range newTokens {
		if !oldTokens[t] {
			added = append(added, t)
		}
	}
	for t := range oldTokens {
		if !newTokens[t] {
			removed = append(removed, t)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	var replaced []string
	remaining := added
	for _, r := range removed {
		best := -1
		for i, a := range remaining {
			if charJaccard(r, a) >= replaceSimilars {
				best = i
				break
			}
		}
		if best >= 0 {
			replaced = append(replaced, fmt.Sprintf("%s -> %s", r, remaining[best]))
			remaining = append(remaining[:best], remaining[best+1:]...)
		}
	}
	added = remaining

	removed = pruneReplaced(removed, replaced)

	var parts []string
	if len(replaced) > 0 {
		parts = append(parts, "replaced "+strings.Join(capTokens(replaced), ", "))
	}
	if len(added) > 0 {
		parts = append(parts, "added "+strings.Join(capTokens(added), ", "))
	}
	if len(removed) > 0 {
		parts = append(parts, "removed "+strings.Join(capTokens(removed), ", "))
	}
	return strings.Join(parts, "; ")
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]{2,}`)

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, t := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		set[t] = true
	}
	return set
}

// charJaccard computes Jaccard similarity over the character sets of two
// tokens.
func charJaccard(a, b string) float64 {
	setA := map[rune]bool{}
	for _, r := range a {
		setA[r] = true
	}
	setB := map[rune]bool{}
	for _, r := range b {
		setB[r] = true
	}

	intersection := 0
	for r := range setA {
		if setB[r] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// pruneReplaced drops removed tokens already reported as replacements.
func pruneReplaced(removed, replaced []string) []string {
	inReplacement := map[string]bool{}
	for _, pair := range replaced {
		if i := strings.Index(pair, " -> "); i > 0 {
			inReplacement[pair[:i]] = true
		}
	}
	kept := removed[:0]
	for _, t := range removed {
		if !inReplacement[t] {
			kept = append(kept, t)
		}
	}
	return kept
}

func capTokens(tokens []string) []string {
	if len(tokens) > maxDiffTokens {
		return tokens[:maxDiffTokens]
	}
	return tokens
}
