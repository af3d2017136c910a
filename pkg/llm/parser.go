package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// degradedExcerptRunes bounds how much raw model output is preserved in a
// degraded suggestion.
const degradedExcerptRunes = 500

// ParseResult is the outcome of interpreting one model response. Parsing
// never fails outright: when nothing structured can be recovered the item is
// a degraded placeholder and Anomaly records why.
type ParseResult struct {
	Item     SuggestionItem `json:"item"`
	Degraded bool           `json:"degraded"`
	Anomaly  string         `json:"anomaly,omitempty"`
}

// ParseSuggestionResponse interprets raw model output as a suggestion. It
// walks a fixed recovery ladder: strip markdown fences, isolate the outermost
// JSON object, strict-parse with field flattening, pattern-based field
// salvage, and finally a degraded placeholder carrying a raw excerpt.
func ParseSuggestionResponse(raw string) ParseResult {
	cleaned := stripFences(raw)

	if extracted := extractObject(cleaned); extracted != "" {
		if item, ok := strictParse(extracted); ok {
			return ParseResult{Item: item}
		}
	}

	if item, ok := regexSalvage(cleaned); ok {
		return ParseResult{
			Item:    item,
			Anomaly: "response was not valid JSON; fields recovered by pattern matching",
		}
	}

	return ParseResult{
		Item: SuggestionItem{
			SuggestionText: excerpt(raw, degradedExcerptRunes),
			Reason:         "model response could not be interpreted as structured output",
		},
		Degraded: true,
		Anomaly:  "no JSON object or recognizable fields found in response",
	}
}

// stripFences removes markdown code fences, with or without a language tag.
var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

func stripFences(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// extractObject isolates the outermost JSON object, tolerating prose before
// and after it.
func extractObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// strictParse unmarshals the candidate object and flattens every field to a
// string. Models sometimes nest before/after objects or arrays where strings
// were requested; those are flattened rather than rejected.
func strictParse(candidate string) (SuggestionItem, bool) {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return SuggestionItem{}, false
	}

	item := SuggestionItem{
		File:           flattenValue(fields["file"]),
		Section:        flattenValue(fields["section"]),
		DiffSummary:    flattenValue(fields["diff_summary"]),
		ChangeType:     flattenValue(fields["change_type"]),
		SuggestionText: flattenValue(fields["suggestion_text"]),
		Reason:         flattenValue(fields["reason"]),
	}

	if trace, ok := fields["trace"].(map[string]interface{}); ok {
		item.Trace.RegulationAnchor = flattenValue(trace["regulation_anchor"])
		item.Trace.PolicyAnchor = flattenValue(trace["policy_anchor"])
	}

	if item.SuggestionText == "" {
		return SuggestionItem{}, false
	}
	return item, true
}

// flattenValue renders any JSON value as a string. A {before, after} object
// becomes a readable two-part string; other composites become indented JSON.
func flattenValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case map[string]interface{}:
		before, hasBefore := value["before"]
		after, hasAfter := value["after"]
		if hasBefore || hasAfter {
			return fmt.Sprintf("Before: %s\n\nAfter: %s", flattenValue(before), flattenValue(after))
		}
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(data)
	case []interface{}:
		var parts []string
		for _, elem := range value {
			parts = append(parts, flattenValue(elem))
		}
		return strings.Join(parts, "\n")
	case float64:
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%g", value)
	default:
		return fmt.Sprint(value)
	}
}

// salvageFields are recovered individually when the object as a whole will
// not parse, typically because of an unescaped quote or truncated output.
var salvageFields = []string{
	"file", "section", "diff_summary", "change_type", "suggestion_text", "reason",
	"regulation_anchor", "policy_anchor",
}

var salvagePatterns = buildSalvagePatterns()

func buildSalvagePatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(salvageFields))
	for _, field := range salvageFields {
		patterns[field] = regexp.MustCompile(`(?s)"` + field + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	}
	return patterns
}

// regexSalvage recovers individual string fields from malformed JSON. It
// succeeds only when a suggestion text is found.
func regexSalvage(text string) (SuggestionItem, bool) {
	get := func(field string) string {
		if m := salvagePatterns[field].FindStringSubmatch(text); m != nil {
			return unescapeJSON(m[1])
		}
		return ""
	}

	item := SuggestionItem{
		File:           get("file"),
		Section:        get("section"),
		DiffSummary:    get("diff_summary"),
		ChangeType:     get("change_type"),
		SuggestionText: get("suggestion_text"),
		Reason:         get("reason"),
		Trace: SuggestionTrace{
			RegulationAnchor: get("regulation_anchor"),
			PolicyAnchor:     get("policy_anchor"),
		},
	}

	if item.SuggestionText == "" {
		return SuggestionItem{}, false
	}
	return item, true
}

// unescapeJSON resolves the escape sequences that matter for recovered text.
var jsonUnescaper = strings.NewReplacer(
	`\n`, "\n",
	`\t`, "\t",
	`\"`, `"`,
	`\\`, `\`,
)

func unescapeJSON(s string) string {
	return jsonUnescaper.Replace(s)
}

// excerpt returns at most n runes of the trimmed text.
func excerpt(text string, n int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n])
}
