package docparser

import (
	"regexp"
	"strings"
)

// SegmentLevel classifies a structural line of a legal document.
type SegmentLevel string

const (
	LevelChapter SegmentLevel = "chapter"
	LevelSection SegmentLevel = "section"
	LevelArticle SegmentLevel = "article"
	LevelItem    SegmentLevel = "item"
	LevelIntro   SegmentLevel = "intro"
)

// SegmentClassifier recognizes structural markers in legal text. Parsing and
// chunking go through this interface so the pattern set can be swapped for
// other drafting conventions without touching either algorithm.
type SegmentClassifier interface {
	// Classify reports the structural level of a heading line, or false if
	// the line is body text.
	Classify(line string) (SegmentLevel, bool)
	// Anchor extracts the normalized article/chapter/section identifier from
	// a heading line ("Article 2", "Chapter III"). Falls back to the line
	// itself when no marker is present.
	Anchor(line string) string
	// ArticleNumber returns the first article marker found anywhere in text,
	// or "" if none.
	ArticleNumber(text string) string
}

// englishClassifier matches English legal drafting conventions.
type englishClassifier struct {
	chapter *regexp.Regexp
	section *regexp.Regexp
	article *regexp.Regexp
	item    *regexp.Regexp
	anchor  *regexp.Regexp
}

// NewSegmentClassifier returns the default classifier for English-language
// regulatory and policy documents.
func NewSegmentClassifier() SegmentClassifier {
	return &englishClassifier{
		chapter: regexp.MustCompile(`(?i)^chapter\s+(?:[IVXLCDM]+|\d+)\b`),
		section: regexp.MustCompile(`(?i)^section\s+\d+\b`),
		article: regexp.MustCompile(`(?i)^article\s+\d+(?:-\d+)?\b`),
		item:    regexp.MustCompile(`^(?:\d+[.)]\s+|\(\d+\)\s*)`),
		anchor:  regexp.MustCompile(`(?i)\b(?:article|chapter|section)\s+(?:[IVXLCDM]+|\d+(?:-\d+)?)\b`),
	}
}

func (c *englishClassifier) Classify(line string) (SegmentLevel, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	switch {
	case c.chapter.MatchString(trimmed):
		return LevelChapter, true
	case c.section.MatchString(trimmed):
		return LevelSection, true
	case c.article.MatchString(trimmed):
		return LevelArticle, true
	case c.item.MatchString(trimmed):
		return LevelItem, true
	}
	return "", false
}

func (c *englishClassifier) Anchor(line string) string {
	trimmed := strings.TrimSpace(line)
	if m := c.anchor.FindString(trimmed); m != "" {
		return normalizeAnchor(m)
	}
	return trimmed
}

func (c *englishClassifier) ArticleNumber(text string) string {
	if m := c.article.FindString(strings.TrimSpace(text)); m != "" {
		return normalizeAnchor(m)
	}
	// Search line by line; the marker may not open the text.
	for _, line := range strings.Split(text, "\n") {
		if m := c.article.FindString(strings.TrimSpace(line)); m != "" {
			return normalizeAnchor(m)
		}
	}
	return ""
}

// normalizeAnchor canonicalizes casing ("article 2" -> "Article 2").
func normalizeAnchor(marker string) string {
	fields := strings.Fields(marker)
	if len(fields) == 0 {
		return marker
	}
	word := strings.ToLower(fields[0])
	fields[0] = strings.ToUpper(word[:1]) + word[1:]
	return strings.Join(fields, " ")
}
