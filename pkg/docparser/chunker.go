package docparser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/policyops/regamend/pkg/errors"
)

// ChunkerConfig holds configuration for the policy chunker.
type ChunkerConfig struct {
	ChunkSize             int `json:"chunk_size"`              // maximum chunk size in runes
	ChunkOverlap          int `json:"chunk_overlap"`           // overlap when force-splitting a paragraph
	SmallSectionThreshold int `json:"small_section_threshold"` // sections at or below this stay whole
}

// DefaultChunkerConfig returns the default chunking parameters.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:             1000,
		ChunkOverlap:          200,
		SmallSectionThreshold: 800,
	}
}

var (
	docIDPattern   = regexp.MustCompile(`([A-Z]+-\d+-\d+)`)
	versionPattern = regexp.MustCompile(`[vV](\d+\.\d+)`)
	isoDatePattern = regexp.MustCompile(`(?i)issued(?:\s+date)?\s*[:：]?\s*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`)
	longDatePattern = regexp.MustCompile(
		`(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}`)
)

// policyKeywords is the fixed keyword list tested by substring containment
// during document-level metadata extraction.
var policyKeywords = []string{
	"information security",
	"cloud computing",
	"outsourcing",
	"risk management",
	"supply chain",
	"information service",
	"audit",
	"contract",
	"personal data",
	"backup",
	"business continuity",
}

// PolicyChunker segments internal policy documents into retrieval-sized
// chunks while keeping whole legal provisions intact whenever they fit.
type PolicyChunker struct {
	config     ChunkerConfig
	classifier SegmentClassifier
	logger     *slog.Logger
}

// NewPolicyChunker creates a chunker with the given configuration. Zero or
// negative sizes fall back to defaults.
func NewPolicyChunker(config ChunkerConfig, classifier SegmentClassifier) *PolicyChunker {
	defaults := DefaultChunkerConfig()
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = defaults.ChunkOverlap
	}
	if config.SmallSectionThreshold <= 0 {
		config.SmallSectionThreshold = defaults.SmallSectionThreshold
	}
	return &PolicyChunker{
		config:     config,
		classifier: classifier,
		logger:     slog.Default().With("component", "policy-chunker"),
	}
}

// section is one top-level structural unit of a policy document.
type section struct {
	title   string
	level   SegmentLevel
	content string
}

// Chunk segments a policy document into ordered chunks. An empty document is
// a validation error; the chunk list is all-or-nothing per document.
func (c *PolicyChunker) Chunk(text, filename string) ([]PolicyChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidation("document content is empty")
	}

	base := c.extractMetadata(filename, text)
	sections := c.splitSections(text)

	var chunks []PolicyChunk
	for _, sec := range sections {
		chunks = c.chunkSection(chunks, sec, base)
	}

	c.logger.Info("policy document chunked",
		"filename", filename, "doc_id", base.DocID, "sections", len(sections), "chunks", len(chunks))

	return chunks, nil
}

// extractMetadata derives document-level metadata from the filename and body.
func (c *PolicyChunker) extractMetadata(filename, text string) ChunkMetadata {
	meta := ChunkMetadata{DocName: filename}

	if m := docIDPattern.FindStringSubmatch(filename); m != nil {
		meta.DocID = m[1]
	}
	if m := versionPattern.FindStringSubmatch(filename); m != nil {
		meta.Version = m[1]
	}
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		meta.IssuedAt = m[1]
	} else if m := longDatePattern.FindString(text); m != "" {
		meta.IssuedAt = m
	}

	lower := strings.ToLower(text)
	for _, kw := range policyKeywords {
		if strings.Contains(lower, kw) {
			meta.Keywords = append(meta.Keywords, kw)
		}
	}

	return meta
}

// splitSections cuts the body into top-level sections at structural heading
// lines. Leading content before the first heading becomes an intro section.
func (c *PolicyChunker) splitSections(text string) []section {
	var sections []section
	current := section{title: "Introduction", level: LevelIntro}
	var body strings.Builder

	flush := func() {
		current.content = body.String()
		if strings.TrimSpace(current.content) != "" || current.level != LevelIntro {
			sections = append(sections, current)
		}
		body.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if level, ok := c.classifier.Classify(line); ok {
			flush()
			current = section{title: strings.TrimSpace(line), level: level}
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return sections
}

// chunkSection applies the hierarchical strategy to one section and appends
// the resulting chunks.
func (c *PolicyChunker) chunkSection(chunks []PolicyChunk, sec section, base ChunkMetadata) []PolicyChunk {
	content := strings.TrimSpace(sec.content)
	if content == "" && sec.title == "" {
		return chunks
	}

	// Whole sections that fit stay intact, title embedded for semantic
	// context at embedding time.
	if utf8.RuneCountInString(content) <= c.config.SmallSectionThreshold {
		meta := base
		meta.SectionPath = sec.title
		meta.SectionLevel = string(sec.level)
		meta.ArticleNo = c.classifier.ArticleNumber(content)
		if meta.ArticleNo == "" {
			meta.ArticleNo = c.classifier.ArticleNumber(sec.title)
		}
		meta.IsCompleteSection = true
		return append(chunks, PolicyChunk{
			Content:  strings.TrimSpace(sec.title + "\n" + content),
			Metadata: meta,
			Index:    len(chunks),
		})
	}

	// Oversized section: try article-level units first.
	if units := c.splitUnits(content, LevelArticle); countTitled(units) >= 2 {
		for _, u := range units {
			chunks = c.chunkUnit(chunks, sec, u, base, true)
		}
		return chunks
	}

	// Then numbered sub-sections.
	if units := c.splitUnits(content, LevelItem); countTitled(units) >= 2 {
		for _, u := range units {
			chunks = c.chunkUnit(chunks, sec, u, base, false)
		}
		return chunks
	}

	// Last resort: paragraph-based splitting bounded by the chunk size.
	return c.chunkParagraphs(chunks, sec.title, string(sec.level), content, base)
}

// unit is an article- or item-level slice of a section.
type unit struct {
	title string
	body  string
}

// splitUnits cuts section content at lines of the given structural level.
// Content before the first marker becomes an untitled preamble unit.
func (c *PolicyChunker) splitUnits(content string, level SegmentLevel) []unit {
	var units []unit
	current := unit{}
	var body strings.Builder

	flush := func() {
		current.body = strings.TrimSpace(body.String())
		if current.body != "" || current.title != "" {
			units = append(units, current)
		}
		body.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		if got, ok := c.classifier.Classify(line); ok && got == level {
			flush()
			current = unit{title: strings.TrimSpace(line)}
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return units
}

func countTitled(units []unit) int {
	n := 0
	for _, u := range units {
		if u.title != "" {
			n++
		}
	}
	return n
}

// chunkUnit emits one chunk for an article or sub-section unit, falling back
// to paragraph splitting when the unit itself exceeds the size bound.
func (c *PolicyChunker) chunkUnit(chunks []PolicyChunk, sec section, u unit, base ChunkMetadata, isArticle bool) []PolicyChunk {
	path := sec.title
	if u.title != "" {
		path = fmt.Sprintf("%s > %s", sec.title, u.title)
	}

	content := strings.TrimSpace(u.title + "\n" + u.body)
	if utf8.RuneCountInString(u.body) > c.config.ChunkSize {
		return c.chunkParagraphs(chunks, path, string(sec.level), u.body, base)
	}

	meta := base
	meta.SectionPath = path
	meta.SectionLevel = string(sec.level)
	meta.ArticleNo = c.classifier.ArticleNumber(content)
	meta.IsCompleteArticle = isArticle && u.title != ""
	return append(chunks, PolicyChunk{
		Content:  content,
		Metadata: meta,
		Index:    len(chunks),
	})
}

// chunkParagraphs splits content on blank lines and packs paragraphs into
// chunks bounded by the configured size, force-splitting any paragraph that
// alone exceeds the bound. The section title is prefixed into every chunk
// for context retention.
func (c *PolicyChunker) chunkParagraphs(chunks []PolicyChunk, title, level, content string, base ChunkMetadata) []PolicyChunk {
	paragraphs := splitParagraphs(content)

	var pending []string
	pendingLen := 0
	part := 0

	emit := func() {
		if len(pending) == 0 {
			return
		}
		part++
		body := strings.Join(pending, "\n\n")
		meta := base
		meta.SectionPath = fmt.Sprintf("%s (part %d)", title, part)
		meta.SectionLevel = level
		meta.ArticleNo = c.classifier.ArticleNumber(body)
		chunks = append(chunks, PolicyChunk{
			Content:  strings.TrimSpace(title + "\n" + body),
			Metadata: meta,
			Index:    len(chunks),
		})
		pending = nil
		pendingLen = 0
	}

	for _, para := range paragraphs {
		paraLen := utf8.RuneCountInString(para)

		if paraLen > c.config.ChunkSize {
			emit()
			for _, piece := range forceSplit(para, c.config.ChunkSize, c.config.ChunkOverlap) {
				pending = []string{piece}
				pendingLen = utf8.RuneCountInString(piece)
				emit()
			}
			continue
		}

		if pendingLen+paraLen+2 > c.config.ChunkSize {
			emit()
		}
		pending = append(pending, para)
		pendingLen += paraLen + 2
	}
	emit()

	return chunks
}

// splitParagraphs splits text on blank lines.
func splitParagraphs(text string) []string {
	var paragraphs []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return paragraphs
}

// forceSplit cuts an oversized paragraph into rune windows of at most size,
// stepping by size-overlap so adjacent pieces share context.
func forceSplit(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	if step <= 0 {
		step = size
	}

	var pieces []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, strings.TrimSpace(string(runes[start:end])))
		if end == len(runes) {
			break
		}
	}
	return pieces
}
