// Package docparser extracts structured amendment items from regulatory
// comparison documents and segments internal policy documents into
// retrieval-sized chunks.
package docparser

import "time"

// DiffType classifies one regulatory amendment unit.
type DiffType string

const (
	DiffNew    DiffType = "NEW"
	DiffModify DiffType = "MODIFY"
	DiffDelete DiffType = "DELETE"
)

// RegulationDiffItem is one amendment unit extracted from a comparison
// document. Items are immutable once parsed.
type RegulationDiffItem struct {
	SectionTitle string   `json:"sectionTitle"`
	OldText      string   `json:"oldText,omitempty"`
	NewText      string   `json:"newText,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
	DiffType     DiffType `json:"diffType"`
	Anchors      []string `json:"anchors"`
}

// RegulationDiffDoc is the parse result for one regulation document.
type RegulationDiffDoc struct {
	Filename   string               `json:"filename"`
	UploadedAt time.Time            `json:"uploadedAt"`
	Items      []RegulationDiffItem `json:"items"`
}

// ChunkMetadata carries the hierarchical and document-level metadata of a
// policy chunk. Array values are flattened to JSON strings before they reach
// the vector index, which stores scalar metadata only.
type ChunkMetadata struct {
	DocID             string   `json:"doc_id"`
	DocName           string   `json:"doc_name"`
	Version           string   `json:"version,omitempty"`
	IssuedAt          string   `json:"issued_at,omitempty"`
	SectionPath       string   `json:"section_path,omitempty"`
	ArticleNo         string   `json:"article_no,omitempty"`
	SectionLevel      string   `json:"section_level,omitempty"`
	Keywords          []string `json:"keywords,omitempty"`
	IsCompleteSection bool     `json:"is_complete_section,omitempty"`
	IsCompleteArticle bool     `json:"is_complete_article,omitempty"`
}

// PolicyChunk is one retrievable unit of an internal policy document.
type PolicyChunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Index    int           `json:"index"`
}

// classifyDiff applies the diff-type invariant: NEW iff old empty and new
// present, DELETE iff the reverse, MODIFY otherwise.
func classifyDiff(oldText, newText string) DiffType {
	switch {
	case oldText == "" && newText != "":
		return DiffNew
	case oldText != "" && newText == "":
		return DiffDelete
	default:
		return DiffModify
	}
}
