// Package rag implements the retrieval side of the drafting pipeline: the
// vector index client, deterministic re-ranking, and multi-document context
// assembly.
package rag

import (
	"context"

	"github.com/policyops/regamend/pkg/docparser"
)

// RetrievedContext is one vector-index hit. Within a result set hits are
// ordered ascending by Distance, re-established after any boosting.
type RetrievedContext struct {
	Content          string                  `json:"content"`
	Metadata         docparser.ChunkMetadata `json:"metadata"`
	Distance         float64                 `json:"distance"`
	OriginalDistance float64                 `json:"original_distance,omitempty"`
	IsBoosted        bool                    `json:"is_boosted,omitempty"`
}

// ContextType distinguishes a full-document context from a degraded snippet.
type ContextType string

const (
	ContextFullDocument ContextType = "full_document"
	ContextSnippet      ContextType = "snippet"
)

// DocumentContext is one source document's context package for prompting.
// At most one exists per distinct document name per retrieval request.
type DocumentContext struct {
	Type             ContextType `json:"type"`
	DocName          string      `json:"doc_name"`
	IsPrimary        bool        `json:"is_primary"`
	Content          string      `json:"content"`
	Section          string      `json:"section,omitempty"` // snippet fallback only
	RelevantSections []string    `json:"relevant_sections,omitempty"`
	Distance         float64     `json:"distance"`
	SnippetCount     int         `json:"snippet_count"`
}

// IndexStats holds vector index statistics.
type IndexStats struct {
	ClassName     string `json:"class_name"`
	DocumentCount int64  `json:"document_count"`
}

// VectorIndex is the contract with the external vector database. The index
// is an opaque shared service; concurrent AddDocuments and Search calls are
// safe per its own concurrency contract.
type VectorIndex interface {
	AddDocuments(ctx context.Context, chunks []docparser.PolicyChunk) error
	Search(ctx context.Context, query string, topK int) ([]RetrievedContext, error)
	GetStats(ctx context.Context) (*IndexStats, error)
	DeleteCollection(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

// DocumentReader loads full policy document text for context assembly.
type DocumentReader interface {
	ReadPolicyDocument(ctx context.Context, name string) (string, error)
}
