package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyops/regamend/pkg/docparser"
	"github.com/policyops/regamend/pkg/docstore"
	"github.com/policyops/regamend/pkg/llm"
	"github.com/policyops/regamend/pkg/pipeline"
	"github.com/policyops/regamend/pkg/rag"
	"github.com/policyops/regamend/pkg/taskstore"
)

type stubIndex struct{}

func (stubIndex) AddDocuments(ctx context.Context, chunks []docparser.PolicyChunk) error { return nil }
func (stubIndex) Search(ctx context.Context, query string, topK int) ([]rag.RetrievedContext, error) {
	return nil, nil
}
func (stubIndex) GetStats(ctx context.Context) (*rag.IndexStats, error) {
	return &rag.IndexStats{ClassName: "PolicyChunk"}, nil
}
func (stubIndex) DeleteCollection(ctx context.Context) error { return nil }
func (stubIndex) HealthCheck(ctx context.Context) error      { return nil }

type stubLLM struct{}

func (stubLLM) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	return `{"suggestion_text": "ok"}`, nil
}
func (stubLLM) HealthCheck(ctx context.Context) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	policyDir := filepath.Join(dir, "policies")
	require.NoError(t, os.MkdirAll(policyDir, 0o755))

	store := docstore.NewStore(policyDir, nil)
	classifier := docparser.NewSegmentClassifier()
	index := stubIndex{}

	tasks, err := taskstore.NewStore(filepath.Join(dir, "tasks"))
	require.NoError(t, err)

	p := pipeline.New(pipeline.Deps{
		Store:     store,
		Parser:    docparser.NewRegulationParser(classifier),
		Chunker:   docparser.NewPolicyChunker(docparser.DefaultChunkerConfig(), classifier),
		Index:     index,
		Retriever: rag.NewRetriever(index, nil, rag.RetrieverConfig{TopK: 5, PriorityWeight: 1.0}),
		Enhancer:  rag.NewQueryEnhancer(),
		Assembler: rag.NewContextAssembler(store, rag.AssemblerConfig{}),
		Generator: llm.NewSuggestionGenerator(stubLLM{}, llm.GeneratorConfig{}),
		Tasks:     tasks,
	}, pipeline.Config{})

	return New(":0", p, filepath.Join(dir, "uploads"))
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMatchUnknownTaskReturns404(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/match/no-such-task", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestUploadMissingFileReturns400(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/regulation/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestEmptyPolicyDirReturns400(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/policies/ingest", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTasksEmptyHistory(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStats(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PolicyChunk")
}

func TestSuggestInvalidBodyReturns400(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/suggest/some-task", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
