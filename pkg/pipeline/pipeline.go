// Package pipeline orchestrates the drafting stages: parse an uploaded
// regulation, ingest policy documents into the vector index, match amendment
// items against the policy corpus, and generate amendment suggestions.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/policyops/regamend/pkg/docparser"
	"github.com/policyops/regamend/pkg/docstore"
	apperrors "github.com/policyops/regamend/pkg/errors"
	"github.com/policyops/regamend/pkg/llm"
	"github.com/policyops/regamend/pkg/monitoring"
	"github.com/policyops/regamend/pkg/rag"
	"github.com/policyops/regamend/pkg/taskstore"
)

// Config holds pipeline orchestration parameters.
type Config struct {
	IngestConcurrency int  `json:"ingest_concurrency"`
	EnhanceQueries    bool `json:"enhance_queries"` // augment retrieval queries with key phrases and a diff summary
}

// Pipeline wires the parsing, retrieval, and generation stages together. All
// collaborators are constructed once at startup; the pipeline itself holds no
// mutable state and is safe for concurrent use.
type Pipeline struct {
	store     *docstore.Store
	parser    *docparser.RegulationParser
	chunker   *docparser.PolicyChunker
	index     rag.VectorIndex
	retriever *rag.Retriever
	enhancer  *rag.QueryEnhancer
	assembler *rag.ContextAssembler
	generator *llm.SuggestionGenerator
	tasks     *taskstore.Store
	config    Config
	logger    *slog.Logger
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Store     *docstore.Store
	Parser    *docparser.RegulationParser
	Chunker   *docparser.PolicyChunker
	Index     rag.VectorIndex
	Retriever *rag.Retriever
	Enhancer  *rag.QueryEnhancer
	Assembler *rag.ContextAssembler
	Generator *llm.SuggestionGenerator
	Tasks     *taskstore.Store
}

// New creates a pipeline over the given collaborators.
func New(deps Deps, config Config) *Pipeline {
	if config.IngestConcurrency <= 0 {
		config.IngestConcurrency = 4
	}
	return &Pipeline{
		store:     deps.Store,
		parser:    deps.Parser,
		chunker:   deps.Chunker,
		index:     deps.Index,
		retriever: deps.Retriever,
		enhancer:  deps.Enhancer,
		assembler: deps.Assembler,
		generator: deps.Generator,
		tasks:     deps.Tasks,
		config:    config,
		logger:    slog.Default().With("component", "pipeline"),
	}
}

// ParseRegulation extracts amendment items from an uploaded regulation
// document and persists them under a fresh task.
func (p *Pipeline) ParseRegulation(ctx context.Context, path string) (*taskstore.RegulationRecord, error) {
	doc, err := p.store.ExtractDocument(ctx, path)
	if err != nil {
		return nil, err
	}

	regulation, err := p.parser.Parse(doc, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	monitoring.RegulationItemsParsed.Add(float64(len(regulation.Items)))

	record := &taskstore.RegulationRecord{
		TaskID:     taskstore.NewTaskID(),
		CreatedAt:  time.Now().UTC(),
		Regulation: regulation,
	}
	if err := p.tasks.SaveRegulation(record); err != nil {
		return nil, err
	}

	p.logger.Info("regulation parsed",
		"task_id", record.TaskID, "filename", regulation.Filename, "items", len(regulation.Items))
	return record, nil
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Processed int               `json:"processed"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Chunks    int               `json:"chunks"`
	Errors    map[string]string `json:"errors,omitempty"` // filename -> failure
}

// IngestPolicies chunks and indexes every supported document in the policy
// directory. Documents are processed concurrently; a failing document is
// reported but does not stop the run.
func (p *Pipeline) IngestPolicies(ctx context.Context) (*IngestReport, error) {
	names, err := p.store.ListPolicyDocuments()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, apperrors.NewValidation("no supported documents in the policy directory")
	}

	type result struct {
		name   string
		chunks int
		err    error
	}
	results := make([]result, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.IngestConcurrency)
	for i, name := range names {
		g.Go(func() error {
			chunks, err := p.ingestOne(gctx, name)
			results[i] = result{name: name, chunks: chunks, err: err}
			return nil
		})
	}
	g.Wait()

	report := &IngestReport{Processed: len(names), Errors: map[string]string{}}
	for _, r := range results {
		if r.err != nil {
			report.Failed++
			report.Errors[r.name] = r.err.Error()
			monitoring.DocumentsIngested.WithLabelValues("failure").Inc()
			continue
		}
		report.Succeeded++
		report.Chunks += r.chunks
		monitoring.DocumentsIngested.WithLabelValues("success").Inc()
	}
	if len(report.Errors) == 0 {
		report.Errors = nil
	}

	p.logger.Info("policy ingestion completed",
		"processed", report.Processed, "succeeded", report.Succeeded,
		"failed", report.Failed, "chunks", report.Chunks)
	return report, nil
}

// ingestOne extracts, chunks, and indexes a single policy document.
func (p *Pipeline) ingestOne(ctx context.Context, name string) (int, error) {
	start := time.Now()
	defer func() {
		monitoring.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	text, err := p.store.ReadPolicyDocument(ctx, name)
	if err != nil {
		return 0, err
	}

	chunks, err := p.chunker.Chunk(text, name)
	if err != nil {
		return 0, err
	}

	if err := p.index.AddDocuments(ctx, chunks); err != nil {
		return 0, err
	}
	monitoring.ChunksIndexed.Add(float64(len(chunks)))
	return len(chunks), nil
}

// Match retrieves policy contexts for every amendment item of a parsed task.
// Items run sequentially in document order; an item whose retrieval fails is
// recorded with the error and no contexts rather than aborting the task.
func (p *Pipeline) Match(ctx context.Context, taskID string) (*taskstore.MatchRecord, error) {
	regulation, err := p.tasks.LoadRegulation(taskID)
	if err != nil {
		return nil, err
	}

	record := &taskstore.MatchRecord{
		TaskID:    taskID,
		CreatedAt: time.Now().UTC(),
		Entries:   make([]taskstore.MatchEntry, 0, len(regulation.Regulation.Items)),
	}

	for _, item := range regulation.Regulation.Items {
		entry := taskstore.MatchEntry{Item: item}

		query := p.enhancer.BuildQuery(item)
		if p.config.EnhanceQueries {
			query = p.enhancer.BuildEnhancedQuery(item)
		}

		start := time.Now()
		hits, err := p.retriever.Search(ctx, query, 0, "")
		monitoring.SearchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			monitoring.Searches.WithLabelValues("failure").Inc()
			p.logger.Error("retrieval failed for amendment item",
				"task_id", taskID, "section", item.SectionTitle, "error", err)
			entry.RetrievalError = err.Error()
			record.Entries = append(record.Entries, entry)
			continue
		}
		monitoring.Searches.WithLabelValues("success").Inc()
		for _, hit := range hits {
			if hit.IsBoosted {
				monitoring.BoostedResults.Inc()
			}
		}

		entry.PolicyContexts = p.assembler.Assemble(ctx, hits)
		record.Entries = append(record.Entries, entry)
	}

	if err := p.tasks.SaveMatch(record); err != nil {
		return nil, err
	}

	p.logger.Info("matching completed", "task_id", taskID, "entries", len(record.Entries))
	return record, nil
}

// Suggest drafts amendment suggestions for a matched task. Output preserves
// amendment item order, then document relevance within each item. Generation
// failures surface as degraded suggestions, never as batch failures.
func (p *Pipeline) Suggest(ctx context.Context, taskID string, opts llm.Options) (*taskstore.SuggestionRecord, error) {
	match, err := p.tasks.LoadMatch(taskID)
	if err != nil {
		return nil, err
	}

	record := &taskstore.SuggestionRecord{
		TaskID:    taskID,
		CreatedAt: time.Now().UTC(),
	}

	for _, entry := range match.Entries {
		if len(entry.PolicyContexts) == 0 {
			// An item retrieval could not serve still gets a record, so the
			// batch stays complete item for item.
			reason := "no policy context retrieved"
			if entry.RetrievalError != "" {
				reason = "retrieval failed: " + entry.RetrievalError
			}
			record.Suggestions = append(record.Suggestions, p.generator.Fallback(entry.Item, reason))
			continue
		}
		start := time.Now()
		items := p.generator.Generate(ctx, entry.Item, entry.PolicyContexts, opts)
		monitoring.GenerationDuration.Observe(time.Since(start).Seconds())
		record.Suggestions = append(record.Suggestions, items...)
	}

	record.ByDocument = groupByDocument(record.Suggestions)

	if err := p.tasks.SaveSuggestions(record); err != nil {
		return nil, err
	}

	p.logger.Info("suggestion generation completed",
		"task_id", taskID, "suggestions", len(record.Suggestions), "documents", len(record.ByDocument))
	return record, nil
}

// groupByDocument buckets suggestions per target document, ordered by change
// count descending so the most affected document leads the report.
func groupByDocument(items []llm.SuggestionItem) []taskstore.DocumentSuggestions {
	byName := map[string]*taskstore.DocumentSuggestions{}
	var order []*taskstore.DocumentSuggestions

	for _, item := range items {
		g, ok := byName[item.File]
		if !ok {
			g = &taskstore.DocumentSuggestions{DocName: item.File}
			byName[item.File] = g
			order = append(order, g)
		}
		g.Items = append(g.Items, item)
		g.ChangeCount++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].ChangeCount > order[j].ChangeCount
	})

	grouped := make([]taskstore.DocumentSuggestions, 0, len(order))
	for _, g := range order {
		grouped = append(grouped, *g)
	}
	return grouped
}

// Stats reports the state of the vector index.
func (p *Pipeline) Stats(ctx context.Context) (*rag.IndexStats, error) {
	return p.index.GetStats(ctx)
}

// History lists stored tasks, newest first.
func (p *Pipeline) History() ([]taskstore.TaskSummary, error) {
	return p.tasks.ListTasks()
}

// LoadSuggestions returns the stored generation result for a task.
func (p *Pipeline) LoadSuggestions(taskID string) (*taskstore.SuggestionRecord, error) {
	return p.tasks.LoadSuggestions(taskID)
}

// RebuildIndex drops and recreates the vector index class. Used before a full
// re-ingestion.
func (p *Pipeline) RebuildIndex(ctx context.Context) error {
	if err := p.index.DeleteCollection(ctx); err != nil {
		p.logger.Warn("failed to delete index class, it may not exist", "error", err)
	}
	if ensurer, ok := p.index.(interface{ EnsureSchema(context.Context) error }); ok {
		return ensurer.EnsureSchema(ctx)
	}
	return nil
}
