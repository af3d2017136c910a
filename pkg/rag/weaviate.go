package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/policyops/regamend/pkg/docparser"
	apperrors "github.com/policyops/regamend/pkg/errors"
)

// IndexConfig holds configuration for the Weaviate index client.
type IndexConfig struct {
	Host         string        `json:"host"`
	Scheme       string        `json:"scheme"`
	APIKey       string        `json:"api_key"`
	ClassName    string        `json:"class_name"`
	OpenAIAPIKey string        `json:"openai_api_key"` // key for the text2vec-openai module
	Timeout      time.Duration `json:"timeout"`
}

// IndexClient is the Weaviate-backed implementation of VectorIndex. Metadata
// arrays are serialized to JSON strings because the index stores scalar
// metadata only.
type IndexClient struct {
	client *weaviate.Client
	config *IndexConfig
	logger *slog.Logger
}

// NewIndexClient creates a Weaviate client. The schema is not touched here;
// call EnsureSchema as an explicit startup step so index unavailability is a
// startup failure rather than a first-search surprise.
func NewIndexClient(config *IndexConfig) (*IndexClient, error) {
	if config == nil {
		return nil, fmt.Errorf("index config cannot be nil")
	}
	if config.Scheme == "" {
		config.Scheme = "http"
	}
	if config.ClassName == "" {
		config.ClassName = "PolicyChunk"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	var authConfig auth.Config
	if config.APIKey != "" {
		authConfig = auth.ApiKey{Value: config.APIKey}
	}

	headers := map[string]string{}
	if config.OpenAIAPIKey != "" {
		headers["X-OpenAI-Api-Key"] = config.OpenAIAPIKey
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:       config.Host,
		Scheme:     config.Scheme,
		AuthConfig: authConfig,
		Headers:    headers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	return &IndexClient{
		client: client,
		config: config,
		logger: slog.Default().With("component", "index-client"),
	}, nil
}

// HealthCheck verifies the index is reachable and ready.
func (ic *IndexClient) HealthCheck(ctx context.Context) error {
	ready, err := ic.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return apperrors.WrapInternal(err, "vector index unreachable")
	}
	if !ready {
		return apperrors.NewInternal("vector index not ready")
	}
	return nil
}

// EnsureSchema creates the policy chunk class if it does not exist yet.
func (ic *IndexClient) EnsureSchema(ctx context.Context) error {
	class := &models.Class{
		Class:       ic.config.ClassName,
		Description: "Internal policy document chunks for amendment drafting",
		Vectorizer:  "text2vec-openai",
		ModuleConfig: map[string]interface{}{
			"text2vec-openai": map[string]interface{}{
				"model": "text-embedding-3-large",
				"type":  "text",
			},
		},
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}, Description: "Chunk content"},
			{Name: "docId", DataType: []string{"text"}, Description: "Policy document identifier"},
			{Name: "docName", DataType: []string{"text"}, Description: "Policy document filename"},
			{Name: "version", DataType: []string{"text"}, Description: "Document version"},
			{Name: "issuedAt", DataType: []string{"text"}, Description: "Issue date"},
			{Name: "sectionPath", DataType: []string{"text"}, Description: "Hierarchical section path"},
			{Name: "articleNo", DataType: []string{"text"}, Description: "Article number"},
			{Name: "sectionLevel", DataType: []string{"text"}, Description: "Structural level of the source section"},
			{Name: "keywords", DataType: []string{"text"}, Description: "JSON-encoded keyword list"},
			{Name: "chunkIndex", DataType: []string{"int"}, Description: "Insertion order within the source document"},
			{Name: "isCompleteSection", DataType: []string{"boolean"}, Description: "Chunk covers a whole section"},
			{Name: "isCompleteArticle", DataType: []string{"boolean"}, Description: "Chunk covers a whole article"},
		},
	}

	err := ic.client.Schema().ClassCreator().WithClass(class).Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			ic.logger.Info("index class already exists", "class", ic.config.ClassName)
			return nil
		}
		return apperrors.WrapInternal(err, "failed to create index class %s", ic.config.ClassName)
	}

	ic.logger.Info("created index class", "class", ic.config.ClassName)
	return nil
}

// AddDocuments persists policy chunks into the index.
func (ic *IndexClient) AddDocuments(ctx context.Context, chunks []docparser.PolicyChunk) error {
	ic.logger.Info("adding chunks to index", "count", len(chunks))

	for i, chunk := range chunks {
		keywords, _ := json.Marshal(chunk.Metadata.Keywords)

		properties := map[string]interface{}{
			"content":           chunk.Content,
			"docId":             chunk.Metadata.DocID,
			"docName":           chunk.Metadata.DocName,
			"version":           chunk.Metadata.Version,
			"issuedAt":          chunk.Metadata.IssuedAt,
			"sectionPath":       chunk.Metadata.SectionPath,
			"articleNo":         chunk.Metadata.ArticleNo,
			"sectionLevel":      chunk.Metadata.SectionLevel,
			"keywords":          string(keywords),
			"chunkIndex":        chunk.Index,
			"isCompleteSection": chunk.Metadata.IsCompleteSection,
			"isCompleteArticle": chunk.Metadata.IsCompleteArticle,
		}

		_, err := ic.client.Data().Creator().
			WithClassName(ic.config.ClassName).
			WithID(uuid.NewString()).
			WithProperties(properties).
			Do(ctx)
		if err != nil {
			return apperrors.WrapInternal(err, "failed to add chunk %d/%d to index", i+1, len(chunks))
		}
	}

	ic.logger.Info("chunks added to index", "count", len(chunks))
	return nil
}

// Search performs a near-text query and returns hits ordered ascending by
// distance.
func (ic *IndexClient) Search(ctx context.Context, query string, topK int) ([]RetrievedContext, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewValidation("search query cannot be empty")
	}
	if topK <= 0 {
		topK = 5
	}

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "docId"},
		{Name: "docName"},
		{Name: "version"},
		{Name: "issuedAt"},
		{Name: "sectionPath"},
		{Name: "articleNo"},
		{Name: "sectionLevel"},
		{Name: "keywords"},
		{Name: "chunkIndex"},
		{Name: "isCompleteSection"},
		{Name: "isCompleteArticle"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "distance"},
		}},
	}

	result, err := ic.client.GraphQL().Get().
		WithClassName(ic.config.ClassName).
		WithNearText(ic.client.GraphQL().NearTextArgBuilder().WithConcepts([]string{query})).
		WithFields(fields...).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		ic.logger.Error("index search failed", "error", err)
		return nil, apperrors.WrapInternal(err, "vector index search failed")
	}
	if len(result.Errors) > 0 {
		return nil, apperrors.NewInternal("vector index search failed: %s", result.Errors[0].Message)
	}

	var hits []RetrievedContext
	if result.Data != nil {
		if data, ok := result.Data["Get"].(map[string]interface{}); ok {
			if rows, ok := data[ic.config.ClassName].([]interface{}); ok {
				for _, row := range rows {
					if item, ok := row.(map[string]interface{}); ok {
						hits = append(hits, ic.parseHit(item))
					}
				}
			}
		}
	}

	ic.logger.Info("index search completed", "results", len(hits))
	return hits, nil
}

// parseHit converts one GraphQL result row into a RetrievedContext.
func (ic *IndexClient) parseHit(item map[string]interface{}) RetrievedContext {
	hit := RetrievedContext{}

	if v, ok := item["content"].(string); ok {
		hit.Content = v
	}
	if v, ok := item["docId"].(string); ok {
		hit.Metadata.DocID = v
	}
	if v, ok := item["docName"].(string); ok {
		hit.Metadata.DocName = v
	}
	if v, ok := item["version"].(string); ok {
		hit.Metadata.Version = v
	}
	if v, ok := item["issuedAt"].(string); ok {
		hit.Metadata.IssuedAt = v
	}
	if v, ok := item["sectionPath"].(string); ok {
		hit.Metadata.SectionPath = v
	}
	if v, ok := item["articleNo"].(string); ok {
		hit.Metadata.ArticleNo = v
	}
	if v, ok := item["sectionLevel"].(string); ok {
		hit.Metadata.SectionLevel = v
	}
	if v, ok := item["keywords"].(string); ok && v != "" {
		var keywords []string
		if err := json.Unmarshal([]byte(v), &keywords); err == nil {
			hit.Metadata.Keywords = keywords
		}
	}
	if v, ok := item["isCompleteSection"].(bool); ok {
		hit.Metadata.IsCompleteSection = v
	}
	if v, ok := item["isCompleteArticle"].(bool); ok {
		hit.Metadata.IsCompleteArticle = v
	}

	if additional, ok := item["_additional"].(map[string]interface{}); ok {
		if d, ok := additional["distance"].(float64); ok {
			hit.Distance = d
		}
	}

	return hit
}

// GetStats returns the number of objects in the class. A missing class is
// reported as a zero count rather than an error.
func (ic *IndexClient) GetStats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{ClassName: ic.config.ClassName}

	result, err := ic.client.GraphQL().Aggregate().
		WithClassName(ic.config.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil || len(result.Errors) > 0 {
		ic.logger.Warn("failed to aggregate index stats, collection may not exist yet", "error", err)
		return stats, nil
	}

	if data, ok := result.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := data[ic.config.ClassName].([]interface{}); ok && len(rows) > 0 {
			if row, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := row["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						stats.DocumentCount = int64(count)
					}
				}
			}
		}
	}

	return stats, nil
}

// DeleteCollection drops the whole class, used when rebuilding the index.
func (ic *IndexClient) DeleteCollection(ctx context.Context) error {
	err := ic.client.Schema().ClassDeleter().WithClassName(ic.config.ClassName).Do(ctx)
	if err != nil {
		return apperrors.WrapInternal(err, "failed to delete index class %s", ic.config.ClassName)
	}
	ic.logger.Info("index class deleted", "class", ic.config.ClassName)
	return nil
}
