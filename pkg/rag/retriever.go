package rag

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/policyops/regamend/pkg/errors"
)

// restrictOverfetchFactor widens the index query when restrict mode is on so
// that client-side filtering still has enough candidates to fill topK.
const restrictOverfetchFactor = 3

// RetrieverConfig holds retrieval parameters.
type RetrieverConfig struct {
	TopK           int     `json:"top_k"`
	PriorityDocID  string  `json:"priority_doc_id"`
	PriorityWeight float64 `json:"priority_weight"` // (0,1]; 1.0 disables boosting
	RestrictDocID  string  `json:"restrict_doc_id"` // default restrict target when set
}

// DefaultRetrieverConfig returns retrieval defaults.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		TopK:           5,
		PriorityWeight: 1.0,
	}
}

// Retriever runs vector searches and applies the deterministic post-retrieval
// transforms: priority boosting and single-document restriction. It is safe
// for concurrent use.
type Retriever struct {
	index  VectorIndex
	cache  *SearchCache // optional
	config RetrieverConfig
	logger *slog.Logger
	mutex  sync.RWMutex
}

// NewRetriever creates a retriever over the given index. cache may be nil.
func NewRetriever(index VectorIndex, cache *SearchCache, config RetrieverConfig) *Retriever {
	if config.TopK <= 0 {
		config.TopK = DefaultRetrieverConfig().TopK
	}
	if config.PriorityWeight <= 0 || config.PriorityWeight > 1 {
		config.PriorityWeight = 1.0
	}
	return &Retriever{
		index:  index,
		cache:  cache,
		config: config,
		logger: slog.Default().With("component", "retriever"),
	}
}

// SetPriority updates the boost target and weight at runtime.
func (r *Retriever) SetPriority(docID string, weight float64) error {
	if docID != "" && (weight <= 0 || weight > 1) {
		return apperrors.NewValidation("priority weight must be in (0, 1], got %v", weight)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.config.PriorityDocID = docID
	r.config.PriorityWeight = weight
	return nil
}

// Search retrieves up to topK chunks for the query. A non-empty restrictDocID
// limits results to one logical document; an empty one falls back to the
// configured default restriction, if any. topK <= 0 uses the configured
// default.
func (r *Retriever) Search(ctx context.Context, query string, topK int, restrictDocID string) ([]RetrievedContext, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewValidation("search query cannot be empty")
	}

	r.mutex.RLock()
	config := r.config
	r.mutex.RUnlock()

	if topK <= 0 {
		topK = config.TopK
	}
	if restrictDocID == "" {
		restrictDocID = config.RestrictDocID
	}

	// Restrict mode over-fetches so that post-filter truncation can still
	// return a full page.
	fetchK := topK
	if restrictDocID != "" {
		fetchK = topK * restrictOverfetchFactor
	}

	hits, err := r.fetch(ctx, query, fetchK, restrictDocID)
	if err != nil {
		return nil, err
	}

	if restrictDocID != "" {
		hits = filterByDocument(hits, restrictDocID)
	}

	hits = r.boost(hits, config.PriorityDocID, config.PriorityWeight)

	if len(hits) > topK {
		hits = hits[:topK]
	}

	r.logger.Info("retrieval completed",
		"results", len(hits), "restrict", restrictDocID, "priority", config.PriorityDocID)
	return hits, nil
}

// fetch runs the raw index search, consulting the cache first.
func (r *Retriever) fetch(ctx context.Context, query string, fetchK int, restrictDocID string) ([]RetrievedContext, error) {
	if r.cache == nil {
		return r.index.Search(ctx, query, fetchK)
	}

	key := r.cache.Key(query, fetchK, restrictDocID)
	if hits, ok := r.cache.Get(ctx, key); ok {
		r.logger.Debug("search cache hit", "key", key)
		return hits, nil
	}

	hits, err := r.index.Search(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}
	r.cache.Put(ctx, key, hits)
	return hits, nil
}

// boost multiplies the distance of priority-document hits by the weight and
// re-sorts ascending. A weight of 1.0 or an empty target is a no-op. The
// original distance is preserved on every adjusted hit.
func (r *Retriever) boost(hits []RetrievedContext, priorityDocID string, weight float64) []RetrievedContext {
	if priorityDocID == "" || weight >= 1.0 {
		return hits
	}

	boosted := 0
	for i := range hits {
		if hits[i].Metadata.DocID != priorityDocID {
			continue
		}
		hits[i].OriginalDistance = hits[i].Distance
		hits[i].Distance *= weight
		hits[i].IsBoosted = true
		boosted++
	}

	if boosted > 0 {
		sort.SliceStable(hits, func(i, j int) bool {
			return hits[i].Distance < hits[j].Distance
		})
		r.logger.Debug("applied priority boost", "doc_id", priorityDocID, "weight", weight, "boosted", boosted)
	}
	return hits
}

// filterByDocument keeps hits belonging to one logical document: an exact
// doc-id match, a sub-document id sharing the prefix, or a document whose
// name carries the id. Hits remain in their incoming order.
func filterByDocument(hits []RetrievedContext, docID string) []RetrievedContext {
	filtered := hits[:0]
	for _, hit := range hits {
		if hit.Metadata.DocID == docID ||
			strings.HasPrefix(hit.Metadata.DocID, docID+"-") ||
			strings.Contains(hit.Metadata.DocName, docID) {
			filtered = append(filtered, hit)
		}
	}
	return filtered
}
