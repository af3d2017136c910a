// Package monitoring exposes the pipeline's Prometheus metrics.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsIngested counts policy documents indexed, by outcome.
	DocumentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regamend_documents_ingested_total",
		Help: "Policy documents processed during ingestion, labeled by outcome.",
	}, []string{"outcome"})

	// ChunksIndexed counts policy chunks written to the vector index.
	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regamend_chunks_indexed_total",
		Help: "Policy chunks written to the vector index.",
	})

	// RegulationItemsParsed counts amendment items extracted from uploads.
	RegulationItemsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regamend_regulation_items_parsed_total",
		Help: "Amendment items extracted from regulation documents.",
	})

	// Searches counts retrieval requests, by outcome.
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regamend_searches_total",
		Help: "Vector retrieval requests, labeled by outcome.",
	}, []string{"outcome"})

	// BoostedResults counts hits whose ranking was adjusted by the priority
	// weight.
	BoostedResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regamend_boosted_results_total",
		Help: "Retrieval hits re-ranked by the priority document boost.",
	})

	// SuggestionsGenerated counts drafted suggestions, by outcome
	// (ok, recovered, degraded).
	SuggestionsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regamend_suggestions_generated_total",
		Help: "Drafted suggestions, labeled by parse outcome.",
	}, []string{"outcome"})

	// ParseAnomalies counts model responses needing recovery parsing.
	ParseAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regamend_parse_anomalies_total",
		Help: "Model responses that required recovery parsing.",
	})

	// SearchDuration observes retrieval latency.
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "regamend_search_duration_seconds",
		Help:    "Vector retrieval latency.",
		Buckets: prometheus.DefBuckets,
	})

	// GenerationDuration observes model completion latency.
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "regamend_generation_duration_seconds",
		Help:    "Model completion latency per suggestion.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	// IngestDuration observes per-document ingestion latency.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "regamend_ingest_duration_seconds",
		Help:    "Per-document ingestion latency.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
	})
)
