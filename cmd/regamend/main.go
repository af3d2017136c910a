// Command regamend runs the regulatory amendment drafting service: it parses
// uploaded regulation diffs, indexes internal policy documents, matches
// amendments against the policy corpus, and drafts amendment suggestions.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/policyops/regamend/pkg/config"
	"github.com/policyops/regamend/pkg/docparser"
	"github.com/policyops/regamend/pkg/docstore"
	"github.com/policyops/regamend/pkg/llm"
	"github.com/policyops/regamend/pkg/logging"
	"github.com/policyops/regamend/pkg/pipeline"
	"github.com/policyops/regamend/pkg/rag"
	"github.com/policyops/regamend/pkg/server"
	"github.com/policyops/regamend/pkg/taskstore"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	enhanceQueries := flag.Bool("enhance-queries", false, "augment retrieval queries with key phrases and diff summaries")
	flag.Parse()

	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			slog.Error("failed to load config file", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	cfg.LoadFromEnv()

	logger := logging.Setup(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, *enhanceQueries, logger); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, enhanceQueries bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := docstore.NewStore(cfg.PolicyDir, cfg.SofficePaths)
	classifier := docparser.NewSegmentClassifier()
	parser := docparser.NewRegulationParser(classifier)
	chunker := docparser.NewPolicyChunker(docparser.ChunkerConfig{
		ChunkSize:             cfg.ChunkSize,
		ChunkOverlap:          cfg.ChunkOverlap,
		SmallSectionThreshold: cfg.SmallSectionThreshold,
	}, classifier)

	index, err := rag.NewIndexClient(&rag.IndexConfig{
		Host:         cfg.WeaviateHost,
		Scheme:       cfg.WeaviateScheme,
		APIKey:       cfg.WeaviateAPIKey,
		ClassName:    cfg.WeaviateClass,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		Timeout:      cfg.SearchTimeout,
	})
	if err != nil {
		return err
	}

	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := index.HealthCheck(startupCtx); err != nil {
		return err
	}
	if err := index.EnsureSchema(startupCtx); err != nil {
		return err
	}
	logger.Info("vector index ready", "host", cfg.WeaviateHost, "class", cfg.WeaviateClass)

	var cache *rag.SearchCache
	if cfg.RedisAddr != "" {
		cache = rag.NewSearchCache(cfg.RedisAddr, cfg.CacheTTL)
		if err := cache.HealthCheck(startupCtx); err != nil {
			logger.Warn("search cache unavailable, continuing without it", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			logger.Info("search cache ready", "addr", cfg.RedisAddr)
		}
	}

	restrictDocID := ""
	if cfg.RestrictEnabled {
		restrictDocID = cfg.RestrictDocID
	}
	retriever := rag.NewRetriever(index, cache, rag.RetrieverConfig{
		TopK:           cfg.TopK,
		PriorityDocID:  cfg.PriorityDocID,
		PriorityWeight: cfg.PriorityWeight,
		RestrictDocID:  restrictDocID,
	})

	assembler := rag.NewContextAssembler(store, rag.AssemblerConfig{OrderPolicy: cfg.OrderPolicy})

	llmClient, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		Model:           cfg.GeminiModel,
		Temperature:     float32(cfg.Temperature),
		MaxOutputTokens: int32(cfg.MaxOutputTokens),
		Timeout:         cfg.LLMTimeout,
	})
	if err != nil {
		return err
	}
	if err := llmClient.HealthCheck(startupCtx); err != nil {
		return err
	}
	logger.Info("model backend ready", "model", cfg.GeminiModel)

	generator := llm.NewSuggestionGenerator(llmClient, llm.GeneratorConfig{
		Mode:           cfg.GenerationMode,
		MaxContextDocs: cfg.MaxContextDocs,
	})

	tasks, err := taskstore.NewStore(cfg.TaskDir)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Deps{
		Store:     store,
		Parser:    parser,
		Chunker:   chunker,
		Index:     index,
		Retriever: retriever,
		Enhancer:  rag.NewQueryEnhancer(),
		Assembler: assembler,
		Generator: generator,
		Tasks:     tasks,
	}, pipeline.Config{
		IngestConcurrency: cfg.IngestConcurrency,
		EnhanceQueries:    enhanceQueries,
	})

	srv := server.New(cfg.ListenAddr, p, cfg.UploadDir)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
