// Package config holds all configuration for the regamend service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/policyops/regamend/pkg/logging"
)

// Config holds all configuration for the drafting pipeline and its
// collaborators. Values are resolved from defaults, then an optional YAML
// file, then environment variables.
type Config struct {
	// HTTP facade
	ListenAddr string `yaml:"listen_addr"`

	// Storage locations
	TaskDir      string   `yaml:"task_dir"`      // per-task JSON artifacts
	PolicyDir    string   `yaml:"policy_dir"`    // internal policy documents
	UploadDir    string   `yaml:"upload_dir"`    // uploaded regulation documents
	SofficePaths []string `yaml:"soffice_paths"` // LibreOffice candidates for .doc conversion

	// Chunking
	ChunkSize             int `yaml:"chunk_size"`              // max chunk size in runes
	ChunkOverlap          int `yaml:"chunk_overlap"`           // overlap for forced paragraph splits
	SmallSectionThreshold int `yaml:"small_section_threshold"` // whole-section chunk bound

	// Retrieval
	TopK            int     `yaml:"top_k"`
	PriorityDocID   string  `yaml:"priority_doc_id"` // document favored by boosting
	PriorityWeight  float64 `yaml:"priority_weight"`  // distance multiplier in (0,1]
	RestrictEnabled bool    `yaml:"restrict_enabled"` // restrict-to-one-document mode
	RestrictDocID   string  `yaml:"restrict_doc_id"`
	OrderPolicy     string  `yaml:"order_policy"` // "relevance" or "primary-first"

	// Weaviate
	WeaviateHost   string        `yaml:"weaviate_host"`
	WeaviateScheme string        `yaml:"weaviate_scheme"`
	WeaviateAPIKey string        `yaml:"weaviate_api_key"`
	WeaviateClass  string        `yaml:"weaviate_class"`
	OpenAIAPIKey   string        `yaml:"openai_api_key"` // vectorizer module key
	SearchTimeout  time.Duration `yaml:"search_timeout"`

	// Redis retrieval cache (optional; empty addr disables)
	RedisAddr string        `yaml:"redis_addr"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	// LLM
	GeminiModel     string        `yaml:"gemini_model"`
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	LLMTimeout      time.Duration `yaml:"llm_timeout"`
	GenerationMode  string        `yaml:"generation_mode"` // "per-document" or "top-document"
	MaxContextDocs  int           `yaml:"max_context_docs"`

	// Ingestion
	IngestConcurrency int `yaml:"ingest_concurrency"`

	Logging logging.Config `yaml:"logging"`
}

// Ordering policies for the context assembler.
const (
	OrderRelevance    = "relevance"
	OrderPrimaryFirst = "primary-first"
)

// Generation modes for the suggestion stage.
const (
	ModePerDocument = "per-document"
	ModeTopDocument = "top-document"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8080",

		TaskDir:   "./data/tasks",
		PolicyDir: "./data/policies",
		UploadDir: "./data/uploads",
		SofficePaths: []string{
			"/usr/bin/soffice",
			"/usr/local/bin/soffice",
			"/Applications/LibreOffice.app/Contents/MacOS/soffice",
		},

		ChunkSize:             1000,
		ChunkOverlap:          200,
		SmallSectionThreshold: 800,

		TopK:           5,
		PriorityWeight: 1.0,
		OrderPolicy:    OrderRelevance,

		WeaviateScheme: "http",
		WeaviateHost:   "localhost:8080",
		WeaviateClass:  "PolicyChunk",
		SearchTimeout:  2 * time.Minute,

		CacheTTL: 10 * time.Minute,

		GeminiModel:     "gemini-2.5-pro",
		Temperature:     0.3,
		MaxOutputTokens: 8192,
		LLMTimeout:      15 * time.Minute,
		GenerationMode:  ModePerDocument,
		MaxContextDocs:  3,

		IngestConcurrency: 4,

		Logging: logging.Config{
			Level:       "info",
			Format:      "json",
			ServiceName: "regamend",
		},
	}
}

// LoadFromFile overlays values from a YAML file onto the config.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadFromEnv overlays values from environment variables onto the config.
func (c *Config) LoadFromEnv() {
	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.TaskDir, "TASK_DIR")
	setString(&c.PolicyDir, "POLICY_DIR")
	setString(&c.UploadDir, "UPLOAD_DIR")

	setInt(&c.ChunkSize, "CHUNK_SIZE")
	setInt(&c.ChunkOverlap, "CHUNK_OVERLAP")
	setInt(&c.SmallSectionThreshold, "SMALL_SECTION_THRESHOLD")

	setInt(&c.TopK, "TOP_K")
	setString(&c.PriorityDocID, "PRIORITY_DOC_ID")
	setFloat(&c.PriorityWeight, "PRIORITY_WEIGHT")
	setBool(&c.RestrictEnabled, "RESTRICT_ENABLED")
	setString(&c.RestrictDocID, "RESTRICT_DOC_ID")
	setString(&c.OrderPolicy, "ORDER_POLICY")

	setString(&c.WeaviateHost, "WEAVIATE_HOST")
	setString(&c.WeaviateScheme, "WEAVIATE_SCHEME")
	setString(&c.WeaviateAPIKey, "WEAVIATE_API_KEY")
	setString(&c.WeaviateClass, "WEAVIATE_CLASS")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setDuration(&c.SearchTimeout, "SEARCH_TIMEOUT")

	setString(&c.RedisAddr, "REDIS_ADDR")
	setDuration(&c.CacheTTL, "CACHE_TTL")

	setString(&c.GeminiModel, "GEMINI_MODEL")
	setFloat(&c.Temperature, "TEMPERATURE")
	setInt(&c.MaxOutputTokens, "MAX_OUTPUT_TOKENS")
	setDuration(&c.LLMTimeout, "LLM_TIMEOUT")
	setString(&c.GenerationMode, "GENERATION_MODE")
	setInt(&c.MaxContextDocs, "MAX_CONTEXT_DOCS")

	setInt(&c.IngestConcurrency, "INGEST_CONCURRENCY")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
}

// Validate checks configuration invariants before any client is constructed.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.PriorityWeight <= 0 || c.PriorityWeight > 1 {
		return fmt.Errorf("priority_weight must be in (0,1], got %f", c.PriorityWeight)
	}
	if c.RestrictEnabled && c.RestrictDocID == "" {
		return fmt.Errorf("restrict_doc_id is required when restrict mode is enabled")
	}
	switch c.OrderPolicy {
	case OrderRelevance, OrderPrimaryFirst:
	default:
		return fmt.Errorf("unknown order_policy %q", c.OrderPolicy)
	}
	switch c.GenerationMode {
	case ModePerDocument, ModeTopDocument:
	default:
		return fmt.Errorf("unknown generation_mode %q", c.GenerationMode)
	}
	if c.WeaviateHost == "" {
		return fmt.Errorf("weaviate_host is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
