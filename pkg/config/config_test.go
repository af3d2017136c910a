package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"overlap >= chunk size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"zero top k", func(c *Config) { c.TopK = 0 }},
		{"weight above one", func(c *Config) { c.PriorityWeight = 1.5 }},
		{"weight zero", func(c *Config) { c.PriorityWeight = 0 }},
		{"restrict without doc id", func(c *Config) { c.RestrictEnabled = true; c.RestrictDocID = "" }},
		{"unknown order policy", func(c *Config) { c.OrderPolicy = "alphabetical" }},
		{"unknown generation mode", func(c *Config) { c.GenerationMode = "bulk" }},
		{"missing weaviate host", func(c *Config) { c.WeaviateHost = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromEnvOverlays(t *testing.T) {
	t.Setenv("TOP_K", "8")
	t.Setenv("PRIORITY_DOC_ID", "ISP-001-01")
	t.Setenv("PRIORITY_WEIGHT", "0.85")
	t.Setenv("RESTRICT_ENABLED", "true")
	t.Setenv("RESTRICT_DOC_ID", "ISP-001-01")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-flash")
	t.Setenv("LLM_TIMEOUT", "5m")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, 8, cfg.TopK)
	assert.Equal(t, "ISP-001-01", cfg.PriorityDocID)
	assert.Equal(t, 0.85, cfg.PriorityWeight)
	assert.True(t, cfg.RestrictEnabled)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, "5m0s", cfg.LLMTimeout.String())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TOP_K", "not-a-number")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	assert.Equal(t, 5, cfg.TopK)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
top_k: 10
priority_doc_id: ISP-002-01
priority_weight: 0.9
order_policy: primary-first
`), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 10, cfg.TopK)
	assert.Equal(t, "ISP-002-01", cfg.PriorityDocID)
	assert.Equal(t, 0.9, cfg.PriorityWeight)
	assert.Equal(t, OrderPrimaryFirst, cfg.OrderPolicy)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1000, cfg.ChunkSize)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")))
}
