package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	genai "google.golang.org/genai"

	apperrors "github.com/policyops/regamend/pkg/errors"
)

// GeminiConfig holds configuration for the Gemini completion client.
type GeminiConfig struct {
	APIKey          string        `json:"api_key"`
	Model           string        `json:"model"`
	Temperature     float32       `json:"temperature"`
	MaxOutputTokens int32         `json:"max_output_tokens"`
	Timeout         time.Duration `json:"timeout"`
}

// DefaultGeminiConfig returns the default generation parameters.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Model:           "gemini-2.5-pro",
		Temperature:     0.3,
		MaxOutputTokens: 8192,
		Timeout:         15 * time.Minute,
	}
}

// GeminiClient implements Client on the official genai SDK. A circuit breaker
// guards the upstream so a flapping model API fails fast instead of tying up
// pipeline workers.
type GeminiClient struct {
	cli     *genai.Client
	config  GeminiConfig
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewGeminiClient creates a Gemini client. An empty API key lets the SDK read
// its own environment credentials.
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	defaults := DefaultGeminiConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Temperature <= 0 {
		config.Temperature = defaults.Temperature
	}
	if config.MaxOutputTokens <= 0 {
		config.MaxOutputTokens = defaults.MaxOutputTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &GeminiClient{
		cli:     cli,
		config:  config,
		breaker: breaker,
		logger:  slog.Default().With("component", "gemini-client"),
	}, nil
}

// Complete sends the prompt and returns the model's text. Per-request options
// override the configured defaults without mutating them.
func (g *GeminiClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	temperature := g.config.Temperature
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}
	maxTokens := g.config.MaxOutputTokens
	if opts.MaxOutputTokens > 0 {
		maxTokens = opts.MaxOutputTokens
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	start := time.Now()
	result, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.cli.Models.GenerateContent(ctx, g.config.Model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
			&genai.GenerateContentConfig{
				Temperature:     genai.Ptr(temperature),
				MaxOutputTokens: maxTokens,
			},
		)
		if err != nil {
			return nil, err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return nil, fmt.Errorf("model returned no candidates")
		}
		return resp.Candidates[0].Content.Parts[0].Text, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			g.logger.Warn("model circuit breaker open, failing fast")
			return "", apperrors.WrapInternal(err, "model backend unavailable")
		}
		g.logger.Error("completion failed", "model", g.config.Model, "error", err)
		return "", apperrors.WrapInternal(err, "model completion failed")
	}

	text := result.(string)
	g.logger.Info("completion succeeded",
		"model", g.config.Model, "duration", time.Since(start), "response_chars", len(text))
	return text, nil
}

// HealthCheck sends a minimal completion to verify credentials and
// connectivity.
func (g *GeminiClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := g.cli.Models.GenerateContent(ctx, g.config.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: "Reply with OK."}}}},
		&genai.GenerateContentConfig{MaxOutputTokens: 8},
	)
	if err != nil {
		return apperrors.WrapInternal(err, "model health check failed")
	}
	return nil
}
