package llm

import "context"

// Client is the completion contract the suggestion generator depends on.
// Implementations own their transport, resilience, and credential handling.
type Client interface {
	// Complete sends the prompt and returns the raw model text.
	Complete(ctx context.Context, prompt string, opts Options) (string, error)

	// HealthCheck verifies the backend is usable. Called once at startup.
	HealthCheck(ctx context.Context) error
}
