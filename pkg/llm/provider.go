package llm

import "context"

// Provider defines the interface for interacting with LLM backends.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing.
type Provider interface {
	// Complete sends a chat completion request and returns the full response.
	Complete(ctx context.Context, messages []Message) (*Response, error)

	// Stream sends a chat completion request and returns a channel of
	// incremental deltas. The channel is closed when the response ends or ctx
	// is cancelled.
	Stream(ctx context.Context, messages []Message) (<-chan Delta, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	// Provider selects the wire dialect: "openai" (default) or "azure".
	Provider    string
	BaseURL     string
	APIKey      string
	APIVersion  string
	Model       string
	MaxTokens   int
	Temperature float32
	// RequestsPerSecond throttles outgoing requests; zero means unlimited.
	RequestsPerSecond float64
}
