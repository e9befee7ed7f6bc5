package driven

import "context"

// LLMService completes prompts for semantic splitting and context
// enrichment. When it is nil the gardener splits on fixed windows and
// enriches chunks with a metadata prefix.
type LLMService interface {
	// Generate returns the completion text. Transport failures and 5xx
	// answers wrap ErrCapabilityUnavailable so a sweep can defer the archive.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	ModelName() string

	// Ping checks the provider is reachable without spending tokens where
	// the API allows it.
	Ping(ctx context.Context) error

	Close() error
}

// GenerateOptions tunes one completion. Zero values leave the provider default.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	StopWords   []string

	// JSON requests a JSON-only response on providers that support a
	// response format. Callers still parse defensively.
	JSON bool
}
