package driven

import "context"

// EmbeddingService turns text into vectors for dense search and for the
// archive-level vector that drives dedup.
//
// It is optional. Without it the retrieval service falls back to keyword
// search, and approving a proposal fails with ErrCapabilityUnavailable
// because new nodes cannot be embedded.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order. Adapters
	// without a batch endpoint loop over Embed.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector length. Every node in the store shares it.
	Dimensions() int

	ModelName() string

	// Ping makes the cheapest request the provider supports. Errors wrap
	// ErrCapabilityUnavailable when the provider cannot be reached.
	Ping(ctx context.Context) error

	Close() error
}
