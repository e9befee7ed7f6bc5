package driven

import "context"

// SemanticSplitter breaks text into meaning-preserving chunks.
// Output is best effort; callers validate it before use.
type SemanticSplitter interface {
	// Split returns the ordered chunks of text.
	Split(ctx context.Context, text string) ([]string, error)
}

// ContextEnricher rewrites a chunk so it reads without its parent document.
// Output is best effort; callers validate it before use.
type ContextEnricher interface {
	// Enrich resolves references in the chunk and weaves in parent metadata.
	Enrich(ctx context.Context, req EnrichRequest) (string, error)
}

// EnrichRequest is the input to a ContextEnricher.
type EnrichRequest struct {
	// Chunk is the text to rewrite.
	Chunk string

	// ParentMeta holds the parent archive's inheritable metadata.
	ParentMeta map[string]any

	// PrecedingContext is text that came just before the chunk, for resolving
	// pronouns. It must not be copied into the output.
	PrecedingContext string
}

// Reranker scores (query, candidate) pairs with a cross-encoder style model.
type Reranker interface {
	// Rerank returns one score per candidate, in input order. Higher is better.
	Rerank(ctx context.Context, query string, candidates []string) ([]float64, error)

	// ModelName returns the name of the rerank model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error
}

// Notifier delivers events to the surrounding system.
type Notifier interface {
	// Notify sends an event with its data. Delivery is best effort.
	Notify(ctx context.Context, event string, data map[string]any) error
}

// Notification event names.
const (
	EventProposalsReady = "proposals_ready"
	EventSweepDeferred  = "sweep_deferred"
)
