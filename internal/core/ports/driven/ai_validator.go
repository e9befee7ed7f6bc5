package driven

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// AIConfigValidator checks provider settings against the live provider
// before they are relied on. Settings that select no provider are valid.
type AIConfigValidator interface {
	ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error
	ValidateLLM(ctx context.Context, settings *domain.LLMSettings) error
	ValidateRerank(ctx context.Context, settings *domain.RerankSettings) error
}
