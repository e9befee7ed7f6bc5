package driving

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// RetrievalService answers queries with parent-scoped context blocks.
type RetrievalService interface {
	// Query runs hybrid retrieval. An empty result is not an error.
	Query(ctx context.Context, query domain.RetrievalQuery) (*domain.RetrievalResult, error)
}
