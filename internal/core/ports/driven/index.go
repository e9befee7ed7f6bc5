package driven

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// VectorIndex provides semantic similarity search operations.
type VectorIndex interface {
	// SearchNodes finds the k vector nodes nearest to the query vector.
	SearchNodes(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// SearchArchives finds the k nearest archives that have no vector nodes,
	// using their coarse embeddings.
	SearchArchives(ctx context.Context, query []float32, k int) ([]VectorHit, error)
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ID is the matched node or archive.
	ID string

	// Similarity is the cosine similarity score (-1 to 1).
	Similarity float64
}

// KeywordIndex provides full-text search over node content and the
// full text of archives that have no vector nodes.
type KeywordIndex interface {
	// Search performs a keyword search and returns matches with scores.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// SearchHit represents a keyword search result.
type SearchHit struct {
	// ID is the matched node or archive.
	ID string

	// Kind says whether ID is a node or an archive.
	Kind domain.CandidateKind

	// Score is the relevance score (e.g., BM25). Higher is better.
	Score float64
}
