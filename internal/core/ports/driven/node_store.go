package driven

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// NodeStore provides read access to vector nodes.
// Nodes are written only through ProposalStore.Resolve so that
// materialising a proposal and flipping its status share one transaction.
type NodeStore interface {
	// Get retrieves a node by ID.
	// Returns ErrNotFound if the node does not exist.
	Get(ctx context.Context, id string) (*domain.VectorNode, error)

	// GetMany retrieves nodes by ID. Missing IDs are skipped.
	GetMany(ctx context.Context, ids []string) ([]*domain.VectorNode, error)

	// ListByArchive returns an archive's nodes in chunk_index order.
	ListByArchive(ctx context.Context, archiveID string) ([]*domain.VectorNode, error)

	// CountByArchive returns how many nodes an archive has.
	CountByArchive(ctx context.Context, archiveID string) (int, error)
}
