package driving

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// ProposalService is the human-in-the-loop gate over index mutations.
type ProposalService interface {
	// Create validates and stores a new PENDING proposal.
	Create(ctx context.Context, proposal *domain.Proposal) error

	// Get retrieves a proposal by ID.
	Get(ctx context.Context, id string) (*domain.Proposal, error)

	// List returns proposals matching the filter.
	List(ctx context.Context, filter domain.ProposalFilter) ([]*domain.Proposal, error)

	// Approve applies a PENDING proposal and marks it APPROVED atomically.
	// Approving an APPROVED proposal is a no-op.
	Approve(ctx context.Context, id string) (*domain.Proposal, error)

	// Reject marks a PENDING proposal REJECTED without touching nodes.
	// Rejecting a REJECTED proposal is a no-op.
	Reject(ctx context.Context, id string) (*domain.Proposal, error)
}
