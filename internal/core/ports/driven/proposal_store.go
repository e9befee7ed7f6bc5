package driven

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// ProposalStore persists proposals of every type.
// It enforces at most one PENDING proposal per (target archive, type).
type ProposalStore interface {
	// Create inserts a new PENDING proposal.
	// Returns ErrDuplicatePending if one already exists for the same archive and type.
	Create(ctx context.Context, proposal *domain.Proposal) error

	// Get retrieves a proposal by ID.
	// Returns ErrNotFound if the proposal does not exist.
	Get(ctx context.Context, id string) (*domain.Proposal, error)

	// List returns proposals matching the filter, newest first.
	List(ctx context.Context, filter domain.ProposalFilter) ([]*domain.Proposal, error)

	// HasPending reports whether a PENDING proposal exists for the archive and type.
	HasPending(ctx context.Context, archiveID string, proposalType domain.ProposalType) (bool, error)

	// Resolve moves a PENDING proposal to status and, when replacement is
	// non-nil, replaces the archive's nodes, all in one atomic unit.
	// If the proposal is no longer PENDING nothing changes and the current
	// proposal is returned with a StateError.
	Resolve(ctx context.Context, id string, status domain.ProposalStatus, replacement *domain.NodeReplacement) (*domain.Proposal, error)
}
