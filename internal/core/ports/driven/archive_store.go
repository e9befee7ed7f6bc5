package driven

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// ArchiveStore persists parent documents.
// It exclusively owns archive rows; full text is immutable once COMPLETE.
type ArchiveStore interface {
	// Save creates an archive or updates its metadata.
	// Returns ErrInvalidState if the update would change FullText of a COMPLETE archive.
	Save(ctx context.Context, archive *domain.Archive) error

	// Get retrieves an archive by ID.
	// Returns ErrNotFound if the archive does not exist.
	Get(ctx context.Context, id string) (*domain.Archive, error)

	// GetMany retrieves archives by ID. Missing IDs are skipped.
	GetMany(ctx context.Context, ids []string) ([]*domain.Archive, error)

	// List returns archives matching the filter, newest first.
	List(ctx context.Context, filter domain.ArchiveFilter) ([]*domain.Archive, error)

	// SetStatus moves an archive out of PENDING.
	// Returns a StateError if the archive is already terminal.
	SetStatus(ctx context.Context, id string, status domain.ArchiveStatus) error

	// SetEmbedding stores the coarse embedding of an archive.
	SetEmbedding(ctx context.Context, id string, embedding []float32) error

	// ListUnrefined returns COMPLETE archives that have no vector nodes and
	// no PENDING split proposal, oldest first. A limit of zero returns all
	// of them.
	ListUnrefined(ctx context.Context, limit int) ([]*domain.Archive, error)

	// Delete removes an archive together with its nodes and proposals.
	// Only explicit user deletion calls this; refinement never does.
	Delete(ctx context.Context, id string) error
}
