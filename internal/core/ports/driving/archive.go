package driving

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// ArchiveService exposes archives and their nodes for inspection,
// plus the minimal hand-off used when an archive is ingested.
type ArchiveService interface {
	// Ingest stores new text as an archive and marks it COMPLETE once
	// its coarse embedding has been computed. Empty text marks it FAILED.
	Ingest(ctx context.Context, req IngestRequest) (*domain.Archive, error)

	// Get retrieves an archive by ID.
	Get(ctx context.Context, id string) (*domain.Archive, error)

	// List returns archives matching the filter.
	List(ctx context.Context, filter domain.ArchiveFilter) ([]*domain.Archive, error)

	// Nodes returns an archive's vector nodes in chunk_index order.
	Nodes(ctx context.Context, archiveID string) ([]*domain.VectorNode, error)

	// Node retrieves a single vector node.
	Node(ctx context.Context, id string) (*domain.VectorNode, error)

	// MarkStatus moves a PENDING archive to COMPLETE or FAILED exactly once.
	MarkStatus(ctx context.Context, id string, status domain.ArchiveStatus) error

	// Delete removes an archive with its nodes and proposals.
	Delete(ctx context.Context, id string) error
}

// IngestRequest is the input to ArchiveService.Ingest.
type IngestRequest struct {
	// FullText is the document text.
	FullText string

	// MetaData holds semantic attributes such as filename and semantic_date.
	MetaData map[string]any
}
