package driving

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// RefinementService runs the gardener that turns unrefined archives into
// split proposals.
type RefinementService interface {
	// Sweep scans unrefined archives and creates at most one split
	// proposal per archive. Returns ErrCapabilityUnavailable, with a
	// partial report, when the sweep had to be deferred.
	Sweep(ctx context.Context) (*domain.SweepReport, error)

	// RefineArchive produces a split proposal for a single archive.
	RefineArchive(ctx context.Context, archiveID string) (*domain.Proposal, error)
}
