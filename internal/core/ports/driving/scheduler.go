package driving

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// Scheduler runs the refinement sweep and capability health checks in the
// background while review or serve is open.
type Scheduler interface {
	// Start blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop waits for in-flight tasks and then returns.
	Stop() error

	// History returns the newest limit runs of taskID.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
}
