package driving

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// CapabilityService reports and refreshes the health of external capabilities.
type CapabilityService interface {
	// Refresh pings every configured capability and records the outcome.
	Refresh(ctx context.Context) []domain.CapabilityStatus

	// Snapshot returns the last known status of every capability.
	Snapshot() []domain.CapabilityStatus
}
