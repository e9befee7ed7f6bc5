package driven

import (
	"context"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// SchedulerStore keeps scheduled task state and a bounded run history so
// serve can pick up where it left off after a restart.
type SchedulerStore interface {
	// GetTask returns nil, nil for an unknown task.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns every stored task ordered by ID.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask upserts by ID.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// DeleteTask drops a task that is no longer scheduled. Its history goes too.
	DeleteTask(ctx context.Context, taskID string) error

	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// GetTaskHistory returns at most limit results, newest first.
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory trims each task's history to its newest keep results.
	PruneHistory(ctx context.Context, keep int) error
}
