package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memex/internal/core/domain"
)

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	now := time.Now().UTC().Truncate(time.Second)
	task := &domain.ScheduledTask{
		ID:                  domain.TaskIDRefinementSweep,
		Name:                "Refinement Sweep",
		Interval:            24 * time.Hour,
		LastRun:             now.Add(-30 * time.Minute),
		NextRun:             now.Add(2 * time.Minute),
		LastError:           "capability unavailable",
		ConsecutiveFailures: 2,
		Enabled:             true,
	}

	require.NoError(t, schedulerStore.SaveTask(ctx, task))

	retrieved, err := schedulerStore.GetTask(ctx, domain.TaskIDRefinementSweep)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, task.Name, retrieved.Name)
	assert.Equal(t, task.Interval, retrieved.Interval)
	assert.Equal(t, task.LastError, retrieved.LastError)
	assert.Equal(t, 2, retrieved.ConsecutiveFailures)
	assert.True(t, retrieved.Enabled)
	assert.WithinDuration(t, task.LastRun, retrieved.LastRun, time.Second)
	assert.WithinDuration(t, task.NextRun, retrieved.NextRun, time.Second)
	assert.True(t, retrieved.LastSuccess.IsZero())
}

func TestSchedulerStore_GetTask_NotFound(t *testing.T) {
	store := setupTestStore(t)

	task, err := store.SchedulerStore().GetTask(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestSchedulerStore_SaveTask_NilTask(t *testing.T) {
	store := setupTestStore(t)

	err := store.SchedulerStore().SaveTask(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchedulerStore_ListAndDeleteTasks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	for _, id := range []string{domain.TaskIDRefinementSweep, domain.TaskIDCapabilityHealth} {
		require.NoError(t, schedulerStore.SaveTask(ctx, &domain.ScheduledTask{
			ID: id, Name: id, Interval: time.Hour, Enabled: true,
		}))
	}

	tasks, err := schedulerStore.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	require.NoError(t, schedulerStore.RecordResult(ctx, &domain.TaskResult{
		TaskID: domain.TaskIDCapabilityHealth, StartedAt: time.Now(), EndedAt: time.Now(), Success: true,
	}))

	require.NoError(t, schedulerStore.DeleteTask(ctx, domain.TaskIDCapabilityHealth))
	tasks, err = schedulerStore.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskIDRefinementSweep, tasks[0].ID)

	history, err := schedulerStore.GetTaskHistory(ctx, domain.TaskIDCapabilityHealth, 10)
	require.NoError(t, err)
	assert.Empty(t, history, "history is deleted with the task")
}

func TestSchedulerStore_HistoryAndPrune(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		require.NoError(t, schedulerStore.RecordResult(ctx, &domain.TaskResult{
			TaskID:    domain.TaskIDRefinementSweep,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			EndedAt:   base.Add(time.Duration(i)*time.Minute + time.Second),
			Success:   i%2 == 0,
			Error:     fmt.Sprintf("run %d", i),
			Count:     i,
			Deferred:  i == 4,
		}))
	}

	history, err := schedulerStore.GetTaskHistory(ctx, domain.TaskIDRefinementSweep, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 4, history[0].Count, "most recent first")
	assert.True(t, history[0].Success)
	assert.True(t, history[0].Deferred)
	assert.False(t, history[1].Deferred)
	assert.Equal(t, time.Second, history[0].Duration())

	require.NoError(t, schedulerStore.PruneHistory(ctx, 2))
	history, err = schedulerStore.GetTaskHistory(ctx, domain.TaskIDRefinementSweep, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	assert.ErrorIs(t, schedulerStore.RecordResult(ctx, nil), domain.ErrInvalidInput)
}

func TestFormatNullableTime(t *testing.T) {
	assert.Nil(t, formatNullableTime(time.Time{}))
	assert.NotNil(t, formatNullableTime(time.Now()))
}

func TestBoolToInt(t *testing.T) {
	assert.Equal(t, 1, boolToInt(true))
	assert.Equal(t, 0, boolToInt(false))
}

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	assert.Equal(t, "test", nullString("test"))
}
