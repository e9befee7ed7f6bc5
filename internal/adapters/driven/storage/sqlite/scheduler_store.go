package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
)

type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const taskColumns = `id, name, interval_seconds, enabled, last_run, next_run, last_success,
	last_error, consecutive_failures`

const resultColumns = `task_id, started_at, ended_at, success, error, produced, deferred`

func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM scheduled_tasks WHERE id = ?", taskID)

	task, err := scanScheduledTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM scheduled_tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying scheduled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanScheduledTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scheduled tasks: %w", err)
	}
	return tasks, nil
}

func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_seconds = excluded.interval_seconds,
			enabled = excluded.enabled,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_success = excluded.last_success,
			last_error = excluded.last_error,
			consecutive_failures = excluded.consecutive_failures
	`,
		task.ID,
		task.Name,
		int64(task.Interval/time.Second),
		boolToInt(task.Enabled),
		formatNullableTime(task.LastRun),
		formatNullableTime(task.NextRun),
		formatNullableTime(task.LastSuccess),
		nullString(task.LastError),
		task.ConsecutiveFailures,
	)
	if err != nil {
		return fmt.Errorf("saving scheduled task %s: %w", task.ID, err)
	}
	return nil
}

// DeleteTask removes the task and its run history together.
func (s *schedulerStore) DeleteTask(ctx context.Context, taskID string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM task_results WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("deleting task history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM scheduled_tasks WHERE id = ?", taskID); err != nil {
		return fmt.Errorf("deleting scheduled task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *schedulerStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil || result.TaskID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO task_results ("+resultColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		result.TaskID,
		formatTime(result.StartedAt),
		formatTime(result.EndedAt),
		boolToInt(result.Success),
		nullString(result.Error),
		result.Count,
		boolToInt(result.Deferred),
	)
	if err != nil {
		return fmt.Errorf("recording %s result: %w", result.TaskID, err)
	}
	return nil
}

func (s *schedulerStore) GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+resultColumns+`
		FROM task_results
		WHERE task_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying task history: %w", err)
	}
	defer rows.Close()

	var results []domain.TaskResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			r                  domain.TaskResult
			startedAt, endedAt string
			success, deferred  int
			errMsg             sql.NullString
		)
		if err := rows.Scan(&r.TaskID, &startedAt, &endedAt, &success, &errMsg, &r.Count, &deferred); err != nil {
			return nil, fmt.Errorf("scanning task result: %w", err)
		}
		r.StartedAt = parseTime(startedAt)
		r.EndedAt = parseTime(endedAt)
		r.Success = success == 1
		r.Error = errMsg.String
		r.Deferred = deferred == 1
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task history: %w", err)
	}
	return results, nil
}

// PruneHistory ranks each task's results newest first and drops everything
// past keep.
func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM task_results
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY task_id ORDER BY started_at DESC, id DESC
				) AS pos
				FROM task_results
			) WHERE pos > ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning task history: %w", err)
	}
	return nil
}

// scanScheduledTask scans one task. sql.ErrNoRows is returned unwrapped.
func scanScheduledTask(row rowScanner) (*domain.ScheduledTask, error) {
	var (
		task                          domain.ScheduledTask
		intervalSeconds               int64
		enabled                       int
		lastRun, nextRun, lastSuccess sql.NullString
		lastError                     sql.NullString
	)
	err := row.Scan(&task.ID, &task.Name, &intervalSeconds, &enabled,
		&lastRun, &nextRun, &lastSuccess, &lastError, &task.ConsecutiveFailures)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning scheduled task: %w", err)
	}

	task.Interval = time.Duration(intervalSeconds) * time.Second
	task.Enabled = enabled == 1
	task.LastRun = parseNullableTime(lastRun)
	task.NextRun = parseNullableTime(nextRun)
	task.LastSuccess = parseNullableTime(lastSuccess)
	task.LastError = lastError.String
	return &task, nil
}
