package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/core/ports/driving"
	"github.com/custodia-labs/memex/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

// historyRetention is the number of results kept per task.
const historyRetention = 100

// Scheduler polls the task store once a tick and runs whatever is due.
// Each task runs at most once at a time; a slow sweep is skipped, not queued.
type Scheduler struct {
	config       domain.SchedulerConfig
	store        driven.SchedulerStore
	refinement   driving.RefinementService
	capabilities driving.CapabilityService
	tick         time.Duration
	now          func() time.Time

	mu      sync.Mutex
	running bool
	active  map[string]bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. refinement and capabilities may be nil,
// in which case their tasks succeed without doing anything.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	refinement driving.RefinementService,
	capabilities driving.CapabilityService,
) *Scheduler {
	return &Scheduler{
		config:       config,
		store:        store,
		refinement:   refinement,
		capabilities: capabilities,
		tick:         time.Minute,
		now:          time.Now,
		active:       make(map[string]bool),
	}
}

// Start syncs the stored tasks with the configuration and then loops until
// ctx is cancelled or Stop is called. A second Start returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if !s.config.Enabled {
		logger.Info("Scheduler disabled by configuration")
	}

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop ends the loop and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// History returns the newest limit results for taskID.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		limit = historyRetention
	}
	return s.store.GetTaskHistory(ctx, taskID, limit)
}

// initialiseTasks saves every built-in task with its configured interval and
// deletes the ones whose interval is zero.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	ids := make([]string, 0, len(domain.BuiltinTasks))
	for id := range domain.BuiltinTasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		cfg := s.config.Task(id)
		if cfg.Interval <= 0 {
			if err := s.store.DeleteTask(ctx, id); err != nil {
				return err
			}
			continue
		}
		if err := s.ensureTask(ctx, id, domain.BuiltinTasks[id], cfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates the task or applies a changed interval. Run state is
// kept so a restart does not reset backoff.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case task == nil:
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			NextRun:  s.now().Add(cfg.Interval),
		}
	case task.Interval != cfg.Interval:
		task.Interval = cfg.Interval
		task.NextRun = s.now().Add(cfg.Interval)
	}
	task.Enabled = cfg.Enabled

	return s.store.SaveTask(ctx, task)
}

func (s *Scheduler) run(ctx context.Context) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		if tasks[i].Due(now) {
			s.runTask(ctx, &tasks[i])
		}
	}
}

// runTask starts task in its own goroutine unless it is already running.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	if s.active[task.ID] {
		s.mu.Unlock()
		logger.Debug("scheduler: %s still running, skipping", task.ID)
		return
	}
	s.active[task.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, task.ID)
			s.mu.Unlock()
		}()

		result := &domain.TaskResult{TaskID: task.ID, StartedAt: s.now()}

		var err error
		switch task.ID {
		case domain.TaskIDRefinementSweep:
			err = s.runRefinementSweep(ctx, result)
		case domain.TaskIDCapabilityHealth:
			err = s.runCapabilityHealth(ctx, result)
		default:
			logger.Warn("scheduler: unknown task ID: %s", task.ID)
			return
		}
		result.EndedAt = s.now()

		if err != nil {
			result.Error = err.Error()
			task.Failed(result.StartedAt, result.EndedAt, err, s.retryDelay(task, err))
			logger.Warn("scheduler: %s failed (%d in a row), next run %s: %v",
				task.ID, task.ConsecutiveFailures, task.NextRun.Format(time.RFC3339), err)
		} else {
			result.Success = true
			task.Succeeded(result.StartedAt, result.EndedAt)
			logger.Info("scheduler: %s done in %s (%d)", task.ID, result.Duration(), result.Count)
		}

		if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}
		if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
			logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}
		if pruneErr := s.store.PruneHistory(ctx, historyRetention); pruneErr != nil {
			logger.Warn("scheduler: failed to prune history: %v", pruneErr)
		}
	}()
}

// retryDelay backs off exponentially when a capability was unavailable
// and waits a full interval for any other failure.
func (s *Scheduler) retryDelay(task *domain.ScheduledTask, err error) time.Duration {
	if errors.Is(err, domain.ErrCapabilityUnavailable) {
		// Failed has not incremented yet.
		return domain.RetryBackoff(task.ConsecutiveFailures+1, task.Interval)
	}
	return task.Interval
}

func (s *Scheduler) runRefinementSweep(ctx context.Context, result *domain.TaskResult) error {
	if s.refinement == nil {
		return nil
	}
	report, err := s.refinement.Sweep(ctx)
	if report != nil {
		result.Count = report.Proposed
		result.Deferred = report.Deferred > 0
	}
	return err
}

// runCapabilityHealth refreshes the registry and counts healthy capabilities.
func (s *Scheduler) runCapabilityHealth(ctx context.Context, result *domain.TaskResult) error {
	if s.capabilities == nil {
		return nil
	}
	for _, st := range s.capabilities.Refresh(ctx) {
		if st.Available() {
			result.Count++
		}
	}
	return nil
}
