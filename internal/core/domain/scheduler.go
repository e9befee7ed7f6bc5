package domain

import "time"

// Built-in background tasks.
const (
	// TaskIDRefinementSweep runs the gardener over every archive.
	TaskIDRefinementSweep = "refinement-sweep"
	// TaskIDCapabilityHealth pings the model providers and updates the registry.
	TaskIDCapabilityHealth = "capability-health"
)

// BuiltinTasks maps each task the scheduler knows how to run to its display name.
var BuiltinTasks = map[string]string{
	TaskIDRefinementSweep:  "Refinement Sweep",
	TaskIDCapabilityHealth: "Capability Health",
}

// ScheduledTask is the persisted state of a recurring task. It survives
// restarts so a nightly sweep is not repeated just because serve restarted.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time
	LastError   string

	// ConsecutiveFailures resets on success and drives RetryBackoff.
	ConsecutiveFailures int
}

// Due reports whether an enabled task should run at now. A task that has
// never been scheduled is always due.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && (t.NextRun.IsZero() || !t.NextRun.After(now))
}

// Succeeded records a clean run that finished at end.
func (t *ScheduledTask) Succeeded(start, end time.Time) {
	t.LastRun = start
	t.LastSuccess = end
	t.LastError = ""
	t.ConsecutiveFailures = 0
	t.NextRun = end.Add(t.Interval)
}

// Failed records a failed run and schedules the next attempt after retry.
func (t *ScheduledTask) Failed(start, end time.Time, err error, retry time.Duration) {
	t.LastRun = start
	t.LastError = err.Error()
	t.ConsecutiveFailures++
	t.NextRun = end.Add(retry)
}

// TaskResult is one entry in a task's run history.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// Count is what the run produced: proposals for a sweep, healthy
	// capabilities for a health check.
	Count int

	// Deferred is set when a sweep skipped archives because a capability
	// was unavailable.
	Deferred bool
}

// Duration is how long the run took.
func (r TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SchedulerConfig controls which background tasks run and how often.
type SchedulerConfig struct {
	// Enabled is the master switch. When false every task is stored disabled.
	Enabled bool

	TaskConfigs map[string]TaskConfig
}

// TaskConfig is the configuration of one task. A zero Interval removes the
// task from the schedule.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Task returns the effective configuration for taskID with the master
// switch applied. Unknown tasks get the zero TaskConfig.
func (c SchedulerConfig) Task(taskID string) TaskConfig {
	tc := c.TaskConfigs[taskID]
	if !c.Enabled {
		tc.Enabled = false
	}
	return tc
}

// DefaultSchedulerConfig sweeps nightly and refreshes capability health
// every 15 minutes.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDRefinementSweep:  {Enabled: true, Interval: 24 * time.Hour},
			TaskIDCapabilityHealth: {Enabled: true, Interval: 15 * time.Minute},
		},
	}
}

// RetryBackoff returns the delay before retrying a task that failed
// failures times in a row. It doubles from one minute and never exceeds interval.
func RetryBackoff(failures int, interval time.Duration) time.Duration {
	if failures <= 0 {
		return interval
	}
	delay := time.Minute
	for i := 1; i < failures && delay < interval; i++ {
		delay *= 2
	}
	if delay > interval {
		return interval
	}
	return delay
}
