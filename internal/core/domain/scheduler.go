package domain

import "time"

// Task IDs for the built-in maintenance tasks.
const (
	// TaskIDReconcile removes index points that have no chunk row.
	TaskIDReconcile = "reconcile"
	// TaskIDRetryFailed re-drives failed documents whose backoff elapsed.
	TaskIDRetryFailed = "retry-failed"
)

// ScheduledTask is the persisted state of a recurring maintenance task.
// Zero times mean "never".
type ScheduledTask struct {
	ID          string
	Name        string
	Interval    time.Duration
	LastRun     time.Time
	NextRun     time.Time
	LastError   string
	LastSuccess time.Time
	Enabled     bool
}

// TaskResult records one run of a task. ItemsProcessed counts orphans
// removed for reconcile and documents re-enqueued for retry-failed.
type TaskResult struct {
	TaskID         string
	StartedAt      time.Time
	EndedAt        time.Time
	Success        bool
	Error          string
	ItemsProcessed int
}

// SchedulerConfig is the [scheduler] settings section.
type SchedulerConfig struct {
	// Enabled is the master switch; disabled tasks stay registered.
	Enabled     bool
	TaskConfigs map[string]TaskConfig
}

// TaskConfig configures a single task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// GetTaskConfig returns the task's configuration, or the zero value when
// the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig reconciles every six hours and retries failed
// documents every five minutes.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDReconcile:   {Enabled: true, Interval: 6 * time.Hour},
			TaskIDRetryFailed: {Enabled: true, Interval: 5 * time.Minute},
		},
	}
}
