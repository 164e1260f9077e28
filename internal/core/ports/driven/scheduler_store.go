package driven

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// SchedulerStore keeps the state of the maintenance tasks (reconcile,
// retry-failed) across restarts, so a task resumes from its recorded
// NextRun instead of firing on every start.
type SchedulerStore interface {
	// GetTask returns nil and no error for a task never saved.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns every task ordered by ID.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask upserts by task ID; nil is ErrInvalidInput.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	DeleteTask(ctx context.Context, taskID string) error

	// RecordResult appends one run to the task's history.
	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// GetTaskHistory returns up to limit runs, newest first.
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory keeps the newest keep runs of each task.
	PruneHistory(ctx context.Context, keep int) error
}
