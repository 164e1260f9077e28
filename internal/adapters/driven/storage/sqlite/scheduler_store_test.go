package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

func newSchedulerStore(t *testing.T) driven.SchedulerStore {
	t.Helper()
	store, cleanup := setupTestStore(t)
	t.Cleanup(cleanup)
	return store.SchedulerStore()
}

func reconcileTask() *domain.ScheduledTask {
	return &domain.ScheduledTask{
		ID:       domain.TaskIDReconcile,
		Name:     "Orphan point reconcile",
		Interval: 6 * time.Hour,
		Enabled:  true,
	}
}

// recordRuns stores n successful runs one minute apart; run i processed i+1 items.
func recordRuns(t *testing.T, s driven.SchedulerStore, taskID string, n int) {
	t.Helper()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range n {
		require.NoError(t, s.RecordResult(context.Background(), &domain.TaskResult{
			TaskID:         taskID,
			StartedAt:      start.Add(time.Duration(i) * time.Minute),
			EndedAt:        start.Add(time.Duration(i)*time.Minute + 10*time.Second),
			Success:        true,
			ItemsProcessed: i + 1,
		}))
	}
}

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	task := reconcileTask()
	task.LastRun = now.Add(-30 * time.Minute)
	task.LastSuccess = task.LastRun
	task.NextRun = task.LastRun.Add(task.Interval)
	require.NoError(t, s.SaveTask(ctx, task))

	got, err := s.GetTask(ctx, domain.TaskIDReconcile)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.Name, got.Name)
	assert.Equal(t, task.Interval, got.Interval)
	assert.True(t, got.Enabled)
	assert.True(t, task.LastRun.Equal(got.LastRun))
	assert.True(t, task.NextRun.Equal(got.NextRun))
	assert.True(t, task.LastSuccess.Equal(got.LastSuccess))

	// Saving again updates in place.
	task.LastError = "qdrant unavailable"
	task.Enabled = false
	task.Interval = time.Hour
	require.NoError(t, s.SaveTask(ctx, task))

	got, err = s.GetTask(ctx, domain.TaskIDReconcile)
	require.NoError(t, err)
	assert.Equal(t, "qdrant unavailable", got.LastError)
	assert.Equal(t, time.Hour, got.Interval)
	assert.False(t, got.Enabled)
}

func TestSchedulerStore_GetTaskMissingIsNil(t *testing.T) {
	s := newSchedulerStore(t)

	task, err := s.GetTask(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestSchedulerStore_ZeroTimesRoundTrip(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveTask(ctx, reconcileTask()))

	got, err := s.GetTask(ctx, domain.TaskIDReconcile)
	require.NoError(t, err)
	assert.True(t, got.LastRun.IsZero())
	assert.True(t, got.NextRun.IsZero())
	assert.True(t, got.LastSuccess.IsZero())
}

func TestSchedulerStore_NilArguments(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()

	require.ErrorIs(t, s.SaveTask(ctx, nil), domain.ErrInvalidInput)
	require.ErrorIs(t, s.RecordResult(ctx, nil), domain.ErrInvalidInput)
}

func TestSchedulerStore_ListAndDeleteTasks(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	for _, id := range []string{domain.TaskIDRetryFailed, domain.TaskIDReconcile} {
		require.NoError(t, s.SaveTask(ctx, &domain.ScheduledTask{ID: id, Name: id, Interval: time.Minute}))
	}

	tasks, err = s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.TaskIDReconcile, tasks[0].ID)
	assert.Equal(t, domain.TaskIDRetryFailed, tasks[1].ID)

	require.NoError(t, s.DeleteTask(ctx, domain.TaskIDRetryFailed))
	got, err := s.GetTask(ctx, domain.TaskIDRetryFailed)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSchedulerStore_HistoryNewestFirst(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveTask(ctx, reconcileTask()))

	history, err := s.GetTaskHistory(ctx, domain.TaskIDReconcile, 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	recordRuns(t, s, domain.TaskIDReconcile, 1)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordResult(ctx, &domain.TaskResult{
		TaskID:    domain.TaskIDReconcile,
		StartedAt: start,
		EndedAt:   start.Add(time.Minute),
		Error:     "list points: deadline exceeded",
	}))

	history, err = s.GetTaskHistory(ctx, domain.TaskIDReconcile, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].Success)
	assert.Equal(t, "list points: deadline exceeded", history[0].Error)
	assert.True(t, history[1].Success)
	assert.Equal(t, 1, history[1].ItemsProcessed)

	recordRuns(t, s, domain.TaskIDRetryFailed, 5)
	limited, err := s.GetTaskHistory(ctx, domain.TaskIDRetryFailed, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

func TestSchedulerStore_PruneHistoryKeepsNewest(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()
	recordRuns(t, s, domain.TaskIDRetryFailed, 10)

	require.NoError(t, s.PruneHistory(ctx, 3))

	history, err := s.GetTaskHistory(ctx, domain.TaskIDRetryFailed, 100)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 10, history[0].ItemsProcessed)
	assert.Equal(t, 9, history[1].ItemsProcessed)
	assert.Equal(t, 8, history[2].ItemsProcessed)
}

func TestFormatNullableTime(t *testing.T) {
	assert.Nil(t, formatNullableTime(time.Time{}))

	ts := time.Date(2026, 3, 1, 9, 30, 0, 5, time.UTC)
	assert.Equal(t, "2026-03-01T09:30:00.000000005Z", formatNullableTime(ts))
}

// Fixed-width timestamps keep ORDER BY correct for sub-second gaps.
func TestFormatTime_SortsLexically(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	earlier := formatTime(base.Add(900 * time.Millisecond))
	later := formatTime(base.Add(time.Second))
	assert.Less(t, earlier, later)
	assert.True(t, base.Equal(parseTime(formatTime(base))))
}

func TestParseTime_AcceptsRFC3339(t *testing.T) {
	got := parseTime("2026-03-01T09:30:00Z")
	assert.Equal(t, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), got)
}

func TestSQLValueHelpers(t *testing.T) {
	assert.Equal(t, 1, boolToInt(true))
	assert.Equal(t, 0, boolToInt(false))
	assert.Nil(t, nullString(""))
	assert.Equal(t, "reconcile", nullString("reconcile"))
}
