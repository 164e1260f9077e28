package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docsync/internal/core/domain"
)

func runningSnapshot() *domain.ProgressSnapshot {
	return &domain.ProgressSnapshot{
		BatchID:    "batch-1",
		Kind:       domain.BatchUpload,
		Total:      4,
		Processed:  2,
		Successful: 1,
		Failed:     1,
		Percentage: 50,
		Status:     domain.BatchProcessing,
	}
}

func newTestApp(t *testing.T, batch *MockBatchService) *App {
	t.Helper()
	app, err := NewApp(&Ports{Batch: batch}, "batch-1")
	require.NoError(t, err)
	return app
}

func TestNewApp_Validation(t *testing.T) {
	_, err := NewApp(&Ports{}, "batch-1")
	assert.ErrorIs(t, err, ErrMissingBatchService)

	_, err = NewApp(nil, "batch-1")
	assert.ErrorIs(t, err, ErrMissingBatchService)

	_, err = NewApp(&Ports{Batch: &MockBatchService{}}, "")
	assert.ErrorIs(t, err, ErrMissingBatchID)
}

func TestApp_InitPolls(t *testing.T) {
	batch := &MockBatchService{snapshot: runningSnapshot()}
	app := newTestApp(t, batch)

	cmd := app.Init()
	require.NotNil(t, cmd)

	msg := cmd()
	polled, ok := msg.(messages.ProgressPolled)
	require.True(t, ok)
	assert.Equal(t, "batch-1", polled.Snapshot.BatchID)
	assert.NoError(t, polled.Err)
}

func TestApp_Update_ProgressPolled(t *testing.T) {
	app := newTestApp(t, &MockBatchService{})

	_, cmd := app.Update(messages.ProgressPolled{Snapshot: runningSnapshot()})
	assert.NotNil(t, cmd, "running batch schedules another tick")
	assert.False(t, app.Done())
	assert.Equal(t, 2, app.Snapshot().Processed)

	done := runningSnapshot()
	done.Processed, done.Successful, done.Percentage = 4, 3, 100
	done.Status = domain.BatchCompletedWithErrors
	_, cmd = app.Update(messages.ProgressPolled{Snapshot: done})
	require.NotNil(t, cmd)
	assert.True(t, app.Done())
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_Update_PollError(t *testing.T) {
	app := newTestApp(t, &MockBatchService{})

	_, cmd := app.Update(messages.ProgressPolled{Err: domain.ErrNotFound})
	require.NotNil(t, cmd)
	assert.ErrorIs(t, app.Err(), domain.ErrNotFound)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_Update_Tick(t *testing.T) {
	batch := &MockBatchService{snapshot: runningSnapshot()}
	app := newTestApp(t, batch)

	_, cmd := app.Update(messages.Tick{})
	require.NotNil(t, cmd)
	_, ok := cmd().(messages.ProgressPolled)
	assert.True(t, ok)
}

func TestApp_Update_CancelKey(t *testing.T) {
	batch := &MockBatchService{snapshot: runningSnapshot()}
	app := newTestApp(t, batch)
	app.Update(messages.ProgressPolled{Snapshot: runningSnapshot()})

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	require.NotNil(t, cmd)
	assert.True(t, app.Cancelling())

	msg := cmd()
	assert.Equal(t, messages.CancelCompleted{}, msg)
	assert.Equal(t, []string{"batch-1"}, batch.cancelled)

	// A second press does not cancel again.
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, cmd)

	assert.Contains(t, app.View(), "cancelling...")
}

func TestApp_Update_CancelFailure(t *testing.T) {
	app := newTestApp(t, &MockBatchService{})
	app.Update(messages.ProgressPolled{Snapshot: runningSnapshot()})

	_, cmd := app.Update(messages.CancelCompleted{Err: errors.New("boom")})
	require.NotNil(t, cmd)
	assert.EqualError(t, app.Err(), "boom")

	// Once final, a late cancel error is ignored.
	app = newTestApp(t, &MockBatchService{})
	final := runningSnapshot()
	final.Status = domain.BatchCompleted
	app.Update(messages.ProgressPolled{Snapshot: final})
	_, cmd = app.Update(messages.CancelCompleted{Err: domain.ErrNotFound})
	assert.Nil(t, cmd)
	assert.NoError(t, app.Err())
}

func TestApp_Update_QuitKeyHides(t *testing.T) {
	app := newTestApp(t, &MockBatchService{})

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.True(t, app.Hidden())
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_View(t *testing.T) {
	app := newTestApp(t, &MockBatchService{})
	assert.Contains(t, app.View(), "Waiting for progress")

	app.Update(tea.WindowSizeMsg{Width: 200, Height: 40})
	app.Update(messages.ProgressPolled{Snapshot: runningSnapshot()})

	view := app.View()
	assert.Contains(t, view, "Batch batch-1")
	assert.Contains(t, view, "upload")
	assert.Contains(t, view, "2/4 processed")
	assert.Contains(t, view, "1 ok")
	assert.Contains(t, view, "1 failed")
	assert.Contains(t, view, "cancel batch")

	failed := runningSnapshot()
	failed.Status = domain.BatchFailed
	failed.Error = "rolled back"
	app.Update(messages.ProgressPolled{Snapshot: failed})
	view = app.View()
	assert.Contains(t, view, "failed: rolled back")
	assert.NotContains(t, view, "cancel batch")
}

func TestApp_WithContextAndInterval(t *testing.T) {
	app := newTestApp(t, &MockBatchService{})
	type key string
	ctx := context.WithValue(context.Background(), key("k"), "v")

	assert.Same(t, app, app.WithContext(ctx))
	assert.Same(t, app, app.WithPollInterval(0))
	assert.Equal(t, DefaultPollInterval, app.interval)
	app.WithPollInterval(DefaultPollInterval * 2)
	assert.Equal(t, DefaultPollInterval*2, app.interval)
}
