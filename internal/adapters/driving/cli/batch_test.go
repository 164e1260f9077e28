package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

func resetBatchFlags(t *testing.T) {
	t.Helper()
	batchTransactional, batchConcurrency, batchDetach = false, 0, false
	batchDeleteCollections, batchSyncCollection, batchHistoryLimit = false, "", 20
	for _, name := range []string{"transactional", "concurrency", "detach"} {
		batchUploadCmd.Flags().Lookup(name).Changed = false
		batchDeleteCmd.Flags().Lookup(name).Changed = false
		batchSyncCmd.Flags().Lookup(name).Changed = false
	}
}

func TestBatchCmd_HasSubcommands(t *testing.T) {
	var names []string
	for _, cmd := range batchCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"upload", "delete", "sync", "progress", "history"}, names)
}

func TestBatchUploadCmd_CollectsDirectory(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetBatchFlags(t)
	defer resetBatchFlags(t)
	ts := currentTestServices
	ts.batch.snapshot = completedSnapshot(domain.BatchUpload,
		domain.BatchItemResult{ID: "a.md", Success: true},
		domain.BatchItemResult{ID: "sub/b.txt", Success: true})
	supportedTypes = []string{"text/markdown", "text/plain"}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("\x89PNG\r\n\x1a\n"), 0o600))

	out, err := executeCommand(t, "batch", "upload", "docs", dir, "--concurrency", "4")

	require.NoError(t, err)
	assert.Contains(t, out, "Uploading 2 files into docs...")
	assert.Contains(t, out, "2/2 processed (2 ok, 0 failed)")
	assert.Contains(t, out, "Batch batch-1 completed: 2/2 succeeded, 0 failed")

	var names []string
	for _, u := range ts.batch.uploads {
		names = append(names, u.Name)
	}
	assert.ElementsMatch(t, []string{"a.md", "b.txt"}, names)
	assert.Equal(t, 4, ts.batch.opts.Concurrency)
	assert.False(t, ts.batch.opts.Transactional)
}

func TestBatchUploadCmd_EmptyDirectory(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetBatchFlags(t)

	out, err := executeCommand(t, "batch", "upload", "docs", t.TempDir())

	require.NoError(t, err)
	assert.Contains(t, out, "No supported files under")
	assert.Nil(t, currentTestServices.batch.uploads)
}

func TestBatchDeleteCmd_Collections(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetBatchFlags(t)
	defer resetBatchFlags(t)
	defer func() { batchDeleteCmd.Flags().Lookup("collections").Changed = false }()
	currentTestServices.batch.snapshot = completedSnapshot(domain.BatchDelete,
		domain.BatchItemResult{ID: "col-1", Success: true})

	out, err := executeCommand(t, "batch", "delete", "col-1", "--collections", "--transactional")

	require.NoError(t, err)
	req := currentTestServices.batch.deleteReq
	assert.Equal(t, domain.DeleteCollections, req.Target)
	assert.Equal(t, []string{"col-1"}, req.IDs)
	assert.True(t, currentTestServices.batch.opts.Transactional)
	assert.Contains(t, out, "Batch batch-1 completed: 1/1 succeeded")
}

func TestBatchDeleteCmd_PartialFailureIsError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetBatchFlags(t)
	currentTestServices.batch.snapshot = completedSnapshot(domain.BatchDelete,
		domain.BatchItemResult{ID: "doc-1", Success: true},
		domain.BatchItemResult{ID: "doc-2", Error: "not found"})

	out, err := executeCommand(t, "batch", "delete", "doc-1", "doc-2")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch completed with 1 failed items")
	assert.Equal(t, domain.DeleteDocuments, currentTestServices.batch.deleteReq.Target)
	assert.Contains(t, out, "completed_with_errors: 1/2 succeeded, 1 failed")
	assert.Contains(t, out, "  doc-2: not found")
}

func TestBatchSyncCmd_Detach(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetBatchFlags(t)
	defer resetBatchFlags(t)

	out, err := executeCommand(t, "batch", "sync", "doc-1", "--detach")

	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, currentTestServices.batch.syncIDs)
	assert.Contains(t, out, "Batch batch-1 started")
	assert.NotContains(t, out, "processed")
	assert.Contains(t, out, "Batch batch-1 completed")
}

func TestBatchSyncCmd_Collection(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetBatchFlags(t)
	defer resetBatchFlags(t)
	defer func() { batchSyncCmd.Flags().Lookup("collection").Changed = false }()

	_, err := executeCommand(t, "batch", "sync", "--collection", "docs")

	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, currentTestServices.batch.syncIDs)
}

func TestBatchSyncCmd_NothingSelected(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	resetBatchFlags(t)

	_, err := executeCommand(t, "batch", "sync")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBatchProgressCmd_Live(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	currentTestServices.batch.snapshot = &domain.ProgressSnapshot{
		BatchID:    "batch-1",
		Kind:       domain.BatchUpload,
		Total:      4,
		Processed:  1,
		Successful: 1,
		Percentage: 25,
		Status:     domain.BatchProcessing,
	}

	out, err := executeCommand(t, "batch", "progress", "batch-1")

	require.NoError(t, err)
	assert.Contains(t, out, "Batch batch-1 (upload): processing")
	assert.Contains(t, out, "Processed: 1/4 (25%)")
}

func TestBatchProgressCmd_FallsBackToHistory(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	currentTestServices.batch.history = []domain.BatchRecord{{
		ID:          "batch-old",
		Kind:        domain.BatchSync,
		Total:       3,
		Successful:  2,
		Failed:      1,
		Status:      domain.BatchCompletedWithErrors,
		StartedAt:   testTime,
		CompletedAt: testTime,
	}}

	out, err := executeCommand(t, "batch", "progress", "batch-old")

	require.NoError(t, err)
	assert.Contains(t, out, "batch-old")
	assert.Contains(t, out, "2/3 ok")
	assert.Contains(t, out, "2026-03-01 12:00:00")
}

func TestBatchProgressCmd_Unknown(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "batch", "progress", "batch-x")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBatchHistoryCmd_Empty(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "batch", "history")

	require.NoError(t, err)
	assert.Contains(t, out, "No batches recorded.")
}

func TestPrintBatchResult(t *testing.T) {
	tests := []struct {
		name    string
		snap    *domain.ProgressSnapshot
		wantErr string
		isErr   error
	}{
		{"completed", &domain.ProgressSnapshot{Status: domain.BatchCompleted}, "", nil},
		{"failed", &domain.ProgressSnapshot{Status: domain.BatchFailed, Error: "rolled back"}, "batch failed: rolled back", nil},
		{"cancelled", &domain.ProgressSnapshot{Status: domain.BatchCancelled}, "batch cancelled", domain.ErrCancelled},
		{"with errors", &domain.ProgressSnapshot{Status: domain.BatchCompletedWithErrors, Failed: 2}, "batch completed with 2 failed items", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := printBatchResult(batchCmd, tt.snap)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			if tt.isErr != nil {
				assert.ErrorIs(t, err, tt.isErr)
			}
		})
	}
}
