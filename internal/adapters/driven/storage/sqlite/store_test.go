package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "docsync-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// createTestCollection creates a collection to satisfy foreign key constraints.
func createTestCollection(t *testing.T, store *Store, id string) *domain.Collection {
	t.Helper()
	col := &domain.Collection{ID: id, Name: "collection " + id}
	require.NoError(t, store.CollectionStore().SaveCollection(context.Background(), col))
	return col
}

// createTestDocument creates a synced document in the given collection.
func createTestDocument(t *testing.T, store *Store, collectionID, id string, created time.Time) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		ID:           id,
		CollectionID: collectionID,
		Name:         id + ".md",
		Key:          "docs/" + id + ".md",
		SizeBytes:    42,
		MIMEType:     "text/markdown",
		Content:      "# Title\n\nbody",
		ContentHash:  domain.ContentHash("# Title\n\nbody"),
		Status:       domain.DocumentSynced,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	require.NoError(t, store.DocumentStore().SaveDocument(context.Background(), doc))
	return doc
}

func testChunks(doc *domain.Document, n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		content := doc.ID + " chunk"
		chunks[i] = domain.Chunk{
			PointID:      domain.PointID(doc.ID, i),
			DocumentID:   doc.ID,
			CollectionID: doc.CollectionID,
			Index:        i,
			Content:      content,
			ContentHash:  domain.ContentHash(content),
			Status:       domain.ChunkSynced,
		}
	}
	return chunks
}

// ==================== Store Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.Equal(t, "metadata.db", filepath.Base(store.Path()))
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_InvalidDirectory(t *testing.T) {
	tempDir := t.TempDir()
	blocker := filepath.Join(tempDir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	_, err := NewStore(filepath.Join(blocker, "data"))
	assert.Error(t, err)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.CollectionStore().SaveCollection(ctx, &domain.Collection{ID: "col-1", Name: "docs"}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(tempDir)
	require.NoError(t, err)
	defer reopened.Close()

	col, err := reopened.CollectionStore().GetCollection(ctx, "col-1")
	require.NoError(t, err)
	assert.Equal(t, "docs", col.Name)

	var versions int
	require.NoError(t, reopened.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 1, versions)
}

// ==================== CollectionStore Tests ====================

func TestCollectionStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	collections := store.CollectionStore()

	col := &domain.Collection{ID: "col-1", Name: "handbook"}
	require.NoError(t, collections.SaveCollection(ctx, col))
	assert.False(t, col.CreatedAt.IsZero())

	byID, err := collections.GetCollection(ctx, "col-1")
	require.NoError(t, err)
	assert.Equal(t, "handbook", byID.Name)
	assert.True(t, col.CreatedAt.Equal(byID.CreatedAt))

	byName, err := collections.GetCollectionByName(ctx, "handbook")
	require.NoError(t, err)
	assert.Equal(t, "col-1", byName.ID)
}

func TestCollectionStore_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	_, err := store.CollectionStore().GetCollection(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.CollectionStore().GetCollectionByName(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCollectionStore_DuplicateName(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	collections := store.CollectionStore()

	require.NoError(t, collections.SaveCollection(ctx, &domain.Collection{ID: "col-1", Name: "docs"}))
	err := collections.SaveCollection(ctx, &domain.Collection{ID: "col-2", Name: "docs"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCollectionStore_ListOrderedByName(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	collections := store.CollectionStore()

	for id, name := range map[string]string{"a": "zeta", "b": "alpha", "c": "mu"} {
		require.NoError(t, collections.SaveCollection(ctx, &domain.Collection{ID: id, Name: name}))
	}

	list, err := collections.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "mu", list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)
}

func TestCollectionStore_DeleteCascades(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestCollection(t, store, "col-1")
	createTestCollection(t, store, "col-2")
	now := time.Now()
	doc := createTestDocument(t, store, "col-1", "doc-1", now)
	other := createTestDocument(t, store, "col-2", "doc-2", now)
	require.NoError(t, store.DocumentStore().SaveChunks(ctx, testChunks(doc, 3)))
	require.NoError(t, store.DocumentStore().SaveChunks(ctx, testChunks(other, 2)))

	require.NoError(t, store.CollectionStore().DeleteCollection(ctx, "col-1"))

	_, err := store.CollectionStore().GetCollection(ctx, "col-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.DocumentStore().GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := store.DocumentStore().GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// The other collection is untouched.
	remaining, err := store.DocumentStore().GetChunks(ctx, "doc-2")
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

// ==================== DocumentStore Tests ====================

func TestDocumentStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestCollection(t, store, "col-1")
	created := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	doc := createTestDocument(t, store, "col-1", "doc-1", created)

	got, err := store.DocumentStore().GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Name, got.Name)
	assert.Equal(t, doc.Key, got.Key)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.ContentHash, got.ContentHash)
	assert.Equal(t, int64(42), got.SizeBytes)
	assert.Equal(t, domain.DocumentSynced, got.Status)
	assert.True(t, created.Equal(got.CreatedAt))

	byKey, err := store.DocumentStore().GetDocumentByKey(ctx, "col-1", "docs/doc-1.md")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", byKey.ID)
}

func TestDocumentStore_Update(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestCollection(t, store, "col-1")
	doc := createTestDocument(t, store, "col-1", "doc-1", time.Now())

	doc.SetStatus(domain.DocumentFailed, "embedding timeout")
	doc.RetryCount = 2
	require.NoError(t, store.DocumentStore().SaveDocument(ctx, doc))

	got, err := store.DocumentStore().GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentFailed, got.Status)
	assert.Equal(t, "embedding timeout", got.ErrorMessage)
	assert.Equal(t, 2, got.RetryCount)
}

func TestDocumentStore_MissingCollection(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.DocumentStore().SaveDocument(context.Background(), &domain.Document{
		ID:           "doc-1",
		CollectionID: "missing",
		Name:         "a.txt",
		Status:       domain.DocumentNew,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_DuplicateKey(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestCollection(t, store, "col-1")
	createTestDocument(t, store, "col-1", "doc-1", time.Now())

	dup := &domain.Document{
		ID:           "doc-2",
		CollectionID: "col-1",
		Name:         "copy.md",
		Key:          "docs/doc-1.md",
		Status:       domain.DocumentNew,
	}
	assert.ErrorIs(t, store.DocumentStore().SaveDocument(ctx, dup), domain.ErrConflict)

	// Empty keys never collide.
	for _, id := range []string{"doc-3", "doc-4"} {
		err := store.DocumentStore().SaveDocument(ctx, &domain.Document{
			ID: id, CollectionID: "col-1", Name: id, Status: domain.DocumentNew,
		})
		require.NoError(t, err)
	}
}

func TestDocumentStore_ListOrdering(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestCollection(t, store, "col-1")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	createTestDocument(t, store, "col-1", "doc-b", base.Add(time.Second))
	createTestDocument(t, store, "col-1", "doc-a", base.Add(500*time.Millisecond))
	createTestDocument(t, store, "col-1", "doc-c", base.Add(2*time.Second))

	docs, err := store.DocumentStore().ListDocuments(ctx, "col-1")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "doc-a", docs[0].ID)
	assert.Equal(t, "doc-b", docs[1].ID)
	assert.Equal(t, "doc-c", docs[2].ID)
}

func TestDocumentStore_ListByStatus(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestCollection(t, store, "col-1")
	createTestCollection(t, store, "col-2")
	createTestDocument(t, store, "col-1", "doc-1", time.Now())
	failed := createTestDocument(t, store, "col-2", "doc-2", time.Now())
	failed.SetStatus(domain.DocumentFailed, "boom")
	require.NoError(t, store.DocumentStore().SaveDocument(ctx, failed))

	docs, err := store.DocumentStore().ListDocumentsByStatus(ctx, domain.DocumentFailed)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-2", docs[0].ID)
}

func TestDocumentStore_ChunksRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestCollection(t, store, "col-1")
	doc := createTestDocument(t, store, "col-1", "doc-1", time.Now())

	chunks := testChunks(doc, 2)
	chunks[0].TitleChain = []string{"Intro", "Setup"}
	chunks[0].Embedding = []float32{0.25, -1, 3.5}
	chunks[1].Status = domain.ChunkFailed
	chunks[1].Error = "timeout"
	require.NoError(t, store.DocumentStore().SaveChunks(ctx, chunks))

	got, err := store.DocumentStore().GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, chunks[0].PointID, got[0].PointID)
	assert.Equal(t, []string{"Intro", "Setup"}, got[0].TitleChain)
	assert.Equal(t, []float32{0.25, -1, 3.5}, got[0].Embedding)
	assert.Nil(t, got[1].TitleChain)
	assert.Nil(t, got[1].Embedding)
	assert.Equal(t, domain.ChunkFailed, got[1].Status)
	assert.Equal(t, "timeout", got[1].Error)

	// Upsert by point ID.
	chunks[1].Status = domain.ChunkSynced
	chunks[1].Error = ""
	require.NoError(t, store.DocumentStore().SaveChunks(ctx, chunks[1:]))
	got, err = store.DocumentStore().GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.ChunkSynced, got[1].Status)
}

func TestDocumentStore_ChunksForMissingDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	createTestCollection(t, store, "col-1")
	orphan := testChunks(&domain.Document{ID: "ghost", CollectionID: "col-1"}, 1)
	err := store.DocumentStore().SaveChunks(context.Background(), orphan)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_DeleteChunksAndStatuses(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestCollection(t, store, "col-1")
	doc := createTestDocument(t, store, "col-1", "doc-1", time.Now())
	chunks := testChunks(doc, 4)
	chunks[3].Status = domain.ChunkEmbeddingGenerated
	require.NoError(t, store.DocumentStore().SaveChunks(ctx, chunks))

	statuses, err := store.DocumentStore().ListChunkStatuses(ctx, "col-1")
	require.NoError(t, err)
	assert.Len(t, statuses, 4)
	assert.Equal(t, domain.ChunkEmbeddingGenerated, statuses[chunks[3].PointID])

	require.NoError(t, store.DocumentStore().DeleteChunks(ctx, []string{chunks[2].PointID, chunks[3].PointID, "unknown"}))
	require.NoError(t, store.DocumentStore().DeleteChunks(ctx, nil))

	got, err := store.DocumentStore().GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDocumentStore_DeleteDocumentRemovesChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestCollection(t, store, "col-1")
	doc := createTestDocument(t, store, "col-1", "doc-1", time.Now())
	require.NoError(t, store.DocumentStore().SaveChunks(ctx, testChunks(doc, 3)))

	require.NoError(t, store.DocumentStore().DeleteDocument(ctx, "doc-1"))

	_, err := store.DocumentStore().GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	statuses, err := store.DocumentStore().ListChunkStatuses(ctx, "col-1")
	require.NoError(t, err)
	assert.Empty(t, statuses)

	// Deleting again is a no-op.
	assert.NoError(t, store.DocumentStore().DeleteDocument(ctx, "doc-1"))
}

// ==================== SyncJobStore Tests ====================

func TestSyncJobStore_Lifecycle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	jobs := store.SyncJobStore()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	job := &domain.SyncJob{
		ID:           "job-1",
		DocumentID:   "doc-1",
		CollectionID: "col-1",
		Status:       domain.SyncJobPending,
		CreatedAt:    created,
	}
	require.NoError(t, jobs.SaveJob(ctx, job))

	active, err := jobs.GetActiveJob(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", active.ID)
	assert.True(t, active.StartedAt.IsZero())

	job.Status = domain.SyncJobCompleted
	job.StartedAt = created.Add(time.Second)
	job.CompletedAt = created.Add(2 * time.Second)
	require.NoError(t, jobs.SaveJob(ctx, job))

	_, err = jobs.GetActiveJob(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := jobs.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncJobCompleted, got.Status)
	assert.True(t, job.CompletedAt.Equal(got.CompletedAt))
}

func TestSyncJobStore_GetJobNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.SyncJobStore().GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncJobStore_ListJobsNewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	jobs := store.SyncJobStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"job-1", "job-2", "job-3"} {
		require.NoError(t, jobs.SaveJob(ctx, &domain.SyncJob{
			ID:         id,
			DocumentID: "doc-1",
			Status:     domain.SyncJobCompleted,
			CreatedAt:  base.Add(time.Duration(i) * time.Millisecond),
		}))
	}
	require.NoError(t, jobs.SaveJob(ctx, &domain.SyncJob{ID: "other", DocumentID: "doc-2", Status: domain.SyncJobPending}))

	list, err := jobs.ListJobs(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "job-3", list[0].ID)
	assert.Equal(t, "job-1", list[2].ID)
}

func TestSyncJobStore_FailActiveJobs(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	jobs := store.SyncJobStore()
	require.NoError(t, jobs.SaveJob(ctx, &domain.SyncJob{ID: "a", DocumentID: "doc-1", Status: domain.SyncJobPending}))
	require.NoError(t, jobs.SaveJob(ctx, &domain.SyncJob{ID: "b", DocumentID: "doc-2", Status: domain.SyncJobProcessing}))
	require.NoError(t, jobs.SaveJob(ctx, &domain.SyncJob{ID: "c", DocumentID: "doc-3", Status: domain.SyncJobCompleted}))

	n, err := jobs.FailActiveJobs(ctx, "interrupted")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := jobs.GetJob(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncJobFailed, got.Status)
	assert.Equal(t, "interrupted", got.Error)
	assert.False(t, got.CompletedAt.IsZero())

	done, err := jobs.GetJob(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncJobCompleted, done.Status)
}

func TestSyncJobStore_SaveNil(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.ErrorIs(t, store.SyncJobStore().SaveJob(context.Background(), nil), domain.ErrInvalidInput)
}

// ==================== BatchHistoryStore Tests ====================

func TestBatchHistoryStore_NewestFirstWithLimit(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	history := store.BatchHistoryStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"b-1", "b-2", "b-3"} {
		require.NoError(t, history.SaveBatch(ctx, &domain.BatchRecord{
			ID:          id,
			Kind:        domain.BatchUpload,
			Total:       4,
			Successful:  3,
			Failed:      1,
			Status:      domain.BatchCompletedWithErrors,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			CompletedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}))
	}

	all, err := history.ListBatches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b-3", all[0].ID)
	assert.Equal(t, domain.BatchUpload, all[0].Kind)
	assert.Equal(t, 3, all[0].Successful)
	assert.Equal(t, domain.BatchCompletedWithErrors, all[0].Status)

	limited, err := history.ListBatches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "b-2", limited[1].ID)
}

func TestBatchHistoryStore_SaveReplaces(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	history := store.BatchHistoryStore()
	rec := &domain.BatchRecord{ID: "b-1", Kind: domain.BatchSync, Total: 2, Status: domain.BatchProcessing, StartedAt: time.Now()}
	require.NoError(t, history.SaveBatch(ctx, rec))

	rec.Status = domain.BatchCancelled
	rec.Error = "cancelled"
	rec.Failed = 2
	rec.CompletedAt = time.Now()
	require.NoError(t, history.SaveBatch(ctx, rec))

	list, err := history.ListBatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.BatchCancelled, list[0].Status)
	assert.Equal(t, "cancelled", list[0].Error)
	assert.False(t, list[0].CompletedAt.IsZero())
}

// ==================== Helper Tests ====================

func TestFloat32Conversion(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 1e-7}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
