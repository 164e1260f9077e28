package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// syncJobStore implements driven.SyncJobStore.
type syncJobStore struct {
	store *Store
}

var _ driven.SyncJobStore = (*syncJobStore)(nil)

const syncJobColumns = `id, document_id, collection_id, status, retry_count, error,
	created_at, started_at, completed_at`

// SaveJob creates or updates a job.
func (s *syncJobStore) SaveJob(ctx context.Context, job *domain.SyncJob) error {
	if job == nil {
		return domain.ErrInvalidInput
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_jobs (`+syncJobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			retry_count = excluded.retry_count,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, job.ID, job.DocumentID, job.CollectionID, string(job.Status), job.RetryCount, job.Error,
		formatTime(job.CreatedAt), formatNullableTime(job.StartedAt), formatNullableTime(job.CompletedAt))
	if err != nil {
		return fmt.Errorf("saving sync job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *syncJobStore) GetJob(ctx context.Context, id string) (*domain.SyncJob, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+syncJobColumns+" FROM sync_jobs WHERE id = ?", id)
	job, err := scanSyncJob(row)
	if err != nil {
		return nil, notFound(err, "sync job "+id)
	}
	return job, nil
}

// GetActiveJob returns the pending or processing job for a document.
func (s *syncJobStore) GetActiveJob(ctx context.Context, documentID string) (*domain.SyncJob, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+syncJobColumns+` FROM sync_jobs
		WHERE document_id = ? AND status IN (?, ?)
		ORDER BY created_at DESC
		LIMIT 1
	`, documentID, string(domain.SyncJobPending), string(domain.SyncJobProcessing))
	job, err := scanSyncJob(row)
	if err != nil {
		return nil, notFound(err, "active sync job for "+documentID)
	}
	return job, nil
}

// ListJobs returns the jobs of a document, newest first.
func (s *syncJobStore) ListJobs(ctx context.Context, documentID string) ([]domain.SyncJob, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+syncJobColumns+` FROM sync_jobs
		WHERE document_id = ?
		ORDER BY created_at DESC, id DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying sync jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.SyncJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync jobs: %w", err)
	}
	return jobs, nil
}

// FailActiveJobs marks every active job failed with reason.
func (s *syncJobStore) FailActiveJobs(ctx context.Context, reason string) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_jobs SET status = ?, error = ?, completed_at = ?
		WHERE status IN (?, ?)
	`, string(domain.SyncJobFailed), reason, formatTime(time.Now()),
		string(domain.SyncJobPending), string(domain.SyncJobProcessing))
	if err != nil {
		return 0, fmt.Errorf("failing active jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting failed jobs: %w", err)
	}
	return int(n), nil
}

func scanSyncJob(row rowScanner) (*domain.SyncJob, error) {
	var job domain.SyncJob
	var status, createdAt string
	var startedAt, completedAt sql.NullString
	if err := row.Scan(&job.ID, &job.DocumentID, &job.CollectionID, &status, &job.RetryCount,
		&job.Error, &createdAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	job.Status = domain.SyncJobStatus(status)
	job.CreatedAt = parseTime(createdAt)
	job.StartedAt = parseNullableTime(startedAt)
	job.CompletedAt = parseNullableTime(completedAt)
	return &job, nil
}

// ==================== Batch History Store ====================

// batchHistoryStore implements driven.BatchHistoryStore.
type batchHistoryStore struct {
	store *Store
}

var _ driven.BatchHistoryStore = (*batchHistoryStore)(nil)

// SaveBatch records a batch summary, replacing an earlier record with the same ID.
func (s *batchHistoryStore) SaveBatch(ctx context.Context, rec *domain.BatchRecord) error {
	if rec == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO batch_history (id, kind, total, successful, failed, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total = excluded.total,
			successful = excluded.successful,
			failed = excluded.failed,
			status = excluded.status,
			error = excluded.error,
			completed_at = excluded.completed_at
	`, rec.ID, string(rec.Kind), rec.Total, rec.Successful, rec.Failed, string(rec.Status), rec.Error,
		formatTime(rec.StartedAt), formatNullableTime(rec.CompletedAt))
	if err != nil {
		return fmt.Errorf("saving batch record: %w", err)
	}
	return nil
}

// ListBatches returns the most recent batches, newest first.
func (s *batchHistoryStore) ListBatches(ctx context.Context, limit int) ([]domain.BatchRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, kind, total, successful, failed, status, error, started_at, completed_at
		FROM batch_history
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying batch history: %w", err)
	}
	defer rows.Close()

	var records []domain.BatchRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.BatchRecord
		var kind, status, startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&rec.ID, &kind, &rec.Total, &rec.Successful, &rec.Failed,
			&status, &rec.Error, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning batch record: %w", err)
		}
		rec.Kind = domain.BatchKind(kind)
		rec.Status = domain.BatchStatus(status)
		rec.StartedAt = parseTime(startedAt)
		rec.CompletedAt = parseNullableTime(completedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batch history: %w", err)
	}
	return records, nil
}
