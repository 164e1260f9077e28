package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/logger"
)

// SyncConfig tunes the sync state machine.
type SyncConfig struct {
	Retry            RetryPolicy
	CallTimeout      time.Duration
	ChunkConcurrency int
}

// DefaultSyncConfig returns the defaults used when settings are absent.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Retry:            DefaultRetryPolicy(),
		CallTimeout:      domain.DefaultCallTimeout,
		ChunkConcurrency: domain.DefaultChunkConcurrency,
	}
}

// SyncConfigFromSettings maps user settings onto a SyncConfig.
func SyncConfigFromSettings(s domain.SyncSettings) SyncConfig {
	cfg := DefaultSyncConfig()
	if s.MaxRetries >= 0 {
		cfg.Retry.MaxRetries = s.MaxRetries
	}
	if s.BaseDelay > 0 {
		cfg.Retry.BaseDelay = s.BaseDelay
	}
	if s.MaxDelay > 0 {
		cfg.Retry.MaxDelay = s.MaxDelay
	}
	if s.CallTimeout > 0 {
		cfg.CallTimeout = s.CallTimeout
	}
	if s.ChunkConcurrency > 0 {
		cfg.ChunkConcurrency = s.ChunkConcurrency
	}
	return cfg
}

// SyncOption configures a SyncStateMachine.
type SyncOption func(*SyncStateMachine)

// WithEventPublisher publishes synced and dead events.
func WithEventPublisher(p driven.EventPublisher) SyncOption {
	return func(m *SyncStateMachine) {
		m.events = p
	}
}

// WithJobStore records retry bookkeeping on the job row.
func WithJobStore(s driven.SyncJobStore) SyncOption {
	return func(m *SyncStateMachine) {
		m.jobs = s
	}
}

// WithSleep replaces the backoff wait. Tests use it to skip real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) SyncOption {
	return func(m *SyncStateMachine) {
		m.sleep = fn
	}
}

// SyncStateMachine drives one document from stored text to synced points:
//
//	new -> split_ok -> embed_ok -> synced
//	any stage -> failed -> retrying -> (resume) ... or -> dead
//
// A retry resumes rather than restarts: chunks whose point ID and content
// hash match a stored chunk that already holds an embedding are not
// embedded again, and synced chunks are not upserted again.
type SyncStateMachine struct {
	documents driven.DocumentStore
	chunker   driven.Chunker
	embedder  driven.EmbeddingProvider
	index     driven.VectorIndexGateway
	events    driven.EventPublisher
	jobs      driven.SyncJobStore
	cfg       SyncConfig
	sleep     func(ctx context.Context, d time.Duration) error
	log       *zap.SugaredLogger
}

// NewSyncStateMachine creates a state machine.
func NewSyncStateMachine(
	documents driven.DocumentStore,
	chunker driven.Chunker,
	embedder driven.EmbeddingProvider,
	index driven.VectorIndexGateway,
	cfg SyncConfig,
	opts ...SyncOption,
) *SyncStateMachine {
	if cfg.ChunkConcurrency <= 0 {
		cfg.ChunkConcurrency = domain.DefaultChunkConcurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = domain.DefaultCallTimeout
	}
	m := &SyncStateMachine{
		documents: documents,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		cfg:       cfg,
		sleep:     sleepContext,
		log:       logger.Named("syncmachine"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run drives a document to synced or dead without job bookkeeping.
func (m *SyncStateMachine) Run(ctx context.Context, documentID string) (*domain.Document, error) {
	return m.RunJob(ctx, &domain.SyncJob{DocumentID: documentID})
}

// RunJob drives the job's document through the state machine, retrying
// retryable failures with backoff. The returned document carries the final
// state even when err is set: dead after a fatal error or exhausted
// retries, failed when ctx was cancelled.
func (m *SyncStateMachine) RunJob(ctx context.Context, job *domain.SyncJob) (*domain.Document, error) {
	doc, err := m.documents.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	doc.RetryCount = 0
	for {
		err := m.attempt(ctx, doc)
		if err == nil {
			doc.SetStatus(domain.DocumentSynced, "")
			if err := m.documents.SaveDocument(ctx, doc); err != nil {
				return doc, fmt.Errorf("save document: %w", err)
			}
			m.log.Debugw("document synced", "doc_id", doc.ID, "retries", doc.RetryCount)
			m.publish(ctx, doc, domain.EventDocumentSynced)
			return doc, nil
		}

		// The caller gave up: leave the document resumable.
		if ctx.Err() != nil {
			doc.SetStatus(domain.DocumentFailed, err.Error())
			m.saveQuietly(ctx, doc)
			return doc, err
		}

		if domain.IsFatal(err) {
			return doc, m.deadLetter(ctx, doc, job, err)
		}

		doc.SetStatus(domain.DocumentFailed, err.Error())
		m.recordJob(ctx, job, doc.RetryCount, err)
		if doc.RetryCount >= m.cfg.Retry.MaxRetries {
			return doc, m.deadLetter(ctx, doc, job, err)
		}
		m.saveQuietly(ctx, doc)

		doc.RetryCount++
		delay := m.cfg.Retry.Delay(doc.RetryCount)
		m.log.Infow("retrying document sync",
			"doc_id", doc.ID, "retry", doc.RetryCount, "delay", delay, "error", err)

		doc.SetStatus(domain.DocumentRetrying, "")
		m.recordJob(ctx, job, doc.RetryCount, err)
		m.saveQuietly(ctx, doc)

		if err := m.sleep(ctx, delay); err != nil {
			doc.SetStatus(domain.DocumentFailed, err.Error())
			m.saveQuietly(ctx, doc)
			return doc, err
		}
	}
}

// attempt runs split, embed and upsert once, skipping work that is
// already current.
func (m *SyncStateMachine) attempt(ctx context.Context, doc *domain.Document) error {
	// 1. SPLIT
	chunks, err := m.chunker.Split(doc.ID, doc.CollectionID, doc.Content)
	if err != nil {
		return err
	}

	stored, err := m.documents.GetChunks(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}
	stale := carryOver(chunks, stored)

	if err := m.documents.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	if err := m.advance(ctx, doc, domain.DocumentSplitOK); err != nil {
		return err
	}

	// 2. EMBED (barrier: every chunk holds an embedding before advancing)
	if err := m.embedChunks(ctx, chunks); err != nil {
		return err
	}
	if err := m.advance(ctx, doc, domain.DocumentEmbedOK); err != nil {
		return err
	}

	// 3. UPSERT (barrier: every chunk is synced before the document is)
	if len(stale) > 0 {
		if err := m.removeStale(ctx, doc, stale); err != nil {
			return err
		}
	}

	var pending []int
	for i := range chunks {
		if chunks[i].Status != domain.ChunkSynced {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	points := make([]domain.Point, len(pending))
	for k, i := range pending {
		points[k] = chunks[i].Point()
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	err = m.index.UpsertCollection(callCtx, doc.CollectionID, points)
	cancel()
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}

	synced := make([]domain.Chunk, len(pending))
	for k, i := range pending {
		chunks[i].Status = domain.ChunkSynced
		chunks[i].Error = ""
		synced[k] = chunks[i]
	}
	if err := m.documents.SaveChunks(ctx, synced); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	return nil
}

// carryOver copies the embedding and status of stored chunks whose point
// ID and content hash are unchanged, and returns the point IDs of stored
// chunks the new split no longer produces.
func carryOver(chunks, stored []domain.Chunk) []string {
	byPoint := make(map[string]*domain.Chunk, len(stored))
	for i := range stored {
		byPoint[stored[i].PointID] = &stored[i]
	}

	for i := range chunks {
		prev, ok := byPoint[chunks[i].PointID]
		if !ok {
			continue
		}
		delete(byPoint, chunks[i].PointID)
		if prev.ContentHash == chunks[i].ContentHash && prev.HasCurrentEmbedding() {
			chunks[i].Embedding = prev.Embedding
			chunks[i].Status = prev.Status
		}
	}

	stale := make([]string, 0, len(byPoint))
	for id := range byPoint {
		stale = append(stale, id)
	}
	return stale
}

// embedChunks embeds every chunk lacking a current embedding, up to
// ChunkConcurrency at a time, and waits for all of them. Partial progress
// is saved so a retry resumes from it.
func (m *SyncStateMachine) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(m.cfg.ChunkConcurrency)

	for i := range chunks {
		if chunks[i].HasCurrentEmbedding() {
			continue
		}
		c := &chunks[i]
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
			defer cancel()

			vec, err := m.embedder.Embed(callCtx, c.Content)
			if err == nil && len(vec) == 0 {
				err = fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingTransport)
			}
			if err != nil {
				c.Status = domain.ChunkFailed
				c.Error = err.Error()
				mu.Lock()
				errs = append(errs, fmt.Errorf("embed chunk %d: %w", c.Index, err))
				mu.Unlock()
				return nil
			}
			c.Embedding = vec
			c.Status = domain.ChunkEmbeddingGenerated
			c.Error = ""
			return nil
		})
	}
	_ = g.Wait()

	if err := m.documents.SaveChunks(ctx, chunks); err != nil {
		return errors.Join(summarise(errs, len(chunks)), fmt.Errorf("save chunks: %w", err))
	}
	return summarise(errs, len(chunks))
}

// summarise picks the error that decides the document's fate: a fatal one
// when present, otherwise the first.
func summarise(errs []error, total int) error {
	if len(errs) == 0 {
		return nil
	}
	pick := errs[0]
	for _, err := range errs {
		if domain.IsFatal(err) {
			pick = err
			break
		}
	}
	if len(errs) == 1 {
		return pick
	}
	return fmt.Errorf("%w (%d of %d chunks failed)", pick, len(errs), total)
}

// removeStale deletes points and rows of chunk indices the document no
// longer has. Points go first so a crash never leaves a point without a row.
func (m *SyncStateMachine) removeStale(ctx context.Context, doc *domain.Document, pointIDs []string) error {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	err := m.index.DeletePoints(callCtx, doc.CollectionID, pointIDs)
	cancel()
	if err != nil {
		return fmt.Errorf("delete %d stale points: %w", len(pointIDs), err)
	}
	if err := m.documents.DeleteChunks(ctx, pointIDs); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}
	m.log.Debugw("removed stale chunks", "doc_id", doc.ID, "count", len(pointIDs))
	return nil
}

func (m *SyncStateMachine) advance(ctx context.Context, doc *domain.Document, status domain.DocumentStatus) error {
	doc.SetStatus(status, "")
	if err := m.documents.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (m *SyncStateMachine) deadLetter(ctx context.Context, doc *domain.Document, job *domain.SyncJob, cause error) error {
	doc.SetStatus(domain.DocumentDead, cause.Error())
	m.saveQuietly(ctx, doc)
	m.recordJob(ctx, job, doc.RetryCount, cause)
	m.log.Warnw("document dead-lettered",
		"doc_id", doc.ID, "retries", doc.RetryCount, "fatal", domain.IsFatal(cause), "error", cause)
	m.publish(ctx, doc, domain.EventDocumentDead)
	return cause
}

func (m *SyncStateMachine) saveQuietly(ctx context.Context, doc *domain.Document) {
	if err := m.documents.SaveDocument(context.WithoutCancel(ctx), doc); err != nil {
		m.log.Warnw("failed to save document state", "doc_id", doc.ID, "status", doc.Status, "error", err)
	}
}

func (m *SyncStateMachine) recordJob(ctx context.Context, job *domain.SyncJob, retries int, cause error) {
	job.RetryCount = retries
	job.Error = cause.Error()
	if m.jobs == nil || job.ID == "" {
		return
	}
	if err := m.jobs.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		m.log.Warnw("failed to save job state", "job_id", job.ID, "error", err)
	}
}

func (m *SyncStateMachine) publish(ctx context.Context, doc *domain.Document, typ domain.SyncEventType) {
	if m.events == nil {
		return
	}
	event := domain.SyncEvent{
		SchemaVersion: domain.SyncEventSchemaVersion,
		Type:          typ,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		DocumentID:    doc.ID,
		CollectionID:  doc.CollectionID,
		Status:        doc.Status.String(),
		RetryCount:    doc.RetryCount,
		Error:         doc.ErrorMessage,
	}
	if err := m.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		m.log.Warnw("failed to publish event", "type", typ, "doc_id", doc.ID, "error", err)
	}
}
