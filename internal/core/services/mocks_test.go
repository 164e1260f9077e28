package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/adapters/driven/storage/memory"
	vectormem "github.com/custodia-labs/docsync/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// --- Mock implementations shared by the service tests ---

// paragraphChunker splits on blank lines so tests control the chunk count.
type paragraphChunker struct{}

func (paragraphChunker) Split(documentID, collectionID, text string) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrChunking)
	}
	var chunks []domain.Chunk
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, domain.Chunk{
			PointID:      domain.PointID(documentID, idx),
			DocumentID:   documentID,
			CollectionID: collectionID,
			Index:        idx,
			Content:      part,
			ContentHash:  domain.ContentHash(part),
			Status:       domain.ChunkNew,
		})
	}
	return chunks, nil
}

// textParser returns the raw bytes as text and fails on a "corrupt" MIME type.
type textParser struct{}

func (textParser) SupportedMIMETypes() []string { return []string{"text/plain"} }
func (textParser) Priority() int                { return 1 }

func (textParser) ExtractText(_ context.Context, raw []byte, mimeType string) (string, error) {
	if mimeType == "application/corrupt" {
		return "", fmt.Errorf("%w: broken archive", domain.ErrParse)
	}
	return string(raw), nil
}

// mockEmbedder returns a small deterministic vector per text. failFn, when
// set, is consulted before every call with the 1-based call number.
type mockEmbedder struct {
	calls  atomic.Int32
	failFn func(call int, text string) error

	mu       sync.Mutex
	inFlight int
	peak     int
	delay    time.Duration
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	n := int(m.calls.Add(1))

	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingTransport, ctx.Err())
		}
	}
	if m.failFn != nil {
		if err := m.failFn(n, text); err != nil {
			return nil, err
		}
	}
	return []float32{float32(len(text)), float32(strings.Count(text, "a")), 1}, nil
}

func (m *mockEmbedder) Dimensions() int              { return 3 }
func (m *mockEmbedder) ModelName() string            { return "mock" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }
func (m *mockEmbedder) Calls() int                   { return int(m.calls.Load()) }

func (m *mockEmbedder) Peak() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// faultyIndex wraps the in-memory index with call counters and injectable
// failures.
type faultyIndex struct {
	*vectormem.Index

	upserts        atomic.Int32
	upsertErr      func(collectionID string, points []domain.Point) error
	deleteColErr   func(collectionID string) error
	deleteDocErr   error
	deletePointErr error
}

func newFaultyIndex() *faultyIndex {
	return &faultyIndex{Index: vectormem.New(3)}
}

func (f *faultyIndex) UpsertCollection(ctx context.Context, collectionID string, points []domain.Point) error {
	f.upserts.Add(1)
	if f.upsertErr != nil {
		if err := f.upsertErr(collectionID, points); err != nil {
			return err
		}
	}
	return f.Index.UpsertCollection(ctx, collectionID, points)
}

func (f *faultyIndex) DeletePointsByCollection(ctx context.Context, collectionID string) error {
	if f.deleteColErr != nil {
		if err := f.deleteColErr(collectionID); err != nil {
			return err
		}
	}
	return f.Index.DeletePointsByCollection(ctx, collectionID)
}

func (f *faultyIndex) DeletePointsByDoc(ctx context.Context, collectionID, documentID string) error {
	if f.deleteDocErr != nil {
		return f.deleteDocErr
	}
	return f.Index.DeletePointsByDoc(ctx, collectionID, documentID)
}

func (f *faultyIndex) DeletePoints(ctx context.Context, collectionID string, ids []string) error {
	if f.deletePointErr != nil {
		return f.deletePointErr
	}
	return f.Index.DeletePoints(ctx, collectionID, ids)
}

func (f *faultyIndex) Upserts() int { return int(f.upserts.Load()) }

// eventRecorder is an in-memory EventPublisher.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.SyncEvent
}

func (r *eventRecorder) Publish(_ context.Context, e domain.SyncEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) Close() error { return nil }

func (r *eventRecorder) ofType(t domain.SyncEventType) []domain.SyncEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SyncEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

var _ driven.EventPublisher = (*eventRecorder)(nil)

// errTimeout simulates an embedding call that hit its deadline.
var errTimeout = fmt.Errorf("%w: %w", domain.ErrEmbeddingTransport, context.DeadlineExceeded)

// noSleep skips backoff waits but still honours cancellation.
func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// harness wires the services over in-memory adapters.
type harness struct {
	store     *memory.DocumentStore
	jobs      *memory.SyncJobStore
	history   *memory.BatchHistoryStore
	index     *faultyIndex
	embedder  *mockEmbedder
	events    *eventRecorder
	queue     *SyncJobQueue
	machine   *SyncStateMachine
	ingestion *IngestionService
	batch     *BatchService
	progress  *ProgressRegistry
}

func newHarness(t *testing.T, policy domain.QueuePolicy) *harness {
	t.Helper()
	h := &harness{
		store:    memory.NewDocumentStore(),
		jobs:     memory.NewSyncJobStore(),
		history:  memory.NewBatchHistoryStore(),
		index:    newFaultyIndex(),
		embedder: &mockEmbedder{},
		events:   &eventRecorder{},
		progress: NewProgressRegistry(time.Minute),
	}
	cfg := DefaultSyncConfig()
	cfg.CallTimeout = time.Second

	h.queue = NewSyncJobQueue(h.jobs, policy)
	h.machine = NewSyncStateMachine(h.store, paragraphChunker{}, h.embedder, h.index, cfg,
		WithEventPublisher(h.events),
		WithJobStore(h.jobs),
		WithSleep(noSleep),
	)
	h.ingestion = NewIngestionService(h.store, h.store, textParser{}, h.index, h.queue, h.machine)
	h.batch = NewBatchService(h.ingestion, h.store, h.store, h.index, h.history, h.events, h.progress, 0)
	return h
}

func (h *harness) collection(t *testing.T, name string) *domain.Collection {
	t.Helper()
	col, err := h.ingestion.CreateCollection(context.Background(), name)
	require.NoError(t, err)
	return col
}

func (h *harness) submit(t *testing.T, colID, key, text string) *domain.Document {
	t.Helper()
	doc, err := h.ingestion.SubmitDocument(context.Background(), colID, upload(key, text))
	require.NoError(t, err)
	return doc
}

func (h *harness) pointIDs(t *testing.T, colID string) []string {
	t.Helper()
	ids, err := h.index.GetAllPointIDsInCollection(context.Background(), colID)
	require.NoError(t, err)
	return ids
}

func upload(key, text string) domain.RawUpload {
	return domain.RawUpload{Name: key, Key: key, MIMEType: "text/plain", Content: []byte(text)}
}
