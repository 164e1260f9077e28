package domain

import "time"

// SyncEventSchemaVersion is the version stamped on every published event.
const SyncEventSchemaVersion = "1"

// SyncEventType names a sync event.
type SyncEventType string

// Event types.
const (
	EventDocumentSynced SyncEventType = "docsync.document.synced"
	EventDocumentDead   SyncEventType = "docsync.document.dead"
	EventBatchCompleted SyncEventType = "docsync.batch.completed"
)

// SyncEvent is published when a document or batch reaches a final state.
type SyncEvent struct {
	SchemaVersion string        `json:"schema_version"`
	Type          SyncEventType `json:"type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	DocumentID    string        `json:"document_id,omitempty"`
	CollectionID  string        `json:"collection_id,omitempty"`
	BatchID       string        `json:"batch_id,omitempty"`
	Status        string        `json:"status"`
	RetryCount    int           `json:"retry_count,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Key returns the partition key: the document id, or the batch id for
// batch events.
func (e SyncEvent) Key() string {
	if e.DocumentID != "" {
		return e.DocumentID
	}
	return e.BatchID
}
