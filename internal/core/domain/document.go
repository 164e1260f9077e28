package domain

import "time"

// DocumentStatus is the synchronisation state of a document.
type DocumentStatus string

// Document states. Synced and Dead are terminal.
const (
	DocumentNew      DocumentStatus = "new"
	DocumentSplitOK  DocumentStatus = "split_ok"
	DocumentEmbedOK  DocumentStatus = "embed_ok"
	DocumentSynced   DocumentStatus = "synced"
	DocumentFailed   DocumentStatus = "failed"
	DocumentRetrying DocumentStatus = "retrying"
	DocumentDead     DocumentStatus = "dead"
)

// IsTerminal reports whether no further transition happens without an
// explicit resync request.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentSynced || s == DocumentDead
}

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentNew, DocumentSplitOK, DocumentEmbedOK, DocumentSynced,
		DocumentFailed, DocumentRetrying, DocumentDead:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// Collection groups documents that share one vector index collection.
type Collection struct {
	// ID is the unique identifier for the collection.
	ID string

	// Name is the human-readable, unique name.
	Name string

	// CreatedAt is when the collection was created.
	CreatedAt time.Time

	// UpdatedAt is when the collection was last modified.
	UpdatedAt time.Time
}

// Document is one ingested file within a collection.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// CollectionID links to the owning Collection.
	CollectionID string

	// Name is the display name (usually the file name).
	Name string

	// Key is the logical key supplied by the caller, e.g. a relative path.
	Key string

	// SizeBytes is the size of the raw upload.
	SizeBytes int64

	// MIMEType is the content type of the raw upload.
	MIMEType string

	// Content is the extracted text. Kept so resync can re-chunk
	// without the raw bytes.
	Content string

	// ContentHash is the hash of Content.
	ContentHash string

	// Status is the position in the sync state machine.
	Status DocumentStatus

	// ErrorMessage is set only when Status is failed or dead.
	ErrorMessage string

	// RetryCount is the number of retries consumed by the current sync.
	RetryCount int

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// SetStatus moves the document to status and keeps ErrorMessage consistent.
func (d *Document) SetStatus(status DocumentStatus, errMsg string) {
	d.Status = status
	if status == DocumentFailed || status == DocumentDead {
		d.ErrorMessage = errMsg
	} else {
		d.ErrorMessage = ""
	}
	d.UpdatedAt = time.Now().UTC()
}

// DocumentPatch carries the mutable fields of a document.
// Nil fields are left unchanged.
type DocumentPatch struct {
	Name *string
	Key  *string
}

// IsEmpty reports whether the patch changes nothing.
func (p DocumentPatch) IsEmpty() bool {
	return p.Name == nil && p.Key == nil
}

// Apply copies the set fields of the patch onto doc.
func (p DocumentPatch) Apply(doc *Document) {
	if p.Name != nil {
		doc.Name = *p.Name
	}
	if p.Key != nil {
		doc.Key = *p.Key
	}
	doc.UpdatedAt = time.Now().UTC()
}
