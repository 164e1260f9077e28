package domain

// RawUpload is the caller's input before parsing: opaque bytes plus the
// metadata needed to pick a parser.
type RawUpload struct {
	// Name is the display name, usually the file name.
	Name string

	// Key is an optional logical key such as a relative path.
	Key string

	// MIMEType is the content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}

// ChangeType represents the type of file change seen by a watcher.
type ChangeType int

const (
	// ChangeCreated indicates a new file.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified file.
	ChangeUpdated

	// ChangeDeleted indicates a removed file.
	ChangeDeleted
)

// String returns the string representation.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return unknownDescription
	}
}

// RawChange represents a change event from a directory watcher.
type RawChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Upload is the affected file. Content is empty for deletions.
	Upload RawUpload
}
