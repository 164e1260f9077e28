package driven

import "context"

// DocumentParser extracts plain text from raw document bytes.
// Each parser handles specific MIME types (e.g., DOCX, Markdown).
type DocumentParser interface {
	// SupportedMIMETypes returns the MIME types this parser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific parsers should return 50-89.
	// Fallback parsers should return 1-9.
	Priority() int

	// ExtractText returns the text content of raw. Markdown heading lines
	// are preserved so the chunker can build title chains.
	// Malformed input returns domain.ErrParse; an unhandled MIME type
	// returns domain.ErrUnsupportedFormat.
	ExtractText(ctx context.Context, raw []byte, mimeType string) (string, error)
}
