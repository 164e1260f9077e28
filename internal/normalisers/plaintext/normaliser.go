// Package plaintext extracts text from plain text, source code and other
// text-based formats. It is the fallback parser.
package plaintext

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.DocumentParser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/x-go",
		"text/x-python",
		"text/x-rust",
		"text/x-java",
		"text/x-c",
		"text/x-c++",
		"text/x-ruby",
		"text/x-shellscript",
		"text/x-sql",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/javascript",
		"text/typescript",
		"text/css",
		"application/json",
		"application/xml",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback
}

// ExtractText returns the content unchanged apart from line endings and
// surrounding whitespace.
func (n *Normaliser) ExtractText(ctx context.Context, raw []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !normalisers.Accepts(n, mimeType) {
		return "", fmt.Errorf("%w: plaintext cannot handle %q", domain.ErrUnsupportedFormat, mimeType)
	}

	text, err := normalisers.DecodeText(raw)
	if err != nil {
		return "", err
	}
	return normalisers.CollapseBlankLines(text), nil
}
