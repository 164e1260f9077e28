package normalisers

import (
	"context"
	"fmt"
	"mime"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.DocumentParser = (*Registry)(nil)

// Registry selects a DocumentParser by MIME type.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string][]driven.DocumentParser
}

// NewRegistry creates a registry holding parsers.
func NewRegistry(parsers ...driven.DocumentParser) *Registry {
	r := &Registry{parsers: make(map[string][]driven.DocumentParser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// Register adds p for each of its MIME types. For a given type, parsers
// are kept in descending priority; equal priorities keep insertion order.
func (r *Registry) Register(p driven.DocumentParser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mt := range p.SupportedMIMETypes() {
		mt = NormaliseMIME(mt)
		list := append(r.parsers[mt], p)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.parsers[mt] = list
	}
}

// Lookup returns the highest priority parser for mimeType.
func (r *Registry) Lookup(mimeType string) (driven.DocumentParser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.parsers[NormaliseMIME(mimeType)]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// SupportedMIMETypes returns every registered type, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.parsers))
	for mt := range r.parsers {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// Priority is irrelevant for the registry itself.
func (r *Registry) Priority() int {
	return 0
}

// ExtractText delegates to the parser registered for mimeType.
func (r *Registry) ExtractText(ctx context.Context, raw []byte, mimeType string) (string, error) {
	p, ok := r.Lookup(mimeType)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, mimeType)
	}
	return p.ExtractText(ctx, raw, NormaliseMIME(mimeType))
}

// NormaliseMIME lowercases a media type and drops its parameters:
// "Text/Plain; charset=utf-8" becomes "text/plain".
func NormaliseMIME(mimeType string) string {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Accepts reports whether p lists mimeType.
func Accepts(p driven.DocumentParser, mimeType string) bool {
	mt := NormaliseMIME(mimeType)
	for _, s := range p.SupportedMIMETypes() {
		if s == mt {
			return true
		}
	}
	return false
}
