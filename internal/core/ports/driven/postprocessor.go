package driven

import "github.com/custodia-labs/docsync/internal/core/domain"

// Chunker splits extracted text into ordered, content-addressed chunks.
// Split is deterministic: the same text always yields the same chunks.
type Chunker interface {
	// Split returns chunks with PointID, Index, Content, ContentHash and
	// TitleChain populated and Status set to new.
	// Empty or non-UTF-8 text returns domain.ErrChunking.
	Split(documentID, collectionID, text string) ([]domain.Chunk, error)
}
