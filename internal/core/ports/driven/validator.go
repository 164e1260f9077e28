package driven

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// EmbeddingValidator checks that an embedding configuration can reach its
// provider. Used when settings change, never on the sync path.
type EmbeddingValidator interface {
	ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error
}
