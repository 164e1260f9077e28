package driving

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetVectorBackend selects the vector index implementation.
	SetVectorBackend(backend domain.VectorBackend, url string) error

	// SetValue stores one dot-notation key, parsing raw by the key's type.
	SetValue(key, raw string) error

	// Validate checks the settings for inconsistencies.
	Validate() error

	// ValidateEmbeddingConfig pings the configured embedding provider.
	ValidateEmbeddingConfig(ctx context.Context) error

	// Keys lists the keys SetValue accepts.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
