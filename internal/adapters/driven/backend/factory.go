// Package backend builds the driven adapters selected by application
// settings: the embedding provider, the vector index and the event publisher.
package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/custodia-labs/docsync/internal/adapters/driven/embedding/hash"
	"github.com/custodia-labs/docsync/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/docsync/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/docsync/internal/adapters/driven/embedding/ratelimit"
	"github.com/custodia-labs/docsync/internal/adapters/driven/events/kafka"
	"github.com/custodia-labs/docsync/internal/adapters/driven/events/nop"
	"github.com/custodia-labs/docsync/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/docsync/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/docsync/internal/adapters/driven/vector/sqlitevec"
	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// VectorFileName is the sqlite-vec database inside the data directory.
const VectorFileName = "vectors.db"

// Result holds the adapters built from settings.
type Result struct {
	Embedding driven.EmbeddingProvider
	Index     driven.VectorIndexGateway
	Events    driven.EventPublisher
	Warnings  []string // Non-fatal configuration issues.
}

// Close releases all resources held by the result.
func (r *Result) Close() {
	if r.Events != nil {
		if err := r.Events.Close(); err != nil {
			logger.Warn("closing event publisher: %v", err)
		}
	}
	if r.Index != nil {
		if err := r.Index.Close(); err != nil {
			logger.Warn("closing vector index: %v", err)
		}
	}
	if r.Embedding != nil {
		_ = r.Embedding.Close()
	}
}

// Build creates every adapter from settings. The vector index is sized to
// the embedding provider, so a stale vector_index.dimensions only warns.
// Build does not contact remote services; use ValidateEmbeddingConfig for that.
func Build(settings *domain.AppSettings, dataDir string) (*Result, error) {
	if settings == nil {
		defaults := domain.DefaultAppSettings()
		settings = &defaults
	}

	res := &Result{}
	embedder, err := CreateEmbeddingProvider(&settings.Embedding)
	if err != nil {
		return nil, err
	}
	res.Embedding = embedder

	indexSettings := settings.VectorIndex
	if dims := embedder.Dimensions(); indexSettings.Dimensions != dims {
		if indexSettings.Dimensions != 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"vector_index.dimensions is %d but %s produces %d; using %d",
				indexSettings.Dimensions, embedder.ModelName(), dims, dims))
		}
		indexSettings.Dimensions = dims
	}

	index, err := CreateVectorIndex(&indexSettings, dataDir)
	if err != nil {
		res.Close()
		return nil, err
	}
	res.Index = index

	events, err := CreateEventPublisher(&settings.Events)
	if err != nil {
		res.Close()
		return nil, err
	}
	res.Events = events

	for _, w := range res.Warnings {
		logger.Warn("%s", w)
	}
	return res, nil
}

// CreateEmbeddingProvider creates the provider named in settings, wrapped in
// a rate limiter when RatePerSecond is positive. Unset settings fall back to
// the built-in hash provider.
func CreateEmbeddingProvider(settings *domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	if settings == nil || settings.Provider == "" {
		return hash.New(0), nil
	}
	if !settings.IsConfigured() {
		if settings.Provider.RequiresAPIKey() {
			return nil, fmt.Errorf("%w: %s requires embedding.api_key", domain.ErrInvalidInput, settings.Provider)
		}
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrInvalidInput, settings.Provider)
	}

	var provider driven.EmbeddingProvider
	switch settings.Provider {
	case domain.AIProviderOllama:
		provider = ollama.New(ollama.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: modelDimensions(settings),
		})

	case domain.AIProviderOpenAI:
		p, err := openai.New(openai.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: modelDimensions(settings),
		})
		if err != nil {
			return nil, err
		}
		provider = p

	case domain.AIProviderHash:
		provider = hash.New(settings.Dimensions)
	}

	return ratelimit.Wrap(provider, ratelimit.Config{RequestsPerSecond: settings.RatePerSecond}), nil
}

// modelDimensions prefers the known size of the model over the configured
// value, which may still hold the default of another provider.
func modelDimensions(settings *domain.EmbeddingSettings) int {
	if dims, ok := domain.EmbeddingDimensions()[settings.Model]; ok {
		return dims
	}
	return settings.Dimensions
}

// ValidateEmbeddingConfig creates a provider and pings it.
// Used by the settings commands to check credentials when they are set.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	provider, err := CreateEmbeddingProvider(settings)
	if err != nil {
		return err
	}
	defer provider.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := provider.Ping(ctx); err != nil {
		return fmt.Errorf("embedding provider %s unreachable: %w", settings.Provider, err)
	}
	return nil
}

// CreateVectorIndex opens the backend named in settings.
func CreateVectorIndex(settings *domain.VectorIndexSettings, dataDir string) (driven.VectorIndexGateway, error) {
	if settings == nil {
		return nil, errors.New("vector index settings are required")
	}

	switch settings.Backend {
	case domain.VectorBackendMemory:
		return memory.New(settings.Dimensions), nil

	case domain.VectorBackendSQLiteVec, "":
		path := settings.Path
		if path == "" && dataDir != "" {
			path = filepath.Join(dataDir, VectorFileName)
		}
		return sqlitevec.New(sqlitevec.Config{Path: path, Dimensions: settings.Dimensions})

	case domain.VectorBackendQdrant:
		return qdrant.New(qdrant.Config{
			URL:        settings.URL,
			APIKey:     settings.APIKey,
			Dimensions: settings.Dimensions,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported vector backend %q", domain.ErrInvalidInput, settings.Backend)
	}
}

// CreateEventPublisher returns a Kafka publisher when events are enabled and
// a no-op publisher otherwise.
func CreateEventPublisher(settings *domain.EventSettings) (driven.EventPublisher, error) {
	if settings == nil || !settings.Enabled {
		return nop.Publisher{}, nil
	}
	p, err := kafka.New(kafka.Config{Brokers: settings.Brokers, Topic: settings.Topic})
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return p, nil
}
