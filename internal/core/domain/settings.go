package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderHash is the built-in deterministic feature-hashing embedder.
	AIProviderHash AIProvider = "hash"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderHash:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHash
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderHash:
		return "Feature hashing (built-in)"
	default:
		return unknownDescription
	}
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector index backends.
const (
	// VectorBackendMemory keeps vectors in process memory.
	VectorBackendMemory VectorBackend = "memory"

	// VectorBackendSQLiteVec stores vectors in a local sqlite-vec database.
	VectorBackendSQLiteVec VectorBackend = "sqlitevec"

	// VectorBackendQdrant talks to a Qdrant server over gRPC.
	VectorBackendQdrant VectorBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendMemory, VectorBackendSQLiteVec, VectorBackendQdrant:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b VectorBackend) Description() string {
	switch b {
	case VectorBackendMemory:
		return "In-memory (lost on exit)"
	case VectorBackendSQLiteVec:
		return "sqlite-vec (local file)"
	case VectorBackendQdrant:
		return "Qdrant (server)"
	default:
		return unknownDescription
	}
}

// AllVectorBackends returns the selectable backends.
func AllVectorBackends() []VectorBackend {
	return []VectorBackend{
		VectorBackendSQLiteVec,
		VectorBackendQdrant,
		VectorBackendMemory,
	}
}

// QueuePolicy decides what happens when a sync is requested for a document
// that already has an active job.
type QueuePolicy string

// Available queue policies.
const (
	// QueueReject fails the request with ErrSyncInProgress.
	QueueReject QueuePolicy = "reject"

	// QueueWait blocks until the active job finishes.
	QueueWait QueuePolicy = "wait"
)

// SyncSettings holds state machine tuning.
type SyncSettings struct {
	// MaxRetries is the number of retries before a document is dead.
	MaxRetries int

	// BaseDelay is the first retry delay.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// CallTimeout bounds each embedding or index call.
	CallTimeout time.Duration

	// ChunkConcurrency caps parallel embedding calls per document.
	ChunkConcurrency int

	// QueuePolicy applies to duplicate sync requests.
	QueuePolicy QueuePolicy
}

// BatchSettings holds batch engine configuration.
type BatchSettings struct {
	// Concurrency caps parallel items per batch.
	Concurrency int

	// ProgressGrace is how long finished progress stays pollable.
	ProgressGrace time.Duration
}

// ChunkerSettings holds chunker configuration.
type ChunkerSettings struct {
	Size    int
	Overlap int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size the provider returns.
	Dimensions int

	// RatePerSecond limits embedding calls. Zero disables limiting.
	RatePerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Backend selects the implementation.
	Backend VectorBackend

	// URL is the Qdrant address, host:port.
	URL string

	// APIKey authenticates against Qdrant.
	APIKey string

	// Path is the sqlite-vec database file.
	Path string

	// Dimensions is the embedding vector size.
	Dimensions int
}

// EventSettings holds sync event stream configuration.
type EventSettings struct {
	// Enabled turns on Kafka publishing.
	Enabled bool

	// Brokers is the Kafka bootstrap list.
	Brokers []string

	// Topic receives every sync event.
	Topic string
}

// SchedulerSettings holds intervals for the built-in tasks.
type SchedulerSettings struct {
	ReconcileInterval time.Duration
	RetryInterval     time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Sync        SyncSettings
	Batch       BatchSettings
	Chunker     ChunkerSettings
	Embedding   EmbeddingSettings
	VectorIndex VectorIndexSettings
	Events      EventSettings
	Scheduler   SchedulerSettings
}

// Default tuning values.
const (
	DefaultMaxRetries       = 3
	DefaultBaseDelay        = 500 * time.Millisecond
	DefaultMaxDelay         = 30 * time.Second
	DefaultCallTimeout      = 30 * time.Second
	DefaultChunkConcurrency = 4
	DefaultBatchConcurrency = 10
	DefaultProgressGrace    = 5 * time.Minute
	DefaultChunkSize        = 1000
	DefaultChunkOverlap     = 200
	DefaultEventTopic       = "docsync.sync-events"
)

// DefaultAppSettings returns settings with sensible defaults.
// The hash embedder and in-memory index let the tool run with no services.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Sync: SyncSettings{
			MaxRetries:       DefaultMaxRetries,
			BaseDelay:        DefaultBaseDelay,
			MaxDelay:         DefaultMaxDelay,
			CallTimeout:      DefaultCallTimeout,
			ChunkConcurrency: DefaultChunkConcurrency,
			QueuePolicy:      QueueReject,
		},
		Batch: BatchSettings{
			Concurrency:   DefaultBatchConcurrency,
			ProgressGrace: DefaultProgressGrace,
		},
		Chunker: ChunkerSettings{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderHash,
			Dimensions: 384,
		},
		VectorIndex: VectorIndexSettings{
			Backend:    VectorBackendSQLiteVec,
			Dimensions: 384,
		},
		Events: EventSettings{
			Topic: DefaultEventTopic,
		},
		Scheduler: SchedulerSettings{
			ReconcileInterval: 6 * time.Hour,
			RetryInterval:     5 * time.Minute,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderHash,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
