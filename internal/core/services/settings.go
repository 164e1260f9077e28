package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keySyncMaxRetries       = "sync.max_retries"
	keySyncBaseDelayMs      = "sync.base_delay_ms"
	keySyncMaxDelayMs       = "sync.max_delay_ms"
	keySyncCallTimeoutSecs  = "sync.call_timeout_seconds"
	keySyncChunkConcurrency = "sync.chunk_concurrency"
	keySyncQueuePolicy      = "sync.queue_policy"
	keyBatchConcurrency     = "batch.concurrency"
	keyBatchGraceSecs       = "batch.progress_grace_seconds"
	keyChunkerSize          = "chunker.size"
	keyChunkerOverlap       = "chunker.overlap"
	keyEmbedProvider        = "embedding.provider"
	keyEmbedModel           = "embedding.model"
	keyEmbedBaseURL         = "embedding.base_url"
	keyEmbedAPIKey          = "embedding.api_key"
	keyEmbedDims            = "embedding.dimensions"
	keyEmbedRate            = "embedding.rate_per_second"
	keyVectorBackend        = "vector_index.backend"
	keyVectorURL            = "vector_index.url"
	keyVectorAPIKey         = "vector_index.api_key"
	keyVectorDims           = "vector_index.dimensions"
	keyVectorPath           = "vector_index.path"
	keyEventsEnabled        = "events.enabled"
	keyEventsBrokers        = "events.brokers"
	keyEventsTopic          = "events.topic"
	keySchedulerEnabled     = "scheduler.enabled"
	keySchedulerReconcile   = "scheduler.reconcile_minutes"
	keySchedulerRetry       = "scheduler.retry_minutes"
)

// defaultOllamaURL is used when Ollama is selected without a base URL.
const defaultOllamaURL = "http://localhost:11434"

// defaultQdrantURL is used when Qdrant is selected without a URL.
const defaultQdrantURL = "localhost:6334"

// settingKind is the value type stored under a config key.
type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindBool
	kindFloat
	kindList
)

// settingKinds lists every key SetValue accepts.
var settingKinds = map[string]settingKind{
	keySyncMaxRetries:       kindInt,
	keySyncBaseDelayMs:      kindInt,
	keySyncMaxDelayMs:       kindInt,
	keySyncCallTimeoutSecs:  kindInt,
	keySyncChunkConcurrency: kindInt,
	keySyncQueuePolicy:      kindString,
	keyBatchConcurrency:     kindInt,
	keyBatchGraceSecs:       kindInt,
	keyChunkerSize:          kindInt,
	keyChunkerOverlap:       kindInt,
	keyEmbedProvider:        kindString,
	keyEmbedModel:           kindString,
	keyEmbedBaseURL:         kindString,
	keyEmbedAPIKey:          kindString,
	keyEmbedDims:            kindInt,
	keyEmbedRate:            kindFloat,
	keyVectorBackend:        kindString,
	keyVectorURL:            kindString,
	keyVectorAPIKey:         kindString,
	keyVectorDims:           kindInt,
	keyVectorPath:           kindString,
	keyEventsEnabled:        kindBool,
	keyEventsBrokers:        kindList,
	keyEventsTopic:          kindString,
	keySchedulerEnabled:     kindBool,
	keySchedulerReconcile:   kindInt,
	keySchedulerRetry:       kindInt,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	validator   driven.EmbeddingValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// SetValidator installs the validator used by ValidateEmbeddingConfig.
func (s *SettingsService) SetValidator(v driven.EmbeddingValidator) {
	s.validator = v
}

// Get retrieves current application settings, filling unset keys with defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Sync: domain.SyncSettings{
			MaxRetries:       s.getInt(keySyncMaxRetries, d.Sync.MaxRetries),
			BaseDelay:        s.getDuration(keySyncBaseDelayMs, time.Millisecond, d.Sync.BaseDelay),
			MaxDelay:         s.getDuration(keySyncMaxDelayMs, time.Millisecond, d.Sync.MaxDelay),
			CallTimeout:      s.getDuration(keySyncCallTimeoutSecs, time.Second, d.Sync.CallTimeout),
			ChunkConcurrency: s.getInt(keySyncChunkConcurrency, d.Sync.ChunkConcurrency),
			QueuePolicy:      s.getQueuePolicy(d.Sync.QueuePolicy),
		},
		Batch: domain.BatchSettings{
			Concurrency:   s.getInt(keyBatchConcurrency, d.Batch.Concurrency),
			ProgressGrace: s.getDuration(keyBatchGraceSecs, time.Second, d.Batch.ProgressGrace),
		},
		Chunker: domain.ChunkerSettings{
			Size:    s.getInt(keyChunkerSize, d.Chunker.Size),
			Overlap: s.getInt(keyChunkerOverlap, d.Chunker.Overlap),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:      s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:         s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:       s.getString(keyEmbedBaseURL, d.Embedding.BaseURL),
			APIKey:        s.getString(keyEmbedAPIKey, d.Embedding.APIKey),
			Dimensions:    s.getInt(keyEmbedDims, d.Embedding.Dimensions),
			RatePerSecond: s.getFloat(keyEmbedRate, d.Embedding.RatePerSecond),
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend:    s.getBackend(d.VectorIndex.Backend),
			URL:        s.getString(keyVectorURL, d.VectorIndex.URL),
			APIKey:     s.getString(keyVectorAPIKey, d.VectorIndex.APIKey),
			Path:       s.getString(keyVectorPath, d.VectorIndex.Path),
			Dimensions: s.getInt(keyVectorDims, d.VectorIndex.Dimensions),
		},
		Events: domain.EventSettings{
			Enabled: s.getBool(keyEventsEnabled, d.Events.Enabled),
			Brokers: s.configStore.GetStringSlice(keyEventsBrokers),
			Topic:   s.getString(keyEventsTopic, d.Events.Topic),
		},
		Scheduler: domain.SchedulerSettings{
			ReconcileInterval: s.getDuration(keySchedulerReconcile, time.Minute, d.Scheduler.ReconcileInterval),
			RetryInterval:     s.getDuration(keySchedulerRetry, time.Minute, d.Scheduler.RetryInterval),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keySyncMaxRetries, settings.Sync.MaxRetries},
		{keySyncBaseDelayMs, settings.Sync.BaseDelay.Milliseconds()},
		{keySyncMaxDelayMs, settings.Sync.MaxDelay.Milliseconds()},
		{keySyncCallTimeoutSecs, int64(settings.Sync.CallTimeout / time.Second)},
		{keySyncChunkConcurrency, settings.Sync.ChunkConcurrency},
		{keySyncQueuePolicy, string(settings.Sync.QueuePolicy)},
		{keyBatchConcurrency, settings.Batch.Concurrency},
		{keyBatchGraceSecs, int64(settings.Batch.ProgressGrace / time.Second)},
		{keyChunkerSize, settings.Chunker.Size},
		{keyChunkerOverlap, settings.Chunker.Overlap},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedRate, settings.Embedding.RatePerSecond},
		{keyVectorBackend, settings.VectorIndex.Backend.String()},
		{keyVectorURL, settings.VectorIndex.URL},
		{keyVectorDims, settings.VectorIndex.Dimensions},
		{keyVectorPath, settings.VectorIndex.Path},
		{keyEventsEnabled, settings.Events.Enabled},
		{keyEventsBrokers, settings.Events.Brokers},
		{keyEventsTopic, settings.Events.Topic},
		{keySchedulerReconcile, int64(settings.Scheduler.ReconcileInterval / time.Minute)},
		{keySchedulerRetry, int64(settings.Scheduler.RetryInterval / time.Minute)},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set so an empty form never wipes them.
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.VectorIndex.APIKey != "" {
		if err := s.configStore.Set(keyVectorAPIKey, settings.VectorIndex.APIKey); err != nil {
			return fmt.Errorf("save vector_index api_key: %w", err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: embedding provider %q", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.APIKey = apiKey

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	switch provider {
	case domain.AIProviderOllama:
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	default:
		// Cloud and built-in providers don't need a custom base URL
		settings.Embedding.BaseURL = ""
	}

	// Vector size follows the model; the index must match.
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}
	settings.VectorIndex.Dimensions = settings.Embedding.Dimensions

	return s.Save(settings)
}

// SetVectorBackend selects the vector index implementation.
func (s *SettingsService) SetVectorBackend(backend domain.VectorBackend, url string) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: vector backend %q", domain.ErrInvalidInput, backend)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.VectorIndex.Backend = backend
	switch backend {
	case domain.VectorBackendQdrant:
		if url == "" {
			url = defaultQdrantURL
		}
		settings.VectorIndex.URL = url
	default:
		settings.VectorIndex.URL = ""
	}

	return s.Save(settings)
}

// Validate checks the settings for inconsistencies.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider))
	}
	if settings.Embedding.Dimensions != settings.VectorIndex.Dimensions {
		errs = append(errs, fmt.Errorf("embedding dimensions %d do not match vector index dimensions %d",
			settings.Embedding.Dimensions, settings.VectorIndex.Dimensions))
	}
	if settings.Chunker.Overlap >= settings.Chunker.Size {
		errs = append(errs, fmt.Errorf("chunker overlap %d must be smaller than size %d",
			settings.Chunker.Overlap, settings.Chunker.Size))
	}
	if settings.Sync.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("sync max_retries must not be negative"))
	}
	if settings.Events.Enabled && len(settings.Events.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("events enabled without brokers"))
	}
	if settings.VectorIndex.Backend == domain.VectorBackendQdrant && settings.VectorIndex.URL == "" {
		errs = append(errs, fmt.Errorf("qdrant backend requires vector_index.url"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// ValidateEmbeddingConfig pings the configured embedding provider.
// Without a validator it only checks the settings are complete.
func (s *SettingsService) ValidateEmbeddingConfig(ctx context.Context) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured", domain.ErrInvalidInput, settings.Embedding.Provider)
	}
	if s.validator == nil {
		return nil
	}
	return s.validator.ValidateEmbedding(ctx, &settings.Embedding)
}

// SetValue parses raw according to the type of key and stores it.
// Unknown keys return domain.ErrInvalidInput.
func (s *SettingsService) SetValue(key, raw string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var value any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s expects an integer: %w", domain.ErrInvalidInput, key, err)
		}
		value = n
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %s expects true or false: %w", domain.ErrInvalidInput, key, err)
		}
		value = b
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: %s expects a number: %w", domain.ErrInvalidInput, key, err)
		}
		value = f
	case kindList:
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		value = items
	default:
		value = raw
	}

	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SettingKeys returns every key SetValue accepts, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Keys returns every key SetValue accepts, sorted.
func (s *SettingsService) Keys() []string {
	return SettingKeys()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// GetSchedulerConfig returns the scheduler configuration.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	settings, _ := s.Get()
	cfg := SchedulerConfigFromSettings(settings.Scheduler)
	cfg.Enabled = s.getBool(keySchedulerEnabled, cfg.Enabled)
	return cfg
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getInt distinguishes an explicit zero from an unset key.
func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return defaultVal
	}
}

// getDuration reads an integer key expressed in unit.
func (s *SettingsService) getDuration(key string, unit, defaultVal time.Duration) time.Duration {
	n := s.configStore.GetInt(key)
	if n <= 0 {
		return defaultVal
	}
	return time.Duration(n) * unit
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	backend := domain.VectorBackend(s.configStore.GetString(keyVectorBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getQueuePolicy(defaultVal domain.QueuePolicy) domain.QueuePolicy {
	switch p := domain.QueuePolicy(s.configStore.GetString(keySyncQueuePolicy)); p {
	case domain.QueueReject, domain.QueueWait:
		return p
	default:
		return defaultVal
	}
}
