package main

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docsync/internal/adapters/driven/backend"
	"github.com/custodia-labs/docsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/docsync/internal/core/services"
	"github.com/custodia-labs/docsync/internal/logger"
	"github.com/custodia-labs/docsync/internal/normalisers"
	"github.com/custodia-labs/docsync/internal/normalisers/docx"
	"github.com/custodia-labs/docsync/internal/normalisers/eml"
	"github.com/custodia-labs/docsync/internal/normalisers/html"
	"github.com/custodia-labs/docsync/internal/normalisers/markdown"
	"github.com/custodia-labs/docsync/internal/normalisers/plaintext"
	"github.com/custodia-labs/docsync/internal/postprocessors/chunker"
)

// bootstrap wires stores, backends and services from the configuration directory.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	configDir := opts.ConfigDir
	if configDir == "" {
		dir, err := file.DefaultDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settingsService.SetValidator(backend.NewConfigValidator())

	if opts.SettingsOnly {
		return &cli.Services{Settings: settingsService}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = configDir
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("Metadata store at %s", store.Path())

	adapters, err := backend.Build(settings, dataDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build backends: %w", err)
	}

	registry := normalisers.NewRegistry(
		plaintext.New(),
		markdown.New(),
		html.New(),
		docx.New(),
		eml.New(),
	)
	chunks := chunker.New(
		chunker.WithChunkSize(settings.Chunker.Size),
		chunker.WithOverlap(settings.Chunker.Overlap),
	)

	collections := store.CollectionStore()
	documents := store.DocumentStore()
	jobs := store.SyncJobStore()

	syncConfig := services.SyncConfigFromSettings(settings.Sync)
	queue := services.NewSyncJobQueue(jobs, settings.Sync.QueuePolicy)
	if n, err := queue.RecoverOrphans(ctx); err != nil {
		logger.Warn("Could not recover interrupted sync jobs: %v", err)
	} else if n > 0 {
		logger.Info("Marked %d interrupted sync jobs as failed", n)
	}
	machine := services.NewSyncStateMachine(documents, chunks, adapters.Embedding, adapters.Index, syncConfig,
		services.WithEventPublisher(adapters.Events),
		services.WithJobStore(jobs),
	)

	ingestion := services.NewIngestionService(collections, documents, registry, adapters.Index, queue, machine)
	batch := services.NewBatchService(ingestion, collections, documents, adapters.Index,
		store.BatchHistoryStore(), adapters.Events,
		services.NewProgressRegistry(settings.Batch.ProgressGrace), settings.Batch.Concurrency)
	reconciler := services.NewReconciler(collections, documents, adapters.Index)
	scheduler := services.NewScheduler(settingsService.GetSchedulerConfig(), store.SchedulerStore(),
		reconciler, documents, ingestion, queue, syncConfig.Retry)

	return &cli.Services{
		Ingestion:          ingestion,
		Batch:              batch,
		Search:             services.NewSearchService(collections, adapters.Index, adapters.Embedding),
		Settings:           settingsService,
		Reconcile:          reconciler,
		Scheduler:          scheduler,
		SupportedMIMETypes: registry.SupportedMIMETypes(),
		Close: func() error {
			adapters.Close()
			return store.Close()
		},
	}, nil
}
