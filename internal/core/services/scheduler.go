package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
	"github.com/custodia-labs/docsync/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// schedulerHistoryKeep is the number of task results kept per task.
const schedulerHistoryKeep = 100

// schedulerTick is how often due tasks are checked.
const schedulerTick = time.Minute

// Scheduler manages background task execution.
// It is a pure core service with no external control API.
type Scheduler struct {
	config     domain.SchedulerConfig
	store      driven.SchedulerStore
	reconciler *Reconciler
	documents  driven.DocumentStore
	ingestion  driving.IngestionService
	queue      *SyncJobQueue
	retry      RetryPolicy
	now        func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	reconciler *Reconciler,
	documents driven.DocumentStore,
	ingestion driving.IngestionService,
	queue *SyncJobQueue,
	retry RetryPolicy,
) *Scheduler {
	return &Scheduler{
		config:     config,
		store:      store,
		reconciler: reconciler,
		documents:  documents,
		ingestion:  ingestion,
		queue:      queue,
		retry:      retry,
		now:        time.Now,
	}
}

// SchedulerConfigFromSettings builds the task table from application settings.
func SchedulerConfigFromSettings(s domain.SchedulerSettings) domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()
	if s.ReconcileInterval > 0 {
		cfg.TaskConfigs[domain.TaskIDReconcile] = domain.TaskConfig{Enabled: true, Interval: s.ReconcileInterval}
	}
	if s.RetryInterval > 0 {
		cfg.TaskConfigs[domain.TaskIDRetryFailed] = domain.TaskConfig{Enabled: true, Interval: s.RetryInterval}
	}
	return cfg
}

// Start begins the scheduler loop. This method blocks until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running tasks to complete
	s.wg.Wait()

	return nil
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	tasks := []struct{ id, name string }{
		{domain.TaskIDReconcile, "Orphan Point Reconcile"},
		{domain.TaskIDRetryFailed, "Retry Failed Documents"},
	}
	for _, t := range tasks {
		cfg := s.config.GetTaskConfig(t.id)
		if !cfg.Enabled {
			continue
		}
		if err := s.ensureTask(ctx, t.id, t.name, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  now.Add(cfg.Interval),
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = now.Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.Enabled {
			continue
		}
		if !task.NextRun.After(now) {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.RunTask(ctx, &task)
			}()
		}
	}
}

// RunTask executes a single task and records its outcome.
func (s *Scheduler) RunTask(ctx context.Context, task *domain.ScheduledTask) {
	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: s.now(),
	}

	var err error
	switch task.ID {
	case domain.TaskIDReconcile:
		result.ItemsProcessed, err = s.runReconcile(ctx)
	case domain.TaskIDRetryFailed:
		result.ItemsProcessed, err = s.runRetryFailed(ctx)
	default:
		logger.Warn("scheduler: unknown task ID: %s", task.ID)
		return
	}

	result.EndedAt = s.now()
	if err != nil {
		result.Error = err.Error()
		task.LastError = err.Error()
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
	}

	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)

	if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
	}
	if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
	}
	if pruneErr := s.store.PruneHistory(ctx, schedulerHistoryKeep); pruneErr != nil {
		logger.Warn("scheduler: failed to prune history: %v", pruneErr)
	}
}

// runReconcile deletes orphan points across all collections.
func (s *Scheduler) runReconcile(ctx context.Context) (int, error) {
	if s.reconciler == nil {
		return 0, nil
	}
	reports, err := s.reconciler.ReconcileAll(ctx)
	deleted := 0
	for _, r := range reports {
		deleted += r.OrphansDeleted
	}
	return deleted, err
}

// runRetryFailed resyncs documents left in failed or retrying whose backoff
// has elapsed. Documents with an active job are skipped.
func (s *Scheduler) runRetryFailed(ctx context.Context) (int, error) {
	if s.ingestion == nil || s.documents == nil {
		return 0, nil
	}

	var candidates []domain.Document
	for _, status := range []domain.DocumentStatus{domain.DocumentFailed, domain.DocumentRetrying} {
		docs, err := s.documents.ListDocumentsByStatus(ctx, status)
		if err != nil {
			return 0, fmt.Errorf("list %s documents: %w", status, err)
		}
		candidates = append(candidates, docs...)
	}

	now := s.now()
	resynced := 0
	for i := range candidates {
		doc := &candidates[i]
		if ctx.Err() != nil {
			return resynced, ctx.Err()
		}
		if s.queue != nil && s.queue.IsActive(doc.ID) {
			continue
		}
		if doc.UpdatedAt.Add(s.retry.Delay(doc.RetryCount + 1)).After(now) {
			continue
		}

		_, err := s.ingestion.ResyncDocument(ctx, doc.ID)
		switch {
		case err == nil:
			resynced++
		case errors.Is(err, domain.ErrSyncInProgress):
		default:
			logger.Debug("scheduler: retry of %s failed: %v", doc.ID, err)
		}
	}
	return resynced, nil
}
