// Package cli implements the docsync command line.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/core/ports/driving"
	"github.com/custodia-labs/docsync/internal/logger"
)

// annotationSkipBootstrap marks commands that need no services.
// annotationSettingsOnly marks commands that only need the settings service.
const (
	annotationSkipBootstrap = "docsync/skip-bootstrap"
	annotationSettingsOnly  = "docsync/settings-only"
)

var (
	version = "dev"

	configDir string
	dataDir   string
	verbose   bool

	ingestionService driving.IngestionService
	batchService     driving.BatchService
	searchService    driving.SearchService
	settingsService  driving.SettingsService
	reconcileService driving.ReconcileService
	scheduler        driving.Scheduler
	supportedTypes   []string

	bootstrap     BootstrapFunc
	closeServices func() error
)

// Options carries the global flags to the bootstrap function.
type Options struct {
	ConfigDir string
	DataDir   string
	Verbose   bool

	// SettingsOnly asks for the settings service alone, so a broken
	// backend configuration can still be inspected and fixed.
	SettingsOnly bool
}

// Services holds the driving ports the commands use. Any field may be nil;
// commands that need a missing service fail with "not configured".
type Services struct {
	Ingestion driving.IngestionService
	Batch     driving.BatchService
	Search    driving.SearchService
	Settings  driving.SettingsService
	Reconcile driving.ReconcileService
	Scheduler driving.Scheduler

	// SupportedMIMETypes limits directory ingestion to parseable files.
	// Empty accepts every file.
	SupportedMIMETypes []string

	// Close releases stores and backends. May be nil.
	Close func() error
}

// BootstrapFunc builds the services for one command invocation.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, error)

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Sync documents into a vector index",
	Long: `docsync ingests documents into named collections, splits them into
chunks, embeds each chunk and keeps a vector index in step with the store.

Single documents and bulk batches go through the same sync pipeline, with
retries, partial-success reporting and optional transactional rollback.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.docsync)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: the configuration directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap installs the function that builds services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices injects services directly, bypassing bootstrap.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	ingestionService = s.Ingestion
	batchService = s.Batch
	searchService = s.Search
	settingsService = s.Settings
	reconcileService = s.Reconcile
	scheduler = s.Scheduler
	supportedTypes = s.SupportedMIMETypes
	closeServices = s.Close
}

// Execute runs the root command and releases services afterwards.
func Execute(ctx context.Context) error {
	defer shutdown()
	return rootCmd.ExecuteContext(ctx)
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if bootstrap == nil || cmd.Annotations[annotationSkipBootstrap] != "" {
		return nil
	}

	services, err := bootstrap(cmd.Context(), Options{
		ConfigDir:    configDir,
		DataDir:      dataDir,
		Verbose:      verbose,
		SettingsOnly: cmd.Annotations[annotationSettingsOnly] != "",
	})
	if err != nil {
		return err
	}
	SetServices(services)
	return nil
}

func shutdown() {
	if closeServices == nil {
		return
	}
	if err := closeServices(); err != nil {
		logger.Warn("closing services: %v", err)
	}
	closeServices = nil
}

func errNotConfigured(what string) error {
	return errors.New(what + " service not configured")
}
