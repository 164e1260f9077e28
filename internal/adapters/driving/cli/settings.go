package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

var settingsOnly = map[string]string{annotationSettingsOnly: "true"}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the embedding provider, the vector index backend,
sync tuning and the event stream.

Settings live in config.toml inside the configuration directory.`,
	Annotations: settingsOnly,
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show current settings",
	Annotations: settingsOnly,
	RunE:        runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set one setting",
	Long: `Set one dot-notation setting, for example:

  docsync settings set sync.max_retries 5
  docsync settings set events.brokers kafka-1:9092,kafka-2:9092

Run 'docsync settings keys' for the full list.`,
	Args:        cobra.ExactArgs(2),
	Annotations: settingsOnly,
	RunE:        runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:         "keys",
	Short:       "List setting keys",
	Args:        cobra.NoArgs,
	Annotations: settingsOnly,
	RunE:        runSettingsKeys,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:         "embedding",
	Short:       "Configure embedding provider",
	Long:        `Choose the embedding provider and model interactively, then check it answers.`,
	Annotations: settingsOnly,
	RunE:        runSettingsEmbedding,
}

var settingsVectorCmd = &cobra.Command{
	Use:   "vector [backend] [url]",
	Short: "Select the vector index backend",
	Long: `Select where vectors are stored:

  sqlitevec - local sqlite-vec file in the data directory (default)
  qdrant    - Qdrant server; url is host:port of its gRPC endpoint
  memory    - process memory, lost on exit`,
	Args:        cobra.RangeArgs(1, 2),
	Annotations: settingsOnly,
	RunE:        runSettingsVector,
}

// settingsInput is where interactive answers are read from. Tests replace it.
var settingsInput io.Reader = os.Stdin

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsVectorCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	if settings.Embedding.Model != "" {
		cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	}
	cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	if settings.Embedding.Provider == domain.AIProviderOllama || settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		if settings.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Embedding.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	if settings.Embedding.RatePerSecond > 0 {
		cmd.Printf("  Rate limit: %g/s\n", settings.Embedding.RatePerSecond)
	}
	status := "configured"
	if !settings.Embedding.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	cmd.Println("[Vector Index]")
	cmd.Printf("  Backend: %s\n", settings.VectorIndex.Backend.Description())
	cmd.Printf("  Dimensions: %d\n", settings.VectorIndex.Dimensions)
	if settings.VectorIndex.URL != "" {
		cmd.Printf("  URL: %s\n", settings.VectorIndex.URL)
	}
	if settings.VectorIndex.Path != "" {
		cmd.Printf("  Path: %s\n", settings.VectorIndex.Path)
	}
	cmd.Println()

	cmd.Println("[Sync]")
	cmd.Printf("  Max retries: %d\n", settings.Sync.MaxRetries)
	cmd.Printf("  Backoff: %s to %s\n", settings.Sync.BaseDelay, settings.Sync.MaxDelay)
	cmd.Printf("  Call timeout: %s\n", settings.Sync.CallTimeout)
	cmd.Printf("  Chunk concurrency: %d\n", settings.Sync.ChunkConcurrency)
	cmd.Printf("  Duplicate requests: %s\n", settings.Sync.QueuePolicy)
	cmd.Println()

	cmd.Println("[Batch]")
	cmd.Printf("  Concurrency: %d\n", settings.Batch.Concurrency)
	cmd.Printf("  Progress kept for: %s\n", settings.Batch.ProgressGrace)
	cmd.Println()

	cmd.Println("[Chunker]")
	cmd.Printf("  Size: %d\n", settings.Chunker.Size)
	cmd.Printf("  Overlap: %d\n", settings.Chunker.Overlap)
	cmd.Println()

	cmd.Println("[Events]")
	if settings.Events.Enabled {
		cmd.Printf("  Enabled: yes\n")
		cmd.Printf("  Brokers: %s\n", strings.Join(settings.Events.Brokers, ", "))
		cmd.Printf("  Topic: %s\n", settings.Events.Topic)
	} else {
		cmd.Printf("  Enabled: no\n")
	}
	cmd.Println()

	cmd.Println("[Scheduler]")
	cmd.Printf("  Reconcile every: %s\n", settings.Scheduler.ReconcileInterval)
	cmd.Printf("  Retry failed every: %s\n", settings.Scheduler.RetryInterval)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	if err := settingsService.SetValue(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("Set %s = %s\n", args[0], displayValue(args[0], args[1]))

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	}
	return nil
}

// displayValue masks secrets before echoing them.
func displayValue(key, value string) string {
	if strings.HasSuffix(key, "api_key") {
		return maskAPIKey(value)
	}
	return value
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	for _, k := range settingsService.Keys() {
		cmd.Println(k)
	}
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	reader := bufio.NewReader(settingsInput)
	return configureEmbeddingProvider(cmd, reader)
}

func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	var model string
	if defaultModel, ok := domain.DefaultEmbeddingModels()[selectedProvider]; ok {
		cmd.Printf("Enter model name [%s]: ", defaultModel)
		model = readLine(reader)
		if model == "" {
			model = defaultModel
		}
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(cmd.Context()); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	label := selectedProvider.Description()
	if model != "" {
		label += " (" + model + ")"
	}
	cmd.Printf("Embedding provider configured: %s\n", label)
	return nil
}

func runSettingsVector(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	backend := domain.VectorBackend(args[0])
	url := ""
	if len(args) > 1 {
		url = args[1]
	}

	if err := settingsService.SetVectorBackend(backend, url); err != nil {
		return fmt.Errorf("failed to set vector backend: %w", err)
	}

	cmd.Printf("Vector backend set to: %s\n", backend.Description())
	if backend != domain.VectorBackendMemory {
		cmd.Println("Existing points are not migrated; run 'docsync batch sync --collection <name>' to rebuild.")
	}
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, falling back to reader.
func readPassword(reader *bufio.Reader) string {
	if f, ok := settingsInput.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
