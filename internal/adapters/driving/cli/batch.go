package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/connectors/filesystem"
	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run bulk operations",
	Long: `Bulk upload, delete and resync with per-item results.

By default a failed item does not affect the others. With --transactional,
the first failure stops the batch and every earlier success is undone.`,
}

var batchUploadCmd = &cobra.Command{
	Use:   "upload [collection] [dir]",
	Short: "Ingest every supported file under a directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runBatchUpload,
}

var batchDeleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete many documents or collections",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatchDelete,
}

var batchSyncCmd = &cobra.Command{
	Use:   "sync [doc-id...]",
	Short: "Resync many documents",
	Long:  `Resyncs the given documents, or every document of --collection.`,
	RunE:  runBatchSync,
}

var batchProgressCmd = &cobra.Command{
	Use:   "progress [batch-id]",
	Short: "Show the progress of a batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchProgress,
}

var batchHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished batches",
	Args:  cobra.NoArgs,
	RunE:  runBatchHistory,
}

// historyLookupLimit bounds the history scan behind "batch progress".
const historyLookupLimit = 1000

var (
	batchTransactional bool
	batchConcurrency   int
	batchDetach        bool

	batchDeleteCollections bool
	batchSyncCollection    string
	batchHistoryLimit      int
)

func init() {
	for _, c := range []*cobra.Command{batchUploadCmd, batchDeleteCmd, batchSyncCmd} {
		c.Flags().BoolVar(&batchTransactional, "transactional", false, "undo every success if any item fails")
		c.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel items (default from settings)")
		c.Flags().BoolVar(&batchDetach, "detach", false, "skip the progress display; print the batch id and final result")
	}
	batchDeleteCmd.Flags().BoolVar(&batchDeleteCollections, "collections", false, "arguments are collections, not documents")
	batchSyncCmd.Flags().StringVar(&batchSyncCollection, "collection", "", "resync every document of this collection")
	batchHistoryCmd.Flags().IntVarP(&batchHistoryLimit, "limit", "n", 20, "maximum number of batches")

	batchCmd.AddCommand(batchUploadCmd)
	batchCmd.AddCommand(batchDeleteCmd)
	batchCmd.AddCommand(batchSyncCmd)
	batchCmd.AddCommand(batchProgressCmd)
	batchCmd.AddCommand(batchHistoryCmd)
	rootCmd.AddCommand(batchCmd)
}

func batchOptions() driving.BatchRunOptions {
	return driving.BatchRunOptions{
		Concurrency:   batchConcurrency,
		Transactional: batchTransactional,
	}
}

func runBatchUpload(cmd *cobra.Command, args []string) error {
	if ingestionService == nil || batchService == nil {
		return errNotConfigured("batch")
	}

	ctx := cmd.Context()
	col, err := ingestionService.ResolveCollection(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to find collection: %w", err)
	}

	uploads, err := collectUploads(cmd, args[1])
	if err != nil {
		return err
	}
	if len(uploads) == 0 {
		cmd.Printf("No supported files under %s\n", args[1])
		return nil
	}

	cmd.Printf("Uploading %d files into %s...\n", len(uploads), col.Name)
	batchID, err := batchService.StartBatchUpload(ctx, col.ID, uploads, batchOptions())
	if err != nil {
		return fmt.Errorf("failed to start batch: %w", err)
	}
	return finishBatch(cmd, batchID)
}

// collectUploads reads every eligible file under dir.
func collectUploads(cmd *cobra.Command, dir string) ([]domain.RawUpload, error) {
	var opts []filesystem.Option
	if len(supportedTypes) > 0 {
		opts = append(opts, filesystem.WithFilter(func(mimeType string) bool {
			return slices.Contains(supportedTypes, mimeType)
		}))
	}
	conn := filesystem.New(dir, opts...)
	defer conn.Close()

	files, errs := conn.Walk(cmd.Context())
	var uploads []domain.RawUpload
	for f := range files {
		uploads = append(uploads, f)
	}
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	return uploads, nil
}

func runBatchDelete(cmd *cobra.Command, args []string) error {
	if batchService == nil {
		return errNotConfigured("batch")
	}

	req := domain.BatchDeleteRequest{Target: domain.DeleteDocuments, IDs: args}
	if batchDeleteCollections {
		req.Target = domain.DeleteCollections
	}

	batchID, err := batchService.StartBatchDelete(cmd.Context(), req, batchOptions())
	if err != nil {
		return fmt.Errorf("failed to start batch: %w", err)
	}
	return finishBatch(cmd, batchID)
}

func runBatchSync(cmd *cobra.Command, args []string) error {
	if batchService == nil {
		return errNotConfigured("batch")
	}

	ids := args
	if len(ids) == 0 {
		if batchSyncCollection == "" {
			return fmt.Errorf("%w: pass document ids or --collection", domain.ErrInvalidInput)
		}
		if ingestionService == nil {
			return errNotConfigured("ingestion")
		}
		ctx := cmd.Context()
		col, err := ingestionService.ResolveCollection(ctx, batchSyncCollection)
		if err != nil {
			return fmt.Errorf("failed to find collection: %w", err)
		}
		docs, err := ingestionService.ListDocuments(ctx, col.ID)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		for i := range docs {
			ids = append(ids, docs[i].ID)
		}
	}

	batchID, err := batchService.StartBatchSync(cmd.Context(), ids, batchOptions())
	if err != nil {
		return fmt.Errorf("failed to start batch: %w", err)
	}
	return finishBatch(cmd, batchID)
}

func finishBatch(cmd *cobra.Command, batchID string) error {
	if batchDetach {
		cmd.Printf("Batch %s started\n", batchID)
	}
	snap, err := followBatch(cmd, batchID, batchDetach)
	if err != nil {
		return err
	}
	return printBatchResult(cmd, snap)
}

func runBatchProgress(cmd *cobra.Command, args []string) error {
	if batchService == nil {
		return errNotConfigured("batch")
	}

	ctx := cmd.Context()
	batchID := args[0]

	snap, err := batchService.GetBatchProgress(ctx, batchID)
	if err == nil {
		cmd.Printf("Batch %s (%s): %s\n", snap.BatchID, snap.Kind, snap.Status)
		cmd.Printf("  Processed: %d/%d (%.0f%%)\n", snap.Processed, snap.Total, snap.Percentage)
		cmd.Printf("  Succeeded: %d\n", snap.Successful)
		cmd.Printf("  Failed:    %d\n", snap.Failed)
		if snap.Error != "" {
			cmd.Printf("  Error:     %s\n", snap.Error)
		}
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to get progress: %w", err)
	}

	// Live progress expires; finished batches stay in history.
	records, histErr := batchService.ListBatchHistory(ctx, historyLookupLimit)
	if histErr != nil {
		return fmt.Errorf("failed to list history: %w", histErr)
	}
	for i := range records {
		if records[i].ID == batchID {
			printBatchRecord(cmd, &records[i])
			return nil
		}
	}
	return fmt.Errorf("batch %s: %w", batchID, domain.ErrNotFound)
}

func runBatchHistory(cmd *cobra.Command, _ []string) error {
	if batchService == nil {
		return errNotConfigured("batch")
	}

	records, err := batchService.ListBatchHistory(cmd.Context(), batchHistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if len(records) == 0 {
		cmd.Println("No batches recorded.")
		return nil
	}

	for i := range records {
		printBatchRecord(cmd, &records[i])
	}
	return nil
}

func printBatchRecord(cmd *cobra.Command, rec *domain.BatchRecord) {
	cmd.Printf("%s  %-6s  %-21s  %d/%d ok  %s\n",
		rec.ID, rec.Kind, rec.Status, rec.Successful, rec.Total,
		rec.CompletedAt.Format(timeLayout))
	if rec.Error != "" {
		cmd.Printf("  Error: %s\n", rec.Error)
	}
}
