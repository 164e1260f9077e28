package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/connectors/filesystem"
	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [collection] [dir]",
	Short: "Keep a collection in step with a directory",
	Long: `Uploads the files under a directory, then watches it and submits,
resubmits or deletes documents as files change. Files are keyed by their
path relative to the directory. Runs until interrupted.`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

var watchSkipInitial bool

func init() {
	watchCmd.Flags().BoolVar(&watchSkipInitial, "skip-initial", false, "do not upload existing files first")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	ctx := cmd.Context()
	col, err := ingestionService.ResolveCollection(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to find collection: %w", err)
	}

	var opts []filesystem.Option
	if len(supportedTypes) > 0 {
		opts = append(opts, filesystem.WithFilter(func(mimeType string) bool {
			return slices.Contains(supportedTypes, mimeType)
		}))
	}
	conn := filesystem.New(args[1], opts...)
	defer conn.Close()

	if err := conn.Validate(ctx); err != nil {
		return err
	}

	changes, err := conn.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", args[1], err)
	}

	if !watchSkipInitial {
		files, errs := conn.Walk(ctx)
		for f := range files {
			submitWatched(ctx, cmd, col.ID, f)
		}
		if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}
	}

	cmd.Printf("Watching %s for collection %s (Ctrl+C to stop)\n", conn.Root(), col.Name)

	for change := range changes {
		if change.Type == domain.ChangeDeleted {
			deleteWatched(ctx, cmd, col.ID, change.Upload.Key)
			continue
		}
		submitWatched(ctx, cmd, col.ID, change.Upload)
	}

	if ctx.Err() != nil {
		cmd.Println("Stopped watching.")
	}
	return nil
}

// submitWatched ingests one file. Failures are reported, not fatal.
func submitWatched(ctx context.Context, cmd *cobra.Command, collectionID string, upload domain.RawUpload) {
	doc, err := ingestionService.SubmitDocument(ctx, collectionID, upload)
	switch {
	case err != nil && doc == nil:
		cmd.Printf("  %s: %v\n", upload.Key, err)
	case err != nil:
		cmd.Printf("  %s: %s (%s)\n", upload.Key, doc.Status, doc.ErrorMessage)
	default:
		cmd.Printf("  %s: %s\n", upload.Key, doc.Status)
	}
}

// deleteWatched removes the document stored under key, if any.
func deleteWatched(ctx context.Context, cmd *cobra.Command, collectionID, key string) {
	docs, err := ingestionService.ListDocuments(ctx, collectionID)
	if err != nil {
		logger.Warn("watch: listing documents: %v", err)
		return
	}
	for i := range docs {
		if docs[i].Key != key {
			continue
		}
		if err := ingestionService.DeleteDocument(ctx, docs[i].ID); err != nil {
			cmd.Printf("  %s: delete failed: %v\n", key, err)
			return
		}
		cmd.Printf("  %s: deleted\n", key)
		return
	}
}
