package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [collection]",
	Short: "Remove index points no chunk refers to",
	Long: `Compares the points in the vector index with the stored chunks and
deletes the orphans. Without a collection, every collection is reconciled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if reconcileService == nil {
		return errNotConfigured("reconcile")
	}

	ctx := cmd.Context()

	if len(args) == 0 {
		reports, err := reconcileService.ReconcileAll(ctx)
		for i := range reports {
			printReconcileReport(cmd, reports[i])
		}
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		if len(reports) == 0 {
			cmd.Println("No collections to reconcile.")
		}
		return nil
	}

	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}
	col, err := ingestionService.ResolveCollection(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to find collection: %w", err)
	}

	report, err := reconcileService.Reconcile(ctx, col.ID)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	printReconcileReport(cmd, report)
	return nil
}

func printReconcileReport(cmd *cobra.Command, r domain.ReconcileReport) {
	cmd.Printf("Collection %s: %d points, %d chunks, %d orphans deleted",
		r.CollectionID, r.IndexPoints, r.KnownChunks, r.OrphansDeleted)
	if r.MissingPoints > 0 {
		cmd.Printf(", %d synced chunks missing from the index", r.MissingPoints)
	}
	cmd.Println()
}
