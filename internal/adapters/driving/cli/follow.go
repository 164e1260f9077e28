package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docsync/internal/adapters/driving/tui"
	"github.com/custodia-labs/docsync/internal/core/domain"
)

// pollInterval paces plain progress polling. Tests shorten it.
var pollInterval = 250 * time.Millisecond

// followBatch waits for a batch to finish. Batches run inside this process,
// so the command has to stay alive until the final status either way.
func followBatch(cmd *cobra.Command, batchID string, quiet bool) (*domain.ProgressSnapshot, error) {
	ctx := cmd.Context()

	if !quiet && isTerminal(cmd.OutOrStdout()) {
		app, err := tui.NewApp(&tui.Ports{Batch: batchService}, batchID)
		if err != nil {
			return nil, err
		}
		app.WithContext(ctx)
		if err := app.Run(); err != nil {
			return nil, fmt.Errorf("progress view: %w", err)
		}
		if app.Err() != nil {
			return nil, app.Err()
		}
		if app.Done() {
			return app.Snapshot(), nil
		}
		cmd.Println("Waiting for the batch to finish...")
		quiet = true
	}

	return pollBatch(ctx, cmd, batchID, quiet)
}

// pollBatch polls until the batch is final, printing a line whenever
// the processed count moves unless quiet is set.
func pollBatch(ctx context.Context, cmd *cobra.Command, batchID string, quiet bool) (*domain.ProgressSnapshot, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastProcessed := -1
	for {
		snap, err := batchService.GetBatchProgress(ctx, batchID)
		if err != nil {
			return nil, fmt.Errorf("failed to get progress: %w", err)
		}
		if !quiet && snap.Processed != lastProcessed {
			cmd.Printf("  %d/%d processed (%d ok, %d failed)\n",
				snap.Processed, snap.Total, snap.Successful, snap.Failed)
			lastProcessed = snap.Processed
		}
		if snap.Status.IsFinal() {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			// Stop scheduling new items, then report whatever settled.
			if cancelErr := batchService.CancelBatch(context.WithoutCancel(ctx), batchID); cancelErr != nil &&
				!errors.Is(cancelErr, domain.ErrNotFound) {
				return nil, cancelErr
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// printBatchResult prints the outcome and turns anything short of full
// success into an error for the exit code.
func printBatchResult(cmd *cobra.Command, snap *domain.ProgressSnapshot) error {
	cmd.Printf("Batch %s %s: %d/%d succeeded, %d failed\n",
		snap.BatchID, snap.Status, snap.Successful, snap.Total, snap.Failed)

	if snap.Result != nil {
		for _, r := range snap.Result.Results {
			if !r.Success {
				cmd.Printf("  %s: %s\n", r.ID, r.Error)
			}
		}
	}

	switch snap.Status {
	case domain.BatchCompleted:
		return nil
	case domain.BatchFailed:
		if snap.Error != "" {
			return fmt.Errorf("batch failed: %s", snap.Error)
		}
		return errors.New("batch failed")
	case domain.BatchCancelled:
		return fmt.Errorf("batch %w", domain.ErrCancelled)
	default:
		return fmt.Errorf("batch completed with %d failed items", snap.Failed)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
