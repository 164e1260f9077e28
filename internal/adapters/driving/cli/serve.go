package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/logger"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the MCP server",
	Long: `Runs the background scheduler (periodic reconcile and retry of failed
documents) alongside the MCP server. Batches started over MCP keep running
here and stay pollable with batch_progress.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port for MCP (0 = use stdio)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Validate ports before starting background work.
	if _, err := newMCPServer(); err != nil {
		return err
	}

	if scheduler != nil {
		go func() {
			if err := scheduler.Start(cmd.Context()); err != nil {
				logger.Warn("scheduler stopped: %v", err)
			}
		}()
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Warn("scheduler stop: %v", err)
			}
		}()
	}

	return serveMCP(cmd, servePort)
}
