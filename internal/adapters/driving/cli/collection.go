package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage collections",
	Long:  `Create, list and delete the named collections documents are ingested into.`,
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionCreate,
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	Args:  cobra.NoArgs,
	RunE:  runCollectionList,
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete [collection]",
	Short: "Delete a collection with its documents and points",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionDelete,
}

func init() {
	collectionCmd.AddCommand(collectionCreateCmd)
	collectionCmd.AddCommand(collectionListCmd)
	collectionCmd.AddCommand(collectionDeleteCmd)
	rootCmd.AddCommand(collectionCmd)
}

func runCollectionCreate(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	col, err := ingestionService.CreateCollection(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	cmd.Printf("Created collection %s (%s)\n", col.Name, col.ID)
	return nil
}

func runCollectionList(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	cols, err := ingestionService.ListCollections(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	if len(cols) == 0 {
		cmd.Println("No collections. Create one with 'docsync collection create <name>'.")
		return nil
	}

	cmd.Println("Collections:")
	cmd.Println()
	for i := range cols {
		cmd.Printf("  %s\n", cols[i].Name)
		cmd.Printf("    ID:      %s\n", cols[i].ID)
		cmd.Printf("    Created: %s\n", cols[i].CreatedAt.Format(timeLayout))
		cmd.Println()
	}
	cmd.Printf("Total: %d collections\n", len(cols))
	return nil
}

func runCollectionDelete(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	ctx := cmd.Context()
	col, err := ingestionService.ResolveCollection(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to find collection: %w", err)
	}

	if err := ingestionService.DeleteCollection(ctx, col.ID); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	cmd.Printf("Collection %s deleted.\n", col.Name)
	return nil
}
