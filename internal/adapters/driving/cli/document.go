package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/normalisers"
)

const timeLayout = "2006-01-02 15:04:05"

var submitCmd = &cobra.Command{
	Use:   "submit [collection] [file]",
	Short: "Ingest one file into a collection",
	Long: `Parses, chunks, embeds and indexes a file. Submitting again with the same
key replaces the previous version and only re-embeds chunks that changed.`,
	Args: cobra.ExactArgs(2),
	RunE: runSubmit,
}

var resyncCmd = &cobra.Command{
	Use:   "resync [doc-id]",
	Short: "Re-drive a document through the sync pipeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runResync,
}

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage ingested documents",
	Long:  `List, view, rename or delete the documents of a collection.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list [collection]",
	Short: "List documents of a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document status and chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentUpdateCmd = &cobra.Command{
	Use:   "update [doc-id]",
	Short: "Change document metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentUpdate,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its points",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var (
	submitKey  string
	submitName string
	submitMIME string

	documentShowContent bool

	updateName string
	updateKey  string
)

func init() {
	submitCmd.Flags().StringVar(&submitKey, "key", "", "logical key (default: the file path as given)")
	submitCmd.Flags().StringVar(&submitName, "name", "", "display name (default: the file name)")
	submitCmd.Flags().StringVar(&submitMIME, "mime", "", "content type (default: detected)")

	documentGetCmd.Flags().BoolVar(&documentShowContent, "content", false, "print the extracted text")

	documentUpdateCmd.Flags().StringVar(&updateName, "name", "", "new display name")
	documentUpdateCmd.Flags().StringVar(&updateKey, "key", "", "new logical key")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentUpdateCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(resyncCmd)
	rootCmd.AddCommand(documentCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	ctx := cmd.Context()
	col, err := ingestionService.ResolveCollection(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to find collection: %w", err)
	}

	path := args[1]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	upload := domain.RawUpload{
		Name:     submitName,
		Key:      submitKey,
		MIMEType: submitMIME,
		Content:  content,
	}
	if upload.Name == "" {
		upload.Name = filepath.Base(path)
	}
	if upload.Key == "" {
		upload.Key = filepath.ToSlash(path)
	}
	if upload.MIMEType == "" {
		upload.MIMEType = normalisers.DetectMIME(path, content)
	}

	doc, err := ingestionService.SubmitDocument(ctx, col.ID, upload)
	if doc != nil {
		printDocumentSummary(cmd, doc)
	}
	if err != nil {
		return fmt.Errorf("failed to submit document: %w", err)
	}
	return nil
}

func runResync(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	cmd.Printf("Resyncing document %s...\n", args[0])

	doc, err := ingestionService.ResyncDocument(cmd.Context(), args[0])
	if doc != nil {
		printDocumentSummary(cmd, doc)
	}
	if err != nil {
		return fmt.Errorf("failed to resync document: %w", err)
	}
	return nil
}

func printDocumentSummary(cmd *cobra.Command, doc *domain.Document) {
	cmd.Printf("Document %s: %s\n", doc.ID, doc.Status)
	if doc.ErrorMessage != "" {
		cmd.Printf("  Error: %s\n", doc.ErrorMessage)
	}
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	ctx := cmd.Context()
	col, err := ingestionService.ResolveCollection(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to find collection: %w", err)
	}

	docs, err := ingestionService.ListDocuments(ctx, col.ID)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Printf("No documents in collection: %s\n", col.Name)
		return nil
	}

	cmd.Printf("Documents in %s:\n\n", col.Name)
	for i := range docs {
		cmd.Printf("  %s  %s\n", docs[i].ID, docs[i].Status)
		cmd.Printf("    Name: %s\n", docs[i].Name)
		if docs[i].Key != "" {
			cmd.Printf("    Key:  %s\n", docs[i].Key)
		}
		if docs[i].ErrorMessage != "" {
			cmd.Printf("    Error: %s\n", docs[i].ErrorMessage)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	ctx := cmd.Context()
	doc, err := ingestionService.GetDocument(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if documentShowContent {
		cmd.Println(doc.Content)
		return nil
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Name:       %s\n", doc.Name)
	cmd.Printf("  Key:        %s\n", doc.Key)
	cmd.Printf("  Collection: %s\n", doc.CollectionID)
	cmd.Printf("  Type:       %s\n", doc.MIMEType)
	cmd.Printf("  Size:       %d bytes\n", doc.SizeBytes)
	cmd.Printf("  Status:     %s\n", doc.Status)
	if doc.ErrorMessage != "" {
		cmd.Printf("  Error:      %s\n", doc.ErrorMessage)
	}
	cmd.Printf("  Retries:    %d\n", doc.RetryCount)
	cmd.Printf("  Created:    %s\n", doc.CreatedAt.Format(timeLayout))
	cmd.Printf("  Updated:    %s\n", doc.UpdatedAt.Format(timeLayout))

	chunks, err := ingestionService.GetChunks(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}
	counts := make(map[domain.ChunkStatus]int)
	for i := range chunks {
		counts[chunks[i].Status]++
	}
	cmd.Printf("  Chunks:     %d (%d synced, %d failed)\n",
		len(chunks), counts[domain.ChunkSynced], counts[domain.ChunkFailed])

	return nil
}

func runDocumentUpdate(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	var patch domain.DocumentPatch
	if cmd.Flags().Changed("name") {
		patch.Name = &updateName
	}
	if cmd.Flags().Changed("key") {
		patch.Key = &updateKey
	}
	if patch.IsEmpty() {
		return fmt.Errorf("%w: nothing to update, pass --name or --key", domain.ErrInvalidInput)
	}

	doc, err := ingestionService.UpdateDocument(cmd.Context(), args[0], patch)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	cmd.Printf("Document %s updated.\n", doc.ID)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	if err := ingestionService.DeleteDocument(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}
