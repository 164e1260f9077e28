package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

var (
	searchLimit     int
	searchJSON      bool
	searchDocuments []string
)

var searchCmd = &cobra.Command{
	Use:   "search [collection] [query]",
	Short: "Search a collection",
	Long: `Embeds the query and returns the nearest chunks of one collection,
with the heading path each chunk sits under.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringSliceVar(&searchDocuments, "doc", nil, "restrict results to these document ids")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil || ingestionService == nil {
		return errNotConfigured("search")
	}

	ctx := cmd.Context()
	col, err := ingestionService.ResolveCollection(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to find collection: %w", err)
	}

	var filter *domain.SearchFilter
	if len(searchDocuments) > 0 {
		filter = &domain.SearchFilter{DocumentIDs: searchDocuments}
	}

	results, err := searchService.SearchText(ctx, col.ID, args[1], searchLimit, filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		cmd.Printf("  [%d] %s #%d (%.2f)\n", i+1, results[i].DocumentID, results[i].ChunkIndex, results[i].Score)
		if len(results[i].TitleChain) > 0 {
			cmd.Printf("      %s\n", strings.Join(results[i].TitleChain, " > "))
		}
		cmd.Printf("      %s\n", snippet(results[i].Content, snippetLength))
		cmd.Println()
	}

	return nil
}

const snippetLength = 160

// snippet flattens whitespace and cuts s to at most n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
