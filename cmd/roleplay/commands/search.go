// ABOUTME: CLI command running the built-in DuckDuckGo web search
// ABOUTME: Uses the same executor the gateway offers to models as a tool
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchLimit int

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the web",
		Long: `Search the web with the built-in DuckDuckGo executor.

This is the same search characters can call as a tool during a turn.

Examples:
  roleplay search "medieval lantern oil"
  roleplay search --limit 3 --format json "tide tables"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum results to return (default from config)")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchLimit < 0 || searchLimit > 10 {
		return fmt.Errorf("limit must be between 1 and 10, got %d", searchLimit)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	limit := searchLimit
	if limit == 0 {
		limit = a.Config.Search.MaxResults
	}
	query := strings.Join(args, " ")

	results, err := a.Search.Search(cmd.Context(), query, limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if outputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), results)
	}
	if len(results) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No results found for query: %s\n", query)
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tURL")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, truncate(r.Title, 60), r.URL)
	}
	return w.Flush()
}
