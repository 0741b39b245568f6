package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search the durable message history",
	Long: `Search all stored messages across every session, newest first.

Examples:
  recall search "deployment checklist"
  recall search error --limit 50`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	query := strings.Join(args, " ")
	results, err := st.Search(query, searchLimit)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matches found.")
		return nil
	}

	for _, msg := range results {
		fmt.Printf("[%s] %s  %s\n", msg.Timestamp.Format(time.RFC3339), msg.SessionID[:min(8, len(msg.SessionID))], msg.Role)
		fmt.Printf("  %s\n", excerpt(msg.Content, query, 120))
	}
	return nil
}

// excerpt returns a window of s around the first match of query.
func excerpt(s, query string, width int) string {
	idx := strings.Index(strings.ToLower(s), strings.ToLower(query))
	if idx < 0 {
		idx = 0
	}
	start := idx - width/4
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(s) {
		end = len(s)
	}
	out := strings.ReplaceAll(s[start:end], "\n", " ")
	if start > 0 {
		out = "..." + out
	}
	if end < len(s) {
		out += "..."
	}
	return out
}
