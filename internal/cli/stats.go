package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <session-id>",
	Short: "Show statistics for a session",
	Long: `Display message counts, token totals and the time span of a session's
durable history.

Examples:
  recall stats 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := st.SessionStats(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Session %s\n", summary.SessionID)
	fmt.Printf("  Messages:     %d\n", summary.MessageCount)
	fmt.Printf("  Tokens (est): %d\n", summary.TotalTokens)
	fmt.Printf("  First:        %s\n", summary.FirstMessage.Format(time.RFC3339))
	fmt.Printf("  Last:         %s\n", summary.LastMessage.Format(time.RFC3339))
	fmt.Printf("  Span:         %s\n", summary.LastMessage.Sub(summary.FirstMessage).Round(time.Second))
	return nil
}
