package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear <session-id>",
	Short: "Delete a session's durable history",
	Long: `Remove every stored message for a session. This cannot be undone;
export the session first if you may need it again.

Examples:
  recall clear 1b4e28ba
  recall clear 1b4e28ba --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip confirmation")
}

func runClear(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := st.SessionStats(args[0])
	if err != nil {
		return err
	}

	if !clearYes {
		fmt.Printf("Delete %d messages from session %s? [y/N] ", summary.MessageCount, summary.SessionID)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := st.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Cleared session %s (%d messages)\n", args[0], summary.MessageCount)
	return nil
}
