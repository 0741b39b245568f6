package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
	Long: `List and delete sessions in the durable history.

Examples:
  recall sessions list
  recall sessions delete 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions, most recently active first",
	RunE:  runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and all of its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.Sessions()
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Println("Sessions:")
	fmt.Println("---------")
	for _, s := range sessions {
		fmt.Printf("%s  %4d messages  last active %s\n",
			s.SessionID,
			s.MessageCount,
			s.LastActive.Format(time.RFC3339),
		)
		if s.Workspace != "" {
			fmt.Printf("  workspace: %s\n", s.Workspace)
		}
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s\n", args[0])
	return nil
}
