package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var importLegacy bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a session history from JSON",
	Long: `Load an exported session file into the durable store. If the session
id already exists, the messages are imported under a fresh id.

Examples:
  recall import session.json
  recall import --legacy old_history.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importLegacy, "legacy", false, "treat input as a legacy flat JSON message list")
}

func runImport(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var sessionID string
	var count int
	if importLegacy {
		sessionID, count, err = st.ImportLegacy(args[0])
	} else {
		var data []byte
		data, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}
		sessionID, count, err = st.Import(data)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d messages into session %s\n", count, sessionID)
	return nil
}
