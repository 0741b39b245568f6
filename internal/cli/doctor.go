package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/recall-oss/recall/internal/config"
	"github.com/recall-oss/recall/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment and configuration",
	Long:  "Validate that the configuration parses, the store directory is writable, and the history database opens.",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("recall doctor — checking your environment")
	fmt.Println()
	allOK := true

	// 1. Go version
	fmt.Printf("  Go version: %s", runtime.Version())
	fmt.Println(" ✓")

	// 2. OS/Arch
	fmt.Printf("  Platform:   %s/%s", runtime.GOOS, runtime.GOARCH)
	fmt.Println(" ✓")

	// 3. Configuration
	cfg, err := config.Load(configDir())
	if err != nil {
		fmt.Printf("  Config:     INVALID ✗\n")
		fmt.Printf("    → %v\n", err)
		allOK = false
	} else {
		name := cfg.Name
		if name == "" {
			name = "(defaults)"
		}
		fmt.Printf("  Config:     %s", name)
		fmt.Println(" ✓")
	}

	// 4. Store directory writable
	if cfg != nil {
		storePath := cfg.Store.Path
		if !filepath.IsAbs(storePath) {
			storePath = filepath.Join(configDir(), storePath)
		}
		dir := filepath.Dir(storePath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Printf("  Store dir:  NOT WRITABLE (%s) ✗\n", err)
			allOK = false
		} else {
			fmt.Printf("  Store dir:  %s", dir)
			fmt.Println(" ✓")
		}

		// 5. History database
		st, err := store.New(storePath, newLogger())
		if err != nil {
			fmt.Printf("  History DB: FAILED (%s) ✗\n", err)
			allOK = false
		} else {
			sessions, _ := st.Sessions()
			fmt.Printf("  History DB: %s (%d sessions)", storePath, len(sessions))
			fmt.Println(" ✓")
			st.Close()
		}

		// 6. Cache snapshot
		if cfg.Cache.Path == "" {
			fmt.Println("  Cache:      in-memory only ✓")
		} else {
			cachePath := cfg.Cache.Path
			if !filepath.IsAbs(cachePath) {
				cachePath = filepath.Join(configDir(), cachePath)
			}
			if _, err := os.Stat(cachePath); os.IsNotExist(err) {
				fmt.Printf("  Cache:      %s (no snapshot yet)", cachePath)
				fmt.Println(" ✓")
			} else {
				fmt.Printf("  Cache:      %s", cachePath)
				fmt.Println(" ✓")
			}
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See above for details.")
	}

	return nil
}
