package main

import (
	"fmt"
	"os"

	"github.com/recall-oss/recall/internal/cli"
	recallErrors "github.com/recall-oss/recall/internal/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if suggestion := recallErrors.Suggestion(err); suggestion != "" {
			fmt.Fprintf(os.Stderr, "  → %s\n", suggestion)
		}
		os.Exit(1)
	}
}
