package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is the application version (set during build).
	Version = "dev"

	// Commit is the git commit hash (set during build).
	Commit = "unknown"

	// BuildDate is the build date (set during build).
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "scenario-runner",
	Short: "Natural-language browser scenario runner",
	Long: `Runs browser test scenarios written as natural-language steps. Element
targets are resolved on the live page with a vision model, resolved locators
are cached back onto the scenario, and every step is screenshotted.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
