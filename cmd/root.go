package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sqlitenow",
	Short: "Typed Go data-access code from annotated SQLite schema and queries",
	Long: `sqlitenow analyzes annotated SQLite source files and generates typed
Go data-access code.

Examples:

  sqlitenow init
  sqlitenow validate
  sqlitenow generate
`,
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

// Register subcommands
func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
}
