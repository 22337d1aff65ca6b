package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mobiletoly/sqlitenow-go/config"
	"github.com/mobiletoly/sqlitenow-go/utils"
)

var validateConfigFile string

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "config", "c", config.DefaultFile, "Project config file to load")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate schema and queries without generating code",
	Long: `Validate the project end to end without writing generated code.

This command performs the full analysis pipeline:
- Executes every schema statement against an in-process SQLite engine
- Checks annotations against the introspected column lists
- Parses and rewrites every query's named parameters
- Plans every select's result mapping

Examples:
  sqlitenow validate                  # Validate the whole project
  sqlitenow validate -c custom.yaml   # Validate with a custom config file
`,
	Run: func(cmd *cobra.Command, args []string) {
		utils.LoadEnv()

		cfg, err := config.Load(utils.ConfigFile(validateConfigFile))
		if err != nil {
			fmt.Println("❌ Loading config:", err)
			os.Exit(1)
		}

		models, err := analyzeProject(cfg)
		if err != nil {
			color.Red("❌ %v", err)
			os.Exit(1)
		}

		for _, m := range models {
			status := color.GreenString("ok")
			if m.Plan != nil && len(m.Plan.Skipped) > 0 {
				status = color.YellowString("ok (skipped dynamic fields: %v)", m.Plan.Skipped)
			}
			fmt.Printf("  %s %s: %s\n", m.Statement.Kind, m.Statement.Name, status)
		}
		fmt.Printf("✅ %d statement(s) validated.\n", len(models))
	},
}
