package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mobiletoly/sqlitenow-go/analyze"
	"github.com/mobiletoly/sqlitenow-go/config"
	"github.com/mobiletoly/sqlitenow-go/generator"
	"github.com/mobiletoly/sqlitenow-go/loader"
	"github.com/mobiletoly/sqlitenow-go/resolve"
	"github.com/mobiletoly/sqlitenow-go/utils"
	"github.com/mobiletoly/sqlitenow-go/validator"
)

var configFile string
var dryRunGenerate bool

func init() {
	generateCmd.Flags().StringVarP(&configFile, "config", "c", config.DefaultFile, "Project config file to load")
	generateCmd.Flags().BoolVar(&dryRunGenerate, "dry-run", false, "Preview the rewritten SQL without writing files")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate typed Go code from annotated schema and queries",
	Long: `Generate typed Go data-access code.

Reads CREATE TABLE/VIEW definitions from the schema directory, named queries
from the queries directory, and writes generated Go code to the output
directory configured in sqlitenow.yaml.

Examples:
  sqlitenow generate                  # Use sqlitenow.yaml in the working dir
  sqlitenow generate -c custom.yaml   # Use a custom config file
  sqlitenow generate --dry-run        # Preview rewritten SQL only
`,
	Run: func(cmd *cobra.Command, args []string) {
		utils.LoadEnv()

		cfg, err := config.Load(utils.ConfigFile(configFile))
		if err != nil {
			fmt.Println("❌ Loading config:", err)
			os.Exit(1)
		}

		models, err := analyzeProject(cfg)
		if err != nil {
			fmt.Println("❌", err)
			os.Exit(1)
		}
		if len(models) == 0 {
			fmt.Println("✅ No queries found, nothing to generate.")
			return
		}

		if dryRunGenerate {
			fmt.Println("\n================ DRY RUN: Rewritten SQL ================")
			for _, m := range models {
				fmt.Printf("\n-- %s (%s) --\n", m.Statement.Name, m.Statement.Kind)
				fmt.Println(m.Rewrite.SQL)
				fmt.Println("-- parameters:", m.Rewrite.Parameters)
			}
			fmt.Println("========================================================")
			fmt.Println("(Dry run only. No files were written.)")
			return
		}

		filename, err := generator.Generate(models, cfg.Package, cfg.OutDir)
		if err != nil {
			fmt.Println("❌ Generating code:", err)
			os.Exit(1)
		}

		fmt.Println("✅ Code generated:", filename)
	},
}

func analyzeProject(cfg *config.Config) ([]*analyze.Model, error) {
	schemaSources, err := loader.LoadSchema(cfg.SchemaDir)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %v", err)
	}

	tables, _, err := validator.BuildSchema(schemaSources)
	if err != nil {
		return nil, fmt.Errorf("validating schema: %v", err)
	}
	ix := resolve.NewTableIndex(tables)

	queries, err := loader.LoadQueries(cfg.QueriesDir)
	if err != nil {
		return nil, fmt.Errorf("loading queries: %v", err)
	}

	var models []*analyze.Model
	for _, q := range queries {
		m, err := analyze.Statement(ix, q)
		if err != nil {
			return nil, fmt.Errorf("analyzing queries: %v", err)
		}
		models = append(models, m)
	}
	return models, nil
}
