package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mobiletoly/sqlitenow-go/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new sqlitenow project",
	Long: `Initialize a new sqlitenow project in the current directory.

Creates sqlitenow.yaml plus the schema/ and queries/ directories with
annotated examples.

Examples:
  sqlitenow init
`,
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			fmt.Println("❌ sqlitenow.yaml already exists!")
			return
		}

		cfgContent := `# sqlitenow project configuration
schemaDir: schema
queriesDir: queries
outDir: gen
package: db
`
		schemaContent := `CREATE TABLE person (
    person_id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    -- @adapter type=time.Time
    birth_date TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
		queryContent := `-- @name=SelectAllPersons
SELECT person_id, name, birth_date FROM person;

-- @name=SelectPersonById
SELECT person_id, name, birth_date FROM person WHERE person_id = :id;

-- @name=InsertPerson
INSERT INTO person (name, birth_date) VALUES (:name, :birthDate)
RETURNING person_id;
`

		if err := os.WriteFile(config.DefaultFile, []byte(cfgContent), 0644); err != nil {
			fmt.Println("❌ Writing sqlitenow.yaml:", err)
			os.Exit(1)
		}
		examples := map[string]string{
			"schema":  schemaContent,
			"queries": queryContent,
		}
		for _, dir := range []string{"schema", "queries"} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				fmt.Println("❌ Creating", dir, "directory:", err)
				os.Exit(1)
			}
			path := filepath.Join(dir, "person.sql")
			if err := os.WriteFile(path, []byte(examples[dir]), 0644); err != nil {
				fmt.Println("❌ Writing example", path, ":", err)
				os.Exit(1)
			}
		}

		fmt.Println("✅ Project initialized. Edit schema/ and queries/, then run 'sqlitenow generate'.")
	},
}
