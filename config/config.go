package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the sqlitenow.yaml project file.
type Config struct {
	SchemaDir  string `yaml:"schemaDir"`
	QueriesDir string `yaml:"queriesDir"`
	OutDir     string `yaml:"outDir"`
	Package    string `yaml:"package"`
}

// DefaultFile is the config filename looked up in the working directory.
const DefaultFile = "sqlitenow.yaml"

// Load reads the project config, applying defaults for absent keys. A
// missing file yields the pure defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		SchemaDir:  "schema",
		QueriesDir: "queries",
		OutDir:     "gen",
		Package:    "db",
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultFile {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %v", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling %s: %v", path, err)
	}
	if cfg.Package == "" {
		cfg.Package = "db"
	}
	return cfg, nil
}
