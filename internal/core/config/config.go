package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/aevon-lab/classgroup/internal/classgroup"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is the full run configuration: where the data lives and how to group it.
type Config struct {
	Dataset  DatasetConfig  `koanf:"dataset"`
	Database DatabaseConfig `koanf:"database"`
	Grouping GroupingConfig `koanf:"grouping"`
	Journal  JournalConfig  `koanf:"journal"`
}

type DatasetConfig struct {
	Backend string `koanf:"backend"` // postgres | memory
	Ref     string `koanf:"ref"`     // schema.table for postgres, dataset name for memory
	IDField string `koanf:"id_field"`
	Path    string `koanf:"path"` // fixture file, memory backend only
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type GroupingConfig struct {
	Fields        string `koanf:"fields"` // semicolon separated
	BaseName      string `koanf:"base_name"`
	FilterFalsy   bool   `koanf:"filter_falsy"`
	ChainOperator string `koanf:"chain_operator"`
	VerboseLimit  int64  `koanf:"verbose_limit"`
}

type JournalConfig struct {
	Enabled bool `koanf:"enabled"`
}

// FieldList splits grouping.fields on semicolons, dropping blanks.
func (g GroupingConfig) FieldList() []string {
	return classgroup.ParseFields(g.Fields)
}

func (c *Config) Validate() error {
	switch c.Dataset.Backend {
	case BackendPostgres:
		if strings.TrimSpace(c.Dataset.Ref) == "" {
			return fmt.Errorf("dataset.ref is required for the postgres backend")
		}
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres backend")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	case BackendMemory:
		if strings.TrimSpace(c.Dataset.Path) == "" {
			return fmt.Errorf("dataset.path is required for the memory backend")
		}
		if _, err := os.Stat(c.Dataset.Path); err != nil {
			return fmt.Errorf("dataset.path %q is not accessible: %w", c.Dataset.Path, err)
		}
		if c.Journal.Enabled {
			return fmt.Errorf("journal.enabled requires the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported dataset.backend %q (must be postgres or memory)", c.Dataset.Backend)
	}

	if strings.TrimSpace(c.Dataset.IDField) == "" {
		return fmt.Errorf("dataset.id_field is required")
	}
	if len(c.Grouping.FieldList()) == 0 {
		return fmt.Errorf("grouping.fields is required")
	}
	if strings.TrimSpace(c.Grouping.BaseName) == "" {
		return fmt.Errorf("grouping.base_name is required")
	}
	switch strings.ToUpper(strings.TrimSpace(c.Grouping.ChainOperator)) {
	case "AND", "OR":
	default:
		return fmt.Errorf("invalid grouping.chain_operator %q (must be AND or OR)", c.Grouping.ChainOperator)
	}
	if c.Grouping.VerboseLimit <= 0 {
		return fmt.Errorf("grouping.verbose_limit must be > 0")
	}

	return nil
}

// Load parses config from defaults, file, env and finally overrides (highest
// precedence, keyed like "grouping.fields"), then validates it.
func Load(configPath string, overrides map[string]string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"dataset.backend":         BackendPostgres,
		"dataset.ref":             "",
		"dataset.id_field":        "objectid",
		"dataset.path":            "",
		"database.dsn":            "",
		"database.max_open_conns": 4,
		"database.max_idle_conns": 4,
		"database.auto_migrate":   true,
		"grouping.fields":         "",
		"grouping.base_name":      "GROUP",
		"grouping.filter_falsy":   false,
		"grouping.chain_operator": "AND",
		"grouping.verbose_limit":  1000,
		"journal.enabled":         false,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("CLASSGROUP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CLASSGROUP_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	for key, value := range overrides {
		if value != "" {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
