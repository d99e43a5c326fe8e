package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFile = "chartedroots.yaml"

	EnvDatabaseDSN = "CHARTEDROOTS_DATABASE_DSN"
	EnvLogLevel    = "CHARTEDROOTS_LOG_LEVEL"
)

type ProjectConfig struct {
	Project    string            `yaml:"project" validate:"required"`
	Version    int               `yaml:"version" validate:"eq=1"`
	Vault      VaultConfig       `yaml:"vault"`
	Database   DatabaseConfig    `yaml:"database"`
	Aliases    map[string]string `yaml:"aliases"`
	Duplicates DuplicatesConfig  `yaml:"duplicates"`
	Ancestors  AncestorsConfig   `yaml:"ancestors"`
	Log        LogConfig         `yaml:"log"`

	// Dir is the directory the config was loaded from. Relative vault paths
	// resolve against it.
	Dir string `yaml:"-"`
}

type VaultConfig struct {
	Root         string   `yaml:"root" validate:"required"`
	Folders      []string `yaml:"folders"`
	Exclude      []string `yaml:"exclude"`
	PersonType   string   `yaml:"person_type"`
	PeopleFolder string   `yaml:"people_folder"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// DuplicatesConfig holds the duplicate matcher thresholds. Zero values take
// the defaults.
type DuplicatesConfig struct {
	MinNameSimilarity  float64 `yaml:"min_name_similarity" validate:"gte=0,lte=100"`
	MinConfidence      float64 `yaml:"min_confidence" validate:"gte=0,lte=100"`
	MaxYearDifference  int     `yaml:"max_year_difference" validate:"gte=0,lte=200"`
	SameCollectionOnly bool    `yaml:"same_collection_only"`
	Workers            int     `yaml:"workers" validate:"gte=0,lte=64"`
}

type AncestorsConfig struct {
	MaxGenerations int `yaml:"max_generations" validate:"gte=0,lte=30"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

const (
	DefaultMinNameSimilarity = 70
	DefaultMinConfidence     = 60
	DefaultMaxYearDifference = 5
	DefaultWorkers           = 1
	DefaultMaxGenerations    = 10
	DefaultPeopleFolder      = "People"
	DefaultPersonType        = "person"
)

var validate = validator.New()

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnv(&cfg, os.LookupEnv)
	applyDefaults(&cfg)

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}
	cfg.Dir = dir

	return &cfg, nil
}

// Default is the configuration written by init.
func Default(project string) *ProjectConfig {
	cfg := &ProjectConfig{
		Project: project,
		Version: 1,
		Vault: VaultConfig{
			Root:    ".",
			Exclude: []string{".obsidian", ".trash", "templates"},
		},
		Database: DatabaseConfig{DSN: "sqlite://.chartedroots/index.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
	applyDefaults(cfg)
	return cfg
}

// Marshal renders the config as YAML.
func (c *ProjectConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// VaultRoot returns the absolute vault root.
func (c *ProjectConfig) VaultRoot() string {
	return c.ResolvePath(c.Vault.Root)
}

func (c *ProjectConfig) ResolvePath(p string) string {
	if filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

func applyEnv(cfg *ProjectConfig, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDatabaseDSN); ok && strings.TrimSpace(v) != "" {
		cfg.Database.DSN = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
}

func applyDefaults(cfg *ProjectConfig) {
	if cfg.Vault.PersonType == "" {
		cfg.Vault.PersonType = DefaultPersonType
	}
	if cfg.Vault.PeopleFolder == "" {
		cfg.Vault.PeopleFolder = DefaultPeopleFolder
	}
	d := &cfg.Duplicates
	if d.MinNameSimilarity == 0 {
		d.MinNameSimilarity = DefaultMinNameSimilarity
	}
	if d.MinConfidence == 0 {
		d.MinConfidence = DefaultMinConfidence
	}
	if d.MaxYearDifference == 0 {
		d.MaxYearDifference = DefaultMaxYearDifference
	}
	if d.Workers == 0 {
		d.Workers = DefaultWorkers
	}
	if cfg.Ancestors.MaxGenerations == 0 {
		cfg.Ancestors.MaxGenerations = DefaultMaxGenerations
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.Vault.Root) == "" {
		return fmt.Errorf("vault root is required")
	}
	if err := validate.Struct(cfg); err != nil {
		return describe(err)
	}
	if cfg.Database.DSN != "" {
		if _, err := Backend(cfg.Database.DSN); err != nil {
			return err
		}
	}
	if err := validateAliases(cfg.Aliases); err != nil {
		return err
	}
	return nil
}

// Backend reports which index store a DSN selects: "sqlite" or "postgres".
func Backend(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid database dsn: %w", err)
	}
	switch u.Scheme {
	case "sqlite", "file":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported database scheme: %q", u.Scheme)
	}
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	messages := make([]string, 0, len(verrs))
	for _, e := range verrs {
		messages = append(messages, fmt.Sprintf("%s fails %s", e.Namespace(), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}
