package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file goblin looks for by default.
const FileName = "goblin.yaml"

// Config represents the top-level goblin.yaml configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Import    ImportConfig    `yaml:"import"`
	Detection DetectionConfig `yaml:"detection"`
	Spending  SpendingConfig  `yaml:"spending"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DatabaseConfig selects the store. For sqlite3 the DSN is a file path,
// relative to the config file.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ImportConfig controls CSV ingestion.
type ImportConfig struct {
	Dir        string `yaml:"dir"`
	Delimiters string `yaml:"delimiters"` // tried in order, e.g. ";,"
	Strict     bool   `yaml:"strict"`
	Atomic     bool   `yaml:"atomic"`
}

// DetectionConfig holds the subscription detection thresholds.
type DetectionConfig struct {
	MinConfidence  float64 `yaml:"min_confidence"`
	MinOccurrences int     `yaml:"min_occurrences"`
}

// SpendingConfig controls category rollup; negative depth = unlimited.
type SpendingConfig struct {
	Depth int `yaml:"depth"`
}

// LoggingConfig is passed to the zerolog setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// MetricsConfig enables the Prometheus textfile dump when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Load reads a goblin.yaml file from disk. Keys absent from the file keep
// their defaults, relative paths are resolved against the file's directory,
// and GOBLIN_* environment variables override the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults
// (with environment overrides) rooted at the file's directory.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.resolvePaths(filepath.Dir(path))
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "goblin.db",
		},
		Import: ImportConfig{
			Dir:        "import",
			Delimiters: ";,",
		},
		Detection: DetectionConfig{
			MinConfidence:  0.6,
			MinOccurrences: 2,
		},
		Spending: SpendingConfig{
			Depth: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is empty")
	}
	if c.Import.Delimiters == "" {
		return errors.New("import.delimiters is empty")
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		return fmt.Errorf("detection.min_confidence %v outside [0, 1]", c.Detection.MinConfidence)
	}
	if c.Detection.MinOccurrences < 2 {
		return fmt.Errorf("detection.min_occurrences %d below 2", c.Detection.MinOccurrences)
	}
	return nil
}

// DelimiterRunes splits Import.Delimiters into the runes to attempt.
// A tab is written as "\t" in double-quoted YAML.
func (c *Config) DelimiterRunes() []rune {
	return []rune(c.Import.Delimiters)
}

func (c *Config) resolvePaths(base string) {
	if base == "" || base == "." {
		return
	}
	if isSQLite(c.Database.Driver) && c.Database.DSN != ":memory:" {
		c.Database.DSN = resolve(base, c.Database.DSN)
	}
	c.Import.Dir = resolve(base, c.Import.Dir)
	if c.Metrics.Textfile != "" {
		c.Metrics.Textfile = resolve(base, c.Metrics.Textfile)
	}
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("GOBLIN_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("GOBLIN_DB_DSN", c.Database.DSN)
	c.Logging.Level = getEnv("GOBLIN_LOG_LEVEL", c.Logging.Level)
}

func isSQLite(driver string) bool {
	return strings.HasPrefix(strings.ToLower(driver), "sqlite")
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "file:") {
		return p
	}
	return filepath.Join(base, p)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
