// Package config loads and validates the intra-hub configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/intrahub/internal/retry"
)

// Config represents the application configuration
type Config struct {
	Source SourceConfig `yaml:"source"`
	Data   DataConfig   `yaml:"data"`
	Site   SiteConfig   `yaml:"site"`
	Backup BackupConfig `yaml:"backup,omitempty"`
	Daemon DaemonConfig `yaml:"daemon"`
}

// SourceConfig describes the external content database connection.
type SourceConfig struct {
	Token          string      `yaml:"token"`
	DatabaseID     string      `yaml:"database_id"`
	TimeoutSeconds int         `yaml:"timeout_seconds,omitempty"`
	Retry          RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig configures backoff for transient source failures.
type RetryConfig struct {
	Backoff        string `yaml:"backoff,omitempty"` // fixed|linear|exponential
	InitialSeconds int    `yaml:"initial_seconds,omitempty"`
	MaxSeconds     int    `yaml:"max_seconds,omitempty"`
	MaxRetries     *int   `yaml:"max_retries,omitempty"`
}

// DataConfig locates durable pipeline state (ledger, cache, counters).
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// SiteConfig controls generated site output.
type SiteConfig struct {
	OutputDir string `yaml:"output_dir"`
	Title     string `yaml:"title,omitempty"`
	PageSize  int    `yaml:"page_size,omitempty"`
	SortOrder string `yaml:"sort_order,omitempty"` // newest|oldest
}

// BackupConfig controls the optional pre-sync snapshot of pipeline
// state and site output.
type BackupConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
	Keep    int    `yaml:"keep,omitempty"`
}

// DaemonConfig controls scheduled operation.
type DaemonConfig struct {
	IntervalMinutes int    `yaml:"interval_minutes,omitempty"`
	MetricsAddr     string `yaml:"metrics_addr,omitempty"` // e.g. ":9464", empty disables
}

// Timeout returns the per-call source timeout.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Policy converts the retry section into a retry.Policy.
func (r RetryConfig) Policy() retry.Policy {
	maxRetries := -1
	if r.MaxRetries != nil {
		maxRetries = *r.MaxRetries
	}
	return retry.NewPolicy(
		retry.BackoffMode(r.Backoff),
		time.Duration(r.InitialSeconds)*time.Second,
		time.Duration(r.MaxSeconds)*time.Second,
		maxRetries,
	)
}

// Interval returns the daemon sync interval.
func (d DaemonConfig) Interval() time.Duration {
	return time.Duration(d.IntervalMinutes) * time.Minute
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = 30
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "./data"
	}
	if c.Site.OutputDir == "" {
		c.Site.OutputDir = "./public"
	}
	if c.Site.Title == "" {
		c.Site.Title = "INTRA-HUB"
	}
	if c.Site.PageSize <= 0 {
		c.Site.PageSize = 10
	}
	if c.Site.SortOrder == "" {
		c.Site.SortOrder = "newest"
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "./backups"
	}
	if c.Backup.Keep <= 0 {
		c.Backup.Keep = 7
	}
	if c.Daemon.IntervalMinutes <= 0 {
		c.Daemon.IntervalMinutes = 1440 // daily
	}
}

// Validate checks fields required to run a sync cycle.
func (c *Config) Validate() error {
	if c.Source.Token == "" {
		return fmt.Errorf("source.token is required (set SOURCE_TOKEN in .env or environment)")
	}
	if c.Source.DatabaseID == "" {
		return fmt.Errorf("source.database_id is required")
	}
	if c.Site.SortOrder != "newest" && c.Site.SortOrder != "oldest" {
		return fmt.Errorf("site.sort_order must be \"newest\" or \"oldest\", got %q", c.Site.SortOrder)
	}
	return nil
}

const exampleConfig = `# intra-hub configuration
source:
  token: ${SOURCE_TOKEN}
  database_id: ${SOURCE_DATABASE_ID}
  timeout_seconds: 30
  retry:
    backoff: exponential
    initial_seconds: 1
    max_seconds: 30
    max_retries: 3

data:
  dir: ./data

site:
  output_dir: ./public
  title: INTRA-HUB
  page_size: 10
  sort_order: newest

backup:
  enabled: false
  dir: ./backups
  keep: 7

daemon:
  interval_minutes: 1440
  # metrics_addr: ":9464"
`

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
