// Package config provides configuration file and environment variable support for skiller.
//
// Configuration priority (highest to lowest):
//  1. Command-line flags
//  2. Environment variables
//  3. Config file (~/.skiller/config.toml)
//  4. Built-in defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the skiller configuration.
type Config struct {
	// DB is the path to the state database.
	// Default: ~/.skiller/skiller.db
	DB string `toml:"db"`

	// NoColor disables colored output.
	NoColor bool `toml:"no_color"`

	// GitHubToken authenticates API requests (raises rate limits, private repos).
	GitHubToken string `toml:"github_token"`

	// APIURL is the GitHub REST API base URL.
	APIURL string `toml:"api_url"`

	// CodeloadURL serves repository archives.
	CodeloadURL string `toml:"codeload_url"`

	// GitURL serves the smart-HTTP ref advertisement used by probe.
	GitURL string `toml:"git_url"`

	// TimeoutSeconds bounds a single HTTP request.
	// Default: 30
	TimeoutSeconds int `toml:"timeout_seconds"`

	// MaxRetries is how many times transient failures are retried.
	// Default: 3
	MaxRetries int `toml:"max_retries"`

	// Targets lists the harnesses to install into when --harness is not given.
	// Empty means every detected harness.
	Targets []string `toml:"targets"`

	// Harness overrides or adds skill directories per harness name.
	Harness map[string]HarnessConfig `toml:"harness"`

	// Backup controls backups of skill directories replaced by --force.
	Backup BackupConfig `toml:"backup"`
}

// HarnessConfig configures one harness.
type HarnessConfig struct {
	// Detect is the directory whose presence means the harness is installed.
	Detect string `toml:"detect"`
	// SkillsDir is where skills are installed for this harness.
	SkillsDir string `toml:"skills_dir"`
}

// BackupConfig controls skill directory backups.
type BackupConfig struct {
	Enabled bool `toml:"enabled"`
	// MaxCount is the number of backups kept per skill and harness.
	MaxCount int `toml:"max_count"`
	// Path is the backup directory. Default: ~/.skiller/backups
	Path string `toml:"path"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DB:             "", // Empty means use db.DefaultDBPath
		APIURL:         "https://api.github.com",
		CodeloadURL:    "https://codeload.github.com",
		GitURL:         "https://github.com",
		TimeoutSeconds: 30,
		MaxRetries:     3,
		Backup: BackupConfig{
			Enabled:  true,
			MaxCount: 3,
		},
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".skiller", "config.toml")
}

// Load loads configuration from the default config file and environment variables.
func Load() (*Config, error) {
	return LoadFromPath(DefaultConfigPath())
}

// LoadFromPath loads configuration from a specific file path.
// Environment variables take precedence over file settings.
// Returns default config if the config file doesn't exist.
func LoadFromPath(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if _, err := toml.DecodeFile(configPath, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

// applyEnv applies environment variable overrides to the config.
func (c *Config) applyEnv() {
	if db := os.Getenv("SKILLER_DB"); db != "" {
		c.DB = db
	}

	// SKILLER_NO_COLOR and NO_COLOR - any value means true
	if _, ok := os.LookupEnv("SKILLER_NO_COLOR"); ok {
		c.NoColor = true
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.NoColor = true
	}

	// GH_TOKEN < GITHUB_TOKEN < SKILLER_GITHUB_TOKEN
	for _, key := range []string{"GH_TOKEN", "GITHUB_TOKEN", "SKILLER_GITHUB_TOKEN"} {
		if token := os.Getenv(key); token != "" {
			c.GitHubToken = token
		}
	}

	if v := os.Getenv("SKILLER_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("SKILLER_CODELOAD_URL"); v != "" {
		c.CodeloadURL = v
	}
	if v := os.Getenv("SKILLER_GIT_URL"); v != "" {
		c.GitURL = v
	}

	if v := os.Getenv("SKILLER_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("SKILLER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.MaxRetries = n
		}
	}

	if v := os.Getenv("SKILLER_TARGETS"); v != "" {
		var targets []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				targets = append(targets, t)
			}
		}
		c.Targets = targets
	}
}

// GetDB returns the database path, or empty to signal db.DefaultDBPath.
func (c *Config) GetDB() string {
	return c.DB
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackupDir returns the backup directory, defaulting to ~/.skiller/backups.
func (c *Config) BackupDir() string {
	if c.Backup.Path != "" {
		return c.Backup.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".skiller", "backups")
}

// SampleConfig returns a sample configuration file content.
func SampleConfig() string {
	return `# Skiller Configuration File
# Location: ~/.skiller/config.toml
#
# Configuration priority (highest to lowest):
#   1. Command-line flags
#   2. Environment variables (SKILLER_*)
#   3. This config file
#   4. Built-in defaults

# Path to the state database
# Default: ~/.skiller/skiller.db
# Environment: SKILLER_DB
# db = "/path/to/skiller.db"

# Disable colored output
# Environment: SKILLER_NO_COLOR or NO_COLOR (any value = true)
# no_color = false

# GitHub token for API requests
# Environment: SKILLER_GITHUB_TOKEN, GITHUB_TOKEN or GH_TOKEN
# github_token = ""

# Per-request timeout in seconds
# Default: 30
# Environment: SKILLER_TIMEOUT
# timeout_seconds = 30

# Retries for transient network failures (never for blocked egress)
# Default: 3
# Environment: SKILLER_MAX_RETRIES
# max_retries = 3

# Harnesses to install into when --harness is not given
# Default: every detected harness
# Environment: SKILLER_TARGETS (comma separated)
# targets = ["claude", "opencode"]

# Custom or overridden harness directories
# [harness.myagent]
# detect = "~/.myagent"
# skills_dir = "~/.myagent/skills"

# Backups of skill directories replaced with --force
# [backup]
# enabled = true
# max_count = 3
# path = "~/.skiller/backups"
`
}

// WriteConfigFile writes the sample config file to the specified path.
// Creates parent directories if needed.
func WriteConfigFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(SampleConfig()), 0644)
}
