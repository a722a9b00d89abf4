package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the loader reads, restoring them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SKILLER_DB", "SKILLER_NO_COLOR", "NO_COLOR",
		"GH_TOKEN", "GITHUB_TOKEN", "SKILLER_GITHUB_TOKEN",
		"SKILLER_API_URL", "SKILLER_CODELOAD_URL", "SKILLER_GIT_URL",
		"SKILLER_TIMEOUT", "SKILLER_MAX_RETRIES", "SKILLER_TARGETS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "", cfg.DB)
	assert.False(t, cfg.NoColor)
	assert.Equal(t, "https://api.github.com", cfg.APIURL)
	assert.Equal(t, "https://codeload.github.com", cfg.CodeloadURL)
	assert.Equal(t, "https://github.com", cfg.GitURL)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, 3, cfg.Backup.MaxCount)
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromPath("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromPath_ValidFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
db = "/custom/db/path.db"
no_color = true
github_token = "ghp_file"
timeout_seconds = 10
max_retries = 0
targets = ["claude", "opencode"]

[harness.myagent]
detect = "~/.myagent"
skills_dir = "~/.myagent/skills"

[backup]
enabled = false
max_count = 7
path = "/backups"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/custom/db/path.db", cfg.DB)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "ghp_file", cfg.GitHubToken)
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, []string{"claude", "opencode"}, cfg.Targets)
	assert.Equal(t, HarnessConfig{Detect: "~/.myagent", SkillsDir: "~/.myagent/skills"}, cfg.Harness["myagent"])
	assert.False(t, cfg.Backup.Enabled)
	assert.Equal(t, 7, cfg.Backup.MaxCount)
	assert.Equal(t, "/backups", cfg.BackupDir())
}

func TestLoadFromPath_PartialFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`max_retries = 5`), 0644))

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.Equal(t, "https://api.github.com", cfg.APIURL)
	assert.True(t, cfg.Backup.Enabled)
}

func TestLoadFromPath_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`invalid toml {{{{ content`), 0644))

	_, err := LoadFromPath(configPath)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
db = "/file/db/path.db"
github_token = "ghp_file"
timeout_seconds = 10
targets = ["claude"]
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	t.Setenv("SKILLER_DB", "/env/db/path.db")
	t.Setenv("GITHUB_TOKEN", "ghp_env")
	t.Setenv("SKILLER_TIMEOUT", "60")
	t.Setenv("SKILLER_TARGETS", "codex, openclaw ,")
	t.Setenv("SKILLER_API_URL", "http://localhost:9999")

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/env/db/path.db", cfg.DB)
	assert.Equal(t, "ghp_env", cfg.GitHubToken)
	assert.Equal(t, 60, cfg.TimeoutSeconds)
	assert.Equal(t, []string{"codex", "openclaw"}, cfg.Targets)
	assert.Equal(t, "http://localhost:9999", cfg.APIURL)
}

func TestEnvOverrides_TokenPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("GH_TOKEN", "gh")
	cfg, err := LoadFromPath("")
	require.NoError(t, err)
	assert.Equal(t, "gh", cfg.GitHubToken)

	t.Setenv("GITHUB_TOKEN", "github")
	cfg, err = LoadFromPath("")
	require.NoError(t, err)
	assert.Equal(t, "github", cfg.GitHubToken)

	t.Setenv("SKILLER_GITHUB_TOKEN", "skiller")
	cfg, err = LoadFromPath("")
	require.NoError(t, err)
	assert.Equal(t, "skiller", cfg.GitHubToken)
}

func TestEnvOverrides_NoColorAnyValue(t *testing.T) {
	for _, key := range []string{"SKILLER_NO_COLOR", "NO_COLOR"} {
		for _, val := range []string{"1", "anything", ""} {
			t.Run(key+"="+val, func(t *testing.T) {
				clearEnv(t)
				t.Setenv(key, val)
				cfg, err := LoadFromPath("")
				require.NoError(t, err)
				assert.True(t, cfg.NoColor)
			})
		}
	}
}

func TestEnvOverrides_InvalidNumbers(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("timeout_seconds = 45\nmax_retries = 2\n"), 0644))

	t.Setenv("SKILLER_TIMEOUT", "invalid")
	t.Setenv("SKILLER_MAX_RETRIES", "-1")
	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.TimeoutSeconds)
	assert.Equal(t, 2, cfg.MaxRetries)

	t.Setenv("SKILLER_TIMEOUT", "0")
	t.Setenv("SKILLER_MAX_RETRIES", "0")
	cfg, err = LoadFromPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.TimeoutSeconds)
	assert.Equal(t, 0, cfg.MaxRetries)
}

func TestTimeoutFallback(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestWriteConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "subdir", "config.toml")

	require.NoError(t, WriteConfigFile(configPath))

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Skiller Configuration File")

	// The sample must itself be valid TOML that loads to defaults.
	clearEnv(t)
	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSampleConfig(t *testing.T) {
	sample := SampleConfig()
	for _, want := range []string{"SKILLER_DB", "SKILLER_NO_COLOR", "GITHUB_TOKEN", "SKILLER_TIMEOUT", "SKILLER_MAX_RETRIES", "SKILLER_TARGETS", "[backup]"} {
		assert.Contains(t, sample, want)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	assert.Contains(t, path, ".skiller")
	assert.Contains(t, path, "config.toml")
}
