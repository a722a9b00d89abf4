package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spetersoncode/skiller/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigShowRedactsToken(t *testing.T) {
	env := newCLIEnv(t)
	globalConfig.GitHubToken = "ghp_secret"

	stdout, _, err := env.run("config", "show")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "ghp_secret")
	assert.Contains(t, stdout, "github token:  (set)")
	assert.Contains(t, stdout, "* claude")

	stdout, _, err = env.run("--json", "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "ghp_secret")

	var show effectiveConfig
	require.NoError(t, json.Unmarshal([]byte(stdout), &show))
	assert.Equal(t, "(set)", show.Token)
	assert.Equal(t, env.dbPath, show.Database)
	assert.Equal(t, filepath.Join(env.home, ".claude", "skills"), show.Harnesses["claude"])
	assert.Equal(t, filepath.Join(env.home, ".config", "opencode", "skill"), show.Harnesses["opencode"])
}

func TestConfigInit(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.home, "custom", "config.toml")

	_, _, err := env.run("--config", path, "config", "init")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Skiller Configuration File")

	_, _, err = env.run("--config", path, "config", "init")
	require.Error(t, err)
	assert.Equal(t, ExitConflict, ExitCode(err))

	_, _, err = env.run("--config", path, "config", "init", "--force")
	require.NoError(t, err)
}

func TestInvalidConfigFile(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.home, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("targets = [unclosed"), 0644))

	_, _, err := env.run("--config", path, "list")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidArgs, ExitCode(err))
	assert.Contains(t, FormatErrorMessage(err), "skiller config init --force")
}

func TestInvalidConfigFileIsRecorded(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.home, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("targets = [unclosed"), 0644))

	_, _, err := env.run("--config", path, "install", "--repo", "acme/skills", "--path", "skills/pdf")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidArgs, ExitCode(err))
	assert.Contains(t, FormatErrorMessage(err), "skiller config init --force")

	_, _, err = env.run("--config", path, "probe", "acme/skills")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidArgs, ExitCode(err))

	attempts := env.attempts(t)
	require.Len(t, attempts, 2)
	assert.Equal(t, "probe", attempts[0].Command)
	assert.Equal(t, "install", attempts[1].Command)
	for _, a := range attempts {
		assert.Equal(t, models.OutcomeFailed, a.Outcome)
		assert.Equal(t, "InvalidArgs", a.ErrorKind)
		assert.Contains(t, a.Message, "failed to load config file")
	}

	// Commands that keep no ledger still fail up front.
	_, _, err = env.run("--config", path, "history")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidArgs, ExitCode(err))
	assert.Len(t, env.attempts(t), 2)
}

func TestInitAndVersion(t *testing.T) {
	env := newCLIEnv(t)
	cfgPath := filepath.Join(env.home, "skiller.toml")

	stdout, _, err := env.run("--config", cfgPath, "--json", "init")
	require.NoError(t, err)
	var result initResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.True(t, result.Created)
	assert.Equal(t, env.dbPath, result.Database)
	assert.Positive(t, result.Schema)
	assert.Equal(t, cfgPath, result.Config)
	assert.FileExists(t, cfgPath)

	_, _, err = env.run("--config", cfgPath, "init")
	require.Error(t, err)
	assert.Equal(t, ExitConflict, ExitCode(err))

	stdout, _, err = env.run("--json", "version")
	require.NoError(t, err)
	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, env.dbPath, info.Database)
	assert.Equal(t, result.Schema, info.Schema)
}
