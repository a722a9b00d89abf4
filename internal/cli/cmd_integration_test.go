package cli

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spetersoncode/skiller/internal/config"
	"github.com/spetersoncode/skiller/internal/db"
	"github.com/spetersoncode/skiller/internal/github/githubtest"
	"github.com/spetersoncode/skiller/internal/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// captureOutput captures stdout and stderr during function execution
func captureOutput(fn func()) (string, string) {
	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()

	os.Stdout = wOut
	os.Stderr = wErr

	var wg sync.WaitGroup
	var stdout, stderr string

	wg.Add(2)
	go func() {
		defer wg.Done()
		out, _ := io.ReadAll(rOut)
		stdout = string(out)
	}()
	go func() {
		defer wg.Done()
		out, _ := io.ReadAll(rErr)
		stderr = string(out)
	}()

	fn()

	wOut.Close()
	wErr.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr
	wg.Wait()

	return stdout, stderr
}

// resetGlobalFlags restores every flag variable to its default and clears
// the changed state cobra keeps between executions.
func resetGlobalFlags() {
	dbPath = ""
	configPath = ""
	configErr = nil
	jsonOut = false
	quiet = false
	verbose = false
	noColor = false

	installURL = ""
	installRepo = ""
	installPath = ""
	installRef = ""
	installHarnesses = nil
	installDest = ""
	installForce = false
	installDryRun = false
	installExclude = nil

	probeHeads = false
	probeTags = false

	listHarness = ""
	removeHarnesses = nil
	updateAll = false

	historyLimit = 20
	historyCommand = ""
	historyFailed = false

	initForce = false
	configInitForce = false
	skillForce = false
	skillHarnesses = nil

	var resetChanged func(cmd *cobra.Command)
	resetChanged = func(cmd *cobra.Command) {
		cmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
		for _, c := range cmd.Commands() {
			resetChanged(c)
		}
	}
	resetChanged(rootCmd)
}

// cliEnv is an isolated home directory, database and fake GitHub for
// running commands end to end.
type cliEnv struct {
	home   string
	dbPath string
	server *githubtest.Server
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	resetGlobalFlags()

	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude"), 0755))
	for _, key := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy", "ALL_PROXY", "NO_PROXY", "no_proxy"} {
		t.Setenv(key, "")
	}

	srv := githubtest.NewServer(t)
	cfg := config.DefaultConfig()
	cfg.APIURL = srv.URL
	cfg.CodeloadURL = srv.URL
	cfg.GitURL = srv.URL
	cfg.MaxRetries = 0
	cfg.Backup.Path = filepath.Join(home, "backups")

	oldConfig, oldNewLogger := globalConfig, newLogger
	globalConfig = cfg
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
	t.Cleanup(func() {
		globalConfig, newLogger = oldConfig, oldNewLogger
		resetGlobalFlags()
	})

	return &cliEnv{
		home:   home,
		dbPath: filepath.Join(t.TempDir(), "skiller.db"),
		server: srv,
	}
}

// run executes skiller with args against the environment's database.
func (e *cliEnv) run(args ...string) (string, string, error) {
	resetGlobalFlags()
	var err error
	stdout, stderr := captureOutput(func() {
		rootCmd.SetArgs(append([]string{"--db", e.dbPath}, args...))
		err = rootCmd.Execute()
	})
	return stdout, stderr, err
}

// attempts returns the recorded attempts, newest first.
func (e *cliEnv) attempts(t *testing.T) []*models.Attempt {
	t.Helper()
	database, err := db.Open(e.dbPath)
	require.NoError(t, err)
	defer database.Close()

	attempts, err := db.NewAttemptRepo(database.DB).List(db.AttemptFilter{})
	require.NoError(t, err)
	return attempts
}
