package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spetersoncode/skiller/internal/backup"
	"github.com/spetersoncode/skiller/internal/db"
	serrors "github.com/spetersoncode/skiller/internal/errors"
	"github.com/spetersoncode/skiller/internal/github"
	"github.com/spetersoncode/skiller/internal/models"
	"github.com/spetersoncode/skiller/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// openDB opens the state database, creating and migrating it on first use.
func openDB() (*db.DB, error) {
	database, err := db.OpenAndMigrate(GetDBPath())
	if err != nil {
		return nil, ErrDatabase(err, "failed to open database")
	}
	return database, nil
}

// newGitHubClient builds a GitHub client from the configuration.
func newGitHubClient() *github.Client {
	cfg := GetConfig()
	return github.NewClient(github.Options{
		APIURL:      cfg.APIURL,
		CodeloadURL: cfg.CodeloadURL,
		GitURL:      cfg.GitURL,
		Token:       cfg.GitHubToken,
		UserAgent:   "skiller/" + Version,
		Timeout:     cfg.Timeout(),
		MaxRetries:  cfg.MaxRetries,
		Logger:      logger.Named("github"),
	})
}

// knownHarnesses returns the built-in and configured harnesses.
func knownHarnesses() ([]service.Harness, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, ErrGeneralWithCause(err, "failed to get home directory")
	}
	return service.LoadHarnesses(home, GetConfig().Harness), nil
}

// newInstallService wires the install service to database and GitHub.
func newInstallService(database *db.DB, client *github.Client) (*service.InstallService, error) {
	harnesses, err := knownHarnesses()
	if err != nil {
		return nil, err
	}
	cfg := GetConfig()
	return service.NewInstallService(database.DB, client, service.InstallOptions{
		Harnesses: harnesses,
		Targets:   cfg.Targets,
		Backups:   backup.NewManager(cfg.BackupDir(), cfg.Backup),
		Logger:    logger.Named("install"),
	}), nil
}

// recordAttempt writes the single ledger entry for one invocation of cmd.
// A failure to record is logged, never returned, so it cannot mask err.
func recordAttempt(database *db.DB, cmd *cobra.Command, args []string, src string, err error) {
	attempt := &models.Attempt{
		Command: cmd.Name(),
		Args:    commandLine(cmd, args),
		Source:  src,
		Outcome: models.OutcomeSuccess,
		Message: "ok",
	}
	if err != nil {
		attempt.Outcome = models.OutcomeFailed
		attempt.ErrorKind = errorKind(err).String()
		attempt.Message = err.Error()

		details := map[string]interface{}{}
		var serr *serrors.Error
		if errors.As(err, &serr) {
			for k, v := range serr.Details {
				details[k] = v
			}
		}
		if s := errorSuggestion(err); s != "" {
			details["suggestion"] = s
		}
		details["exit_code"] = ExitCode(err)
		_ = attempt.SetDetails(details)
	}

	if rerr := db.NewAttemptRepo(database.DB).Record(attempt); rerr != nil {
		logger.Warn("failed to record attempt", zap.String("command", attempt.Command), zap.Error(rerr))
	}
}

// commandLine renders the invocation as it was typed: command path,
// changed flags and arguments.
func commandLine(cmd *cobra.Command, args []string) string {
	parts := []string{cmd.CommandPath()}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Value.Type() {
		case "bool":
			parts = append(parts, "--"+f.Name)
		case "stringSlice":
			vals, _ := cmd.Flags().GetStringSlice(f.Name)
			for _, v := range vals {
				parts = append(parts, "--"+f.Name, quoteArg(v))
			}
		default:
			parts = append(parts, "--"+f.Name, quoteArg(f.Value.String()))
		}
	})
	for _, a := range args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// formatAge returns a short age for a timestamp: "just now", "5m ago",
// "3h ago", "2d ago".
func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

const (
	colorRed    = "31"
	colorGreen  = "32"
	colorYellow = "33"
)

// colorize wraps s in an ANSI color when stdout is a colorable terminal.
func colorize(color, s string) string {
	if !useColor() {
		return s
	}
	return "\x1b[" + color + "m" + s + "\x1b[0m"
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
