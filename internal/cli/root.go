package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spetersoncode/skiller/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Version information (set at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global flags
var (
	dbPath     string
	configPath string
	jsonOut    bool
	quiet      bool
	verbose    bool
	noColor    bool
)

// Global configuration (loaded once at startup, reloaded for --config)
var globalConfig *config.Config

// configErr is a --config load failure held back for commands that record
// attempts, so that they report it from RunE and it reaches the ledger.
var configErr error

// annotationRecorded marks commands that record an attempt per invocation.
const annotationRecorded = "skiller.recorded"

// recorded is the annotation set carried by recording commands.
var recorded = map[string]string{annotationRecorded: "true"}

func recordsAttempts(cmd *cobra.Command) bool {
	return cmd.Annotations[annotationRecorded] == "true"
}

// logger is the diagnostic logger. It writes to stderr and is replaced in
// PersistentPreRunE once the flags are known.
var logger = zap.NewNop()

// newLogger builds the diagnostic logger; tests swap it for a no-op.
var newLogger = buildLogger

// Exit codes
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitInvalidArgs   = 2
	ExitNotFound      = 3
	ExitInternalError = 5
	ExitConflict      = 6
	ExitNetworkError  = 7
	ExitEgressBlocked = 8
)

var rootCmd = &cobra.Command{
	Use:   "skiller",
	Short: "Install agent skills from GitHub",
	Long: `Skiller installs agent skills (directories with a SKILL.md) from GitHub
repositories into the skill directories of AI harnesses such as Claude Code,
OpenClaw, OpenCode and Codex.

  skiller install --url https://github.com/acme/skills/tree/main/skills/pdf
  skiller install --repo acme/skills --path skills/pdf
  skiller probe acme/skills

Every install, probe, remove and update is recorded; see "skiller history".`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configErr = nil
		if configPath != "" {
			cfg, err := config.LoadFromPath(configPath)
			if err != nil {
				configErr = ErrInvalidArgsWithSuggestion(SuggestConfigInit,
					"failed to load config file %s: %v", configPath, err)
				if !recordsAttempts(cmd) {
					return configErr
				}
			} else {
				globalConfig = cfg
			}
		}

		l, err := newLogger(verbose)
		if err != nil {
			return ErrGeneralWithCause(err, "failed to initialize logger")
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Sync fails harmlessly on stderr when it is a terminal.
		_ = logger.Sync()
	},
}

func init() {
	var err error
	globalConfig, err = config.Load()
	if err != nil {
		// If config file is invalid, print warning but continue with defaults
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
		globalConfig = config.DefaultConfig()
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database file (default ~/.skiller/skiller.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.skiller/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output and debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("skiller %s (%s, %s)\n", Version, shortCommit(), shortDate()))

	rootCmd.AddCommand(versionCmd)
}

// buildLogger returns a JSON logger on stderr at debug level when verbose,
// warn level otherwise.
func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// shortCommit returns the first 7 characters of the git commit hash
func shortCommit() string {
	if len(GitCommit) >= 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

// shortDate returns just the date portion of BuildDate (YYYY-MM-DD)
func shortDate() string {
	if len(BuildDate) >= 10 {
		return BuildDate[:10]
	}
	return BuildDate
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// GetDBPath returns the database path from flags, config, or default.
// Priority: flag > env > config file > default
func GetDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if globalConfig != nil {
		return globalConfig.GetDB()
	}
	return "" // Will use default in db.Open
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig != nil {
		return globalConfig
	}
	return config.DefaultConfig()
}

// IsJSON returns whether JSON output is requested
func IsJSON() bool {
	return jsonOut
}

// IsNoColor returns whether colored output should be disabled.
// Priority: flag > env > config file > default
func IsNoColor() bool {
	if noColor {
		return true
	}
	if globalConfig != nil {
		return globalConfig.NoColor
	}
	return false
}

// useColor reports whether stdout gets ANSI colors: only on a terminal and
// only when not disabled.
func useColor() bool {
	return !IsNoColor() && term.IsTerminal(int(os.Stdout.Fd()))
}

// IsQuiet returns whether quiet mode is enabled
func IsQuiet() bool {
	return quiet
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose
}

// Output prints to stdout unless quiet mode is enabled
func Output(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format, args...)
	}
}

// OutputLine prints a line to stdout unless quiet mode is enabled
func OutputLine(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// VerboseOutput prints to stdout only in verbose mode
func VerboseOutput(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Printf(format, args...)
	}
}

// ErrorOutput prints to stderr
func ErrorOutput(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// outputJSON prints v as indented JSON.
func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
