package cli

import (
	"fmt"

	"github.com/spetersoncode/skiller/internal/config"
	"github.com/spetersoncode/skiller/internal/db"
	"github.com/spf13/cobra"
)

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the skiller configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if path == "" {
			return ErrInvalidArgs("cannot determine config path; use --config")
		}
		if fileExists(path) && !configInitForce {
			return ErrConflictWithSuggestion("Use --force to overwrite it.", "config file already exists at %s", path)
		}
		if err := config.WriteConfigFile(path); err != nil {
			return ErrGeneralWithCause(err, "failed to write config file")
		}
		if IsJSON() {
			return outputJSON(map[string]string{"config": path})
		}
		OutputLine("Wrote sample config to %s", path)
		return nil
	},
}

// effectiveConfig is the resolved configuration as shown by 'config show'.
type effectiveConfig struct {
	ConfigFile  string                          `json:"config_file"`
	Database    string                          `json:"database"`
	APIURL      string                          `json:"api_url"`
	CodeloadURL string                          `json:"codeload_url"`
	GitURL      string                          `json:"git_url"`
	Token       string                          `json:"github_token"`
	Timeout     string                          `json:"timeout"`
	MaxRetries  int                             `json:"max_retries"`
	Targets     []string                        `json:"targets"`
	Harnesses   map[string]string               `json:"harnesses"`
	Backup      config.BackupConfig             `json:"backup"`
	Custom      map[string]config.HarnessConfig `json:"custom_harnesses,omitempty"`
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after applying the config file and environment
variables. The GitHub token is never printed, only whether one is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		harnesses, err := knownHarnesses()
		if err != nil {
			return err
		}

		show := effectiveConfig{
			ConfigFile:  configPath,
			Database:    db.ResolvePath(GetDBPath()),
			APIURL:      cfg.APIURL,
			CodeloadURL: cfg.CodeloadURL,
			GitURL:      cfg.GitURL,
			Token:       redact(cfg.GitHubToken),
			Timeout:     cfg.Timeout().String(),
			MaxRetries:  cfg.MaxRetries,
			Targets:     cfg.Targets,
			Harnesses:   map[string]string{},
			Backup:      cfg.Backup,
			Custom:      cfg.Harness,
		}
		if show.ConfigFile == "" {
			show.ConfigFile = config.DefaultConfigPath()
		}
		show.Backup.Path = cfg.BackupDir()
		for _, h := range harnesses {
			show.Harnesses[h.Name] = h.SkillsDir
		}

		if IsJSON() {
			return outputJSON(show)
		}

		fmt.Printf("config file:   %s\n", show.ConfigFile)
		fmt.Printf("database:      %s\n", show.Database)
		fmt.Printf("api url:       %s\n", show.APIURL)
		fmt.Printf("codeload url:  %s\n", show.CodeloadURL)
		fmt.Printf("git url:       %s\n", show.GitURL)
		fmt.Printf("github token:  %s\n", show.Token)
		fmt.Printf("timeout:       %s\n", show.Timeout)
		fmt.Printf("max retries:   %d\n", show.MaxRetries)
		if len(show.Targets) > 0 {
			fmt.Printf("targets:       %v\n", show.Targets)
		} else {
			fmt.Printf("targets:       (all detected)\n")
		}
		fmt.Printf("backups:       enabled=%t max=%d path=%s\n", show.Backup.Enabled, show.Backup.MaxCount, show.Backup.Path)
		fmt.Println("harnesses:")
		for _, h := range harnesses {
			mark := " "
			if h.Detected() {
				mark = "*"
			}
			fmt.Printf("  %s %-10s %s\n", mark, h.Name, h.SkillsDir)
		}
		return nil
	},
}

func redact(token string) string {
	if token == "" {
		return "(not set)"
	}
	return "(set)"
}
