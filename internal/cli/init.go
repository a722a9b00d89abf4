package cli

import (
	"os"

	"github.com/spetersoncode/skiller/internal/config"
	"github.com/spetersoncode/skiller/internal/db"
	"github.com/spf13/cobra"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing database")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize skiller for first-time use",
	Long: `Initialize skiller by creating the ~/.skiller/ directory and database.

This command:
- Creates ~/.skiller/ directory if it doesn't exist
- Creates skiller.db with the database schema
- Writes a sample config.toml if there is none

Other commands create the database on first use, so init is optional.
Use --force to overwrite an existing database (installed skills are kept on
disk, but their records and the attempt history are lost).`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

type initResult struct {
	Database string `json:"database"`
	Created  bool   `json:"created"`
	Schema   int64  `json:"schema_version"`
	Config   string `json:"config,omitempty"`
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetDBPath()

	if db.Exists(path) && !initForce {
		if IsJSON() {
			return outputJSON(initResult{Database: db.ResolvePath(path), Created: false})
		}
		return ErrConflictWithSuggestion("Use --force to recreate it.",
			"database already exists at %s", db.ResolvePath(path))
	}

	if initForce && db.Exists(path) {
		VerboseOutput("Removing existing database...\n")
		if err := db.Delete(path); err != nil {
			return ErrDatabase(err, "failed to remove existing database")
		}
	}

	VerboseOutput("Creating database...\n")
	database, err := db.OpenAndMigrate(path)
	if err != nil {
		return ErrDatabase(err, "failed to create database")
	}
	defer database.Close()

	version, err := database.MigrationStatus()
	if err != nil {
		return ErrDatabase(err, "failed to get migration status")
	}

	result := initResult{Database: database.Path(), Created: true, Schema: version}

	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	if cfgPath != "" && !fileExists(cfgPath) {
		if err := config.WriteConfigFile(cfgPath); err != nil {
			return ErrGeneralWithCause(err, "failed to write config file")
		}
		result.Config = cfgPath
	}

	if IsJSON() {
		return outputJSON(result)
	}

	OutputLine("Initialized skiller database at %s", result.Database)
	OutputLine("Schema version: %d", version)
	if result.Config != "" {
		OutputLine("Wrote sample config to %s", result.Config)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
