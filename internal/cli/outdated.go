package cli

import (
	"context"
	"fmt"

	"github.com/spetersoncode/skiller/internal/tasks"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(outdatedCmd)
}

var outdatedCmd = &cobra.Command{
	Use:   "outdated [name]",
	Short: "Show installed skills with newer commits upstream",
	Long: `Compare the commit of every installed skill with the current commit of
its recorded branch or tag. Skills installed at a commit SHA are pinned and
never outdated. Repositories are queried concurrently, once each.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOutdated,
}

func runOutdated(cmd *cobra.Command, args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	name := ""
	if len(args) == 1 {
		name = args[0]
	}

	checker := tasks.NewUpdateChecker(database.DB, newGitHubClient(), logger.Named("outdated"))
	result, err := checker.CheckAll(context.Background(), name)
	if err != nil {
		return ErrGeneralWithCause(err, "update check failed")
	}

	if IsJSON() {
		return outputJSON(result)
	}

	if result.Checked == 0 {
		if name != "" {
			return ErrNotFoundWithSuggestion(SuggestListSkills, "skill %q is not installed", name)
		}
		OutputLine("No skills installed.")
		return nil
	}
	printStatuses(result)

	if result.Outdated == 0 && result.Errors == 0 {
		OutputLine("All %d installed skills are up to date.", result.Checked)
	} else if result.Outdated > 0 {
		OutputLine("\n%d outdated; run 'skiller update --all' to update.", result.Outdated)
	}
	return nil
}

func printStatuses(result *tasks.CheckResult) {
	if IsQuiet() {
		return
	}
	fmt.Printf("%-20s %-10s %-8s %-8s %s\n", "NAME", "HARNESS", "CURRENT", "LATEST", "STATUS")
	for _, st := range result.Statuses {
		inst := st.Installation
		status := colorize(colorGreen, "up to date")
		switch {
		case st.Pinned:
			status = "pinned"
		case st.Err != nil:
			status = colorize(colorRed, "error: "+st.ErrorMessage)
		case st.Outdated:
			status = colorize(colorYellow, "outdated")
		}
		fmt.Printf("%-20s %-10s %-8s %-8s %s\n",
			truncate(inst.Name, 20),
			truncate(inst.Harness, 10),
			inst.ShortCommit(),
			shortSHA(st.Latest),
			status,
		)
	}
}
