package cli

import (
	"context"

	"github.com/spetersoncode/skiller/internal/service"
	"github.com/spetersoncode/skiller/internal/tasks"
	"github.com/spf13/cobra"
)

var updateAll bool

func init() {
	updateCmd.Flags().BoolVar(&updateAll, "all", false, "Update every outdated skill")
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update [name]",
	Short: "Update installed skills to the latest commit of their ref",
	Long: `Reinstall a skill at the latest commit of the branch or tag it was
installed from. The previous copy is backed up first. Skills installed at a
commit SHA are pinned and left alone.

  skiller update pdf
  skiller update --all`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: recorded,
	RunE:        runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) (err error) {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	label := ""
	defer func() {
		recordAttempt(database, cmd, args, label, err)
	}()
	if configErr != nil {
		return configErr
	}

	switch {
	case len(args) == 1 && updateAll:
		return ErrInvalidArgs("give a skill name or --all, not both")
	case len(args) == 0 && !updateAll:
		return ErrInvalidArgsWithSuggestion("Run 'skiller outdated' to see what can be updated.",
			"a skill name or --all is required")
	}

	client := newGitHubClient()
	svc, err := newInstallService(database, client)
	if err != nil {
		return err
	}
	ctx := context.Background()

	var results []*service.UpdateResult
	if updateAll {
		checker := tasks.NewUpdateChecker(database.DB, client, logger.Named("update"))
		check, cerr := checker.CheckAll(ctx, "")
		if cerr != nil {
			return ErrGeneralWithCause(cerr, "update check failed")
		}
		results, err = svc.UpdateOutdated(ctx, check)
	} else {
		label = args[0]
		results, err = svc.Update(ctx, args[0])
	}

	if IsJSON() {
		if jerr := outputJSON(results); jerr != nil {
			return jerr
		}
		return err
	}

	updated := 0
	for _, r := range results {
		switch {
		case r.Error != "":
			OutputLine("%s (%s): %s", r.Name, r.Harness, colorize(colorRed, r.Error))
		case r.Updated:
			updated++
			OutputLine("%s (%s): %s -> %s", r.Name, r.Harness, shortSHA(r.From), colorize(colorGreen, shortSHA(r.To)))
		case r.Pinned:
			VerboseOutput("%s (%s): pinned at %s\n", r.Name, r.Harness, shortSHA(r.From))
		default:
			VerboseOutput("%s (%s): up to date\n", r.Name, r.Harness)
		}
	}
	if err == nil {
		OutputLine("%d updated.", updated)
	}
	return err
}
