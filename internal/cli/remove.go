package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var removeHarnesses []string

func init() {
	removeCmd.Flags().StringSliceVar(&removeHarnesses, "harness", nil, "Only remove from these harnesses (default: all)")
	rootCmd.AddCommand(removeCmd)
}

var removeCmd = &cobra.Command{
	Use:         "remove <name>",
	Aliases:     []string{"rm", "uninstall"},
	Short:       "Remove an installed skill",
	Args:        cobra.ExactArgs(1),
	Annotations: recorded,
	RunE:        runRemove,
}

type removeResult struct {
	Name    string   `json:"name"`
	Removed []string `json:"removed"`
}

func runRemove(cmd *cobra.Command, args []string) (err error) {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	name := args[0]
	label := name
	defer func() {
		recordAttempt(database, cmd, args, label, err)
	}()
	if configErr != nil {
		return configErr
	}

	svc, err := newInstallService(database, newGitHubClient())
	if err != nil {
		return err
	}
	removed, err := svc.Remove(context.Background(), name, removeHarnesses)
	if err != nil {
		return err
	}
	label = removed[0].FullName() + ":" + removed[0].Path

	result := removeResult{Name: name}
	for _, inst := range removed {
		result.Removed = append(result.Removed, inst.TargetDir)
	}

	if IsJSON() {
		return outputJSON(result)
	}
	for _, inst := range removed {
		OutputLine("Removed %s from %s (%s)", name, inst.Harness, inst.TargetDir)
	}
	return nil
}
