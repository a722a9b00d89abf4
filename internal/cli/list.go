package cli

import (
	"fmt"
	"strings"

	"github.com/spetersoncode/skiller/internal/models"
	"github.com/spetersoncode/skiller/internal/service"
	"github.com/spf13/cobra"
)

var listHarness string

func init() {
	listCmd.Flags().StringVar(&listHarness, "harness", "", "Only list skills installed in this harness")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed skills",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func runList(cmd *cobra.Command, args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	svc, err := newInstallService(database, newGitHubClient())
	if err != nil {
		return err
	}
	installs, err := svc.List(listHarness)
	if err != nil {
		return err
	}

	if IsJSON() {
		if installs == nil {
			installs = []*models.Installation{}
		}
		return outputJSON(installs)
	}

	if len(installs) == 0 {
		OutputLine("No skills installed.")
		detected := service.DetectHarnesses(svc.Harnesses())
		if len(detected) == 0 {
			OutputLine("No harness detected; use 'skiller install --dest <dir>' to install elsewhere.")
		}
		return nil
	}

	if IsQuiet() {
		return nil
	}
	fmt.Printf("%-20s %-10s %-40s %-8s %s\n", "NAME", "HARNESS", "SOURCE", "COMMIT", "UPDATED")
	fmt.Println(strings.Repeat("-", 90))
	for _, inst := range installs {
		src := inst.FullName()
		if inst.Path != "" {
			src += ":" + inst.Path
		}
		if inst.Ref != "" {
			src += "@" + inst.Ref
		}
		fmt.Printf("%-20s %-10s %-40s %-8s %s\n",
			truncate(inst.Name, 20),
			truncate(inst.Harness, 10),
			truncate(src, 40),
			inst.ShortCommit(),
			formatAge(inst.UpdatedAt),
		)
	}
	return nil
}

// truncate shortens s to n characters, marking the cut with "...".
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
