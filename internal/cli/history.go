package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spetersoncode/skiller/internal/db"
	"github.com/spetersoncode/skiller/internal/models"
	"github.com/spf13/cobra"
)

var (
	historyLimit   int
	historyCommand string
	historyFailed  bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	historyCmd.Flags().StringVar(&historyCommand, "command", "", "Only show attempts of this command (install, probe, update, remove)")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only show failed attempts")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded install, probe, update and remove attempts",
	Long: `Show the attempt ledger, newest first. Every install, probe, update and
remove invocation is recorded once with its outcome; failed attempts keep the
error kind, the message, the suggested next step and any diagnostic details
such as the proxy that refused a connection.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 0 {
		return ErrInvalidArgs("--limit cannot be negative")
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	filter := db.AttemptFilter{Command: historyCommand, Limit: historyLimit}
	if historyFailed {
		filter.Outcome = models.OutcomeFailed
	}
	attempts, err := db.NewAttemptRepo(database.DB).List(filter)
	if err != nil {
		return ErrDatabase(err, "failed to list attempts")
	}

	if IsJSON() {
		if attempts == nil {
			attempts = []*models.Attempt{}
		}
		return outputJSON(attempts)
	}

	if len(attempts) == 0 {
		OutputLine("No attempts recorded.")
		return nil
	}

	for _, a := range attempts {
		outcome := colorize(colorGreen, string(a.Outcome))
		if a.Outcome == models.OutcomeFailed {
			outcome = colorize(colorRed, string(a.Outcome))
		}
		fmt.Printf("#%-4d %-8s %-8s %s\n", a.ID, formatAge(a.CreatedAt), outcome, a.Args)
		if a.Outcome != models.OutcomeFailed {
			continue
		}
		fmt.Printf("      %s: %s\n", a.ErrorKind, a.Message)

		details, err := a.GetDetails()
		if err != nil {
			VerboseOutput("      (unreadable details: %v)\n", err)
			continue
		}
		if s, ok := details["suggestion"].(string); ok && s != "" {
			fmt.Printf("      Suggestion: %s\n", strings.ReplaceAll(s, "\n", "\n      "))
		}
		if IsVerbose() {
			for _, k := range sortedKeys(details) {
				if k == "suggestion" {
					continue
				}
				fmt.Printf("      %s = %v\n", k, details[k])
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
