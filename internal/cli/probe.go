package cli

import (
	"context"
	"strings"

	"github.com/spetersoncode/skiller/internal/github"
	"github.com/spetersoncode/skiller/internal/source"
	"github.com/spf13/cobra"
)

var (
	probeHeads bool
	probeTags  bool
)

func init() {
	probeCmd.Flags().BoolVar(&probeHeads, "heads", false, "Only list branches")
	probeCmd.Flags().BoolVar(&probeTags, "tags", false, "Only list tags")
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe <url|owner/name>",
	Short: "List the refs of a GitHub repository",
	Long: `List the branches and tags of a GitHub repository over git's smart HTTP
protocol, like 'git ls-remote'.

Probe is the quickest way to check that GitHub is reachable from this
machine. When a proxy refuses the connection the failure is reported as
blocked egress (exit code 8) together with the proxy that refused it.`,
	Args:        cobra.ExactArgs(1),
	Annotations: recorded,
	RunE:        runProbe,
}

type probeResult struct {
	Repository string             `json:"repository"`
	Proxy      string             `json:"proxy,omitempty"`
	Head       string             `json:"head,omitempty"`
	Refs       []github.RemoteRef `json:"refs"`
}

func runProbe(cmd *cobra.Command, args []string) (err error) {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	var src source.Source
	defer func() {
		label := ""
		if src.Owner != "" {
			label = src.FullName()
		}
		recordAttempt(database, cmd, args, label, err)
	}()
	if configErr != nil {
		return configErr
	}

	src, err = source.ParseTarget(args[0])
	if err != nil {
		return err
	}

	client := newGitHubClient()
	proxy := client.ProxyFor(GetConfig().GitURL)
	if proxy != "" {
		VerboseOutput("Using proxy %s\n", proxy)
	}

	refs, err := client.ListRemote(context.Background(), src)
	if err != nil {
		return err
	}

	result := probeResult{Repository: src.FullName(), Proxy: proxy, Head: refs.Head}
	for _, ref := range refs.Refs {
		if probeHeads || probeTags {
			if !(probeHeads && strings.HasPrefix(ref.Name, "refs/heads/")) &&
				!(probeTags && strings.HasPrefix(ref.Name, "refs/tags/")) {
				continue
			}
		}
		result.Refs = append(result.Refs, ref)
	}

	if IsJSON() {
		return outputJSON(result)
	}

	for _, ref := range result.Refs {
		OutputLine("%s\t%s", ref.Hash, ref.Name)
	}
	if len(result.Refs) == 0 {
		OutputLine("No refs found in %s", src.FullName())
	}
	return nil
}
