package cli

import (
	"context"

	"github.com/spetersoncode/skiller/internal/service"
	"github.com/spetersoncode/skiller/internal/source"
	"github.com/spf13/cobra"
)

var (
	installURL       string
	installRepo      string
	installPath      string
	installRef       string
	installHarnesses []string
	installDest      string
	installForce     bool
	installDryRun    bool
	installExclude   []string
)

func init() {
	installCmd.Flags().StringVar(&installURL, "url", "", "GitHub URL of the skill (repository, tree or blob URL)")
	installCmd.Flags().StringVar(&installRepo, "repo", "", "Repository as owner/name[@ref]")
	installCmd.Flags().StringVar(&installPath, "path", "", "Skill directory inside the repository (\".\" for the root)")
	installCmd.Flags().StringVar(&installRef, "ref", "", "Branch, tag or commit (default: the default branch)")
	installCmd.Flags().StringSliceVar(&installHarnesses, "harness", nil, "Harnesses to install into (default: configured targets, else all detected)")
	installCmd.Flags().StringVar(&installDest, "dest", "", "Install into this skills directory instead of a harness")
	installCmd.Flags().BoolVar(&installForce, "force", false, "Overwrite an existing installation (the old copy is backed up)")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "Fetch and validate, but write nothing")
	installCmd.Flags().StringSliceVar(&installExclude, "exclude", nil, "Glob patterns of files to skip (e.g. 'tests/**')")

	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install [url]",
	Short: "Install a skill from GitHub",
	Long: `Install a skill directory from a GitHub repository.

The source is either a GitHub URL or an explicit repository and path:

  skiller install --url https://github.com/acme/skills/tree/main/skills/pdf
  skiller install --url https://github.com/acme/skills --path skills/pdf
  skiller install --repo acme/skills --path skills/pdf --ref v1.2.0

A repository URL without a directory needs --path. A positional URL is the
same as --url. The skill is installed into every detected harness unless
--harness or --dest says otherwise.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: recorded,
	RunE:        runInstall,
}

func runInstall(cmd *cobra.Command, args []string) (err error) {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	var src source.Source
	defer func() {
		label := ""
		if src.Owner != "" {
			label = src.String()
		}
		recordAttempt(database, cmd, args, label, err)
	}()
	if configErr != nil {
		return configErr
	}

	url := installURL
	if len(args) == 1 {
		if url != "" {
			return ErrInvalidArgs("give the URL either as an argument or with --url, not both")
		}
		url = args[0]
	}
	if installDest != "" && len(installHarnesses) > 0 {
		return ErrInvalidArgs("--dest and --harness cannot be used together")
	}

	src, err = source.Resolve(source.Options{
		URL:  url,
		Repo: installRepo,
		Path: installPath,
		Ref:  installRef,
	})
	if err != nil {
		return err
	}

	svc, err := newInstallService(database, newGitHubClient())
	if err != nil {
		return err
	}

	VerboseOutput("Installing %s\n", src.String())
	result, err := svc.Install(context.Background(), service.InstallRequest{
		Source:    src,
		Harnesses: installHarnesses,
		Dest:      installDest,
		Force:     installForce,
		DryRun:    installDryRun,
		Exclude:   installExclude,
	})
	if err != nil {
		return err
	}

	if IsJSON() {
		return outputJSON(result)
	}

	verb := "Installed"
	if result.DryRun {
		verb = "Would install"
	}
	OutputLine("%s %s from %s (%s@%s)", verb, colorize(colorGreen, result.Name), src.FullName(), result.Ref, shortSHA(result.Commit))
	for _, t := range result.Targets {
		note := ""
		if t.Overwritten {
			note = " (replaced"
			if t.Backup != "" {
				note += ", backup at " + t.Backup
			}
			note += ")"
		}
		OutputLine("  %-10s %s%s", t.Harness, t.Path, note)
	}
	VerboseOutput("Files:\n")
	for _, f := range result.Files {
		VerboseOutput("  %s\n", f)
	}
	return nil
}
