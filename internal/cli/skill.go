package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spetersoncode/skiller/internal/service"
	"github.com/spetersoncode/skiller/internal/skill"
	"github.com/spf13/cobra"
)

var (
	skillForce     bool
	skillHarnesses []string
)

func init() {
	skillInstallCmd.Flags().BoolVar(&skillForce, "force", false, "Overwrite existing skill files")
	skillInstallCmd.Flags().StringSliceVar(&skillHarnesses, "harness", nil, "Harnesses to install into (default: all detected)")
	skillCmd.AddCommand(skillInstallCmd)
	rootCmd.AddCommand(skillCmd)
}

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Manage skiller's own agent skill",
}

var skillInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the skiller skill into detected harnesses",
	Long: `Install the skill that teaches agents how to use skiller, including how
to recover from a failed install. It is copied from the skiller binary, so no
network access is needed.`,
	Args: cobra.NoArgs,
	RunE: runSkillInstall,
}

type skillInstallResult struct {
	Harness     string   `json:"harness"`
	Path        string   `json:"path"`
	Files       []string `json:"files"`
	Overwritten bool     `json:"overwritten,omitempty"`
}

func runSkillInstall(cmd *cobra.Command, args []string) error {
	all, err := knownHarnesses()
	if err != nil {
		return err
	}

	var targets []service.Harness
	if len(skillHarnesses) > 0 {
		targets, err = service.SelectHarnesses(all, skillHarnesses)
		if err != nil {
			return err
		}
	} else {
		targets = service.DetectHarnesses(all)
	}
	if len(targets) == 0 {
		return ErrNotFoundWithSuggestion("Create the harness directory (e.g. ~/.claude) or pass --harness.",
			"no supported harness detected")
	}

	var results []skillInstallResult
	for _, h := range targets {
		res, err := installSkillToDir(filepath.Join(h.SkillsDir, skill.SelfName), skillForce)
		if err != nil {
			return err
		}
		res.Harness = h.Name
		results = append(results, *res)
	}

	if IsJSON() {
		return outputJSON(results)
	}
	for _, r := range results {
		verb := "Installed"
		if r.Overwritten {
			verb = "Updated"
		}
		OutputLine("%s %s skill for %s at %s (%d files)", verb, skill.SelfName, r.Harness, r.Path, len(r.Files))
	}
	return nil
}

// installSkillToDir copies the embedded skill files into targetDir.
func installSkillToDir(targetDir string, force bool) (*skillInstallResult, error) {
	existing, err := service.ListExistingFiles(targetDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, ErrGeneralWithCause(err, "failed to check existing files")
	}
	if len(existing) > 0 && !force {
		return nil, ErrConflictWithSuggestion("Use --force to overwrite.", "skill files already exist at %s", targetDir)
	}

	skillFS, err := skill.SelfFS()
	if err != nil {
		return nil, ErrGeneralWithCause(err, "failed to access embedded skill files")
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, ErrGeneralWithCause(err, "failed to create directory %s", targetDir)
	}

	var files []string
	err = fs.WalkDir(skillFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		dst := filepath.Join(targetDir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(dst, 0755)
		}
		if err := copyEmbeddedFile(skillFS, path, dst); err != nil {
			return fmt.Errorf("failed to copy %s: %w", path, err)
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, ErrGeneralWithCause(err, "failed to install skill files")
	}

	return &skillInstallResult{
		Path:        targetDir,
		Files:       files,
		Overwritten: len(existing) > 0,
	}, nil
}

// copyEmbeddedFile copies a file from the embedded FS to the target path
func copyEmbeddedFile(srcFS fs.FS, srcPath, dstPath string) error {
	src, err := srcFS.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
