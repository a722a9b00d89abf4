// Package service provides the business logic of skiller: installing,
// removing and updating skills in harness directories.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spetersoncode/skiller/internal/backup"
	"github.com/spetersoncode/skiller/internal/db"
	serrors "github.com/spetersoncode/skiller/internal/errors"
	"github.com/spetersoncode/skiller/internal/github"
	"github.com/spetersoncode/skiller/internal/models"
	"github.com/spetersoncode/skiller/internal/skill"
	"github.com/spetersoncode/skiller/internal/source"
	"go.uber.org/zap"
)

// Fetcher retrieves skill sources.
type Fetcher interface {
	ResolveCommit(ctx context.Context, src source.Source) (*github.Commit, error)
	DownloadArchive(ctx context.Context, src source.Source, commit string) (io.ReadCloser, error)
}

// InstallService installs skills from GitHub into harness directories and
// keeps the installation records in sync with the filesystem.
type InstallService struct {
	fetcher   Fetcher
	installs  *db.InstallRepo
	backups   *backup.Manager
	harnesses []Harness
	targets   []string
	logger    *zap.Logger
}

// InstallOptions configures an InstallService.
type InstallOptions struct {
	// Harnesses are the known harnesses.
	Harnesses []Harness
	// Targets names the harnesses used when a request names none.
	// Empty means every detected harness.
	Targets []string
	// Backups keeps copies of replaced skills; nil disables backups.
	Backups *backup.Manager
	Logger  *zap.Logger
}

// NewInstallService creates a new InstallService.
func NewInstallService(database *sql.DB, fetcher Fetcher, opts InstallOptions) *InstallService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &InstallService{
		fetcher:   fetcher,
		installs:  db.NewInstallRepo(database),
		backups:   opts.Backups,
		harnesses: opts.Harnesses,
		targets:   opts.Targets,
		logger:    opts.Logger,
	}
}

// InstallRequest describes one install.
type InstallRequest struct {
	Source source.Source
	// Harnesses names the target harnesses. Ignored when Dest is set.
	Harnesses []string
	// Dest installs into this skills directory instead of a harness.
	Dest    string
	Force   bool
	DryRun  bool
	Exclude []string
}

// TargetResult is the outcome for one target directory.
type TargetResult struct {
	Harness     string `json:"harness"`
	Path        string `json:"path"`
	Overwritten bool   `json:"overwritten,omitempty"`
	Backup      string `json:"backup,omitempty"`
}

// InstallResult contains the result of an install.
type InstallResult struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Source      string         `json:"source"`
	Ref         string         `json:"ref"`
	Commit      string         `json:"commit"`
	Files       []string       `json:"files"`
	Targets     []TargetResult `json:"targets"`
	DryRun      bool           `json:"dry_run,omitempty"`
}

// Harnesses returns the known harnesses.
func (s *InstallService) Harnesses() []Harness {
	return s.harnesses
}

// Install fetches req.Source and installs it into every target.
func (s *InstallService) Install(ctx context.Context, req InstallRequest) (*InstallResult, error) {
	targets, err := s.resolveTargets(req.Harnesses, req.Dest)
	if err != nil {
		return nil, err
	}

	commit, err := s.fetcher.ResolveCommit(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	return s.install(ctx, req, commit, targets, "")
}

// install fetches the skill at commit and copies it into targets. When
// expectName is set, the fetched skill must still carry that name.
func (s *InstallService) install(ctx context.Context, req InstallRequest, commit *github.Commit, targets []Harness, expectName string) (*InstallResult, error) {
	src := req.Source
	log := s.logger.With(zap.String("source", src.String()), zap.String("commit", commit.SHA))

	staging, err := os.MkdirTemp("", "skiller-")
	if err != nil {
		return nil, serrors.WrapInternal(err, "failed to create staging directory")
	}
	defer os.RemoveAll(staging)

	body, err := s.fetcher.DownloadArchive(ctx, src, commit.SHA)
	if err != nil {
		return nil, err
	}
	files, err := github.ExtractSubtree(body, staging, github.ExtractOptions{Subpath: src.Path, Exclude: req.Exclude})
	body.Close()
	if err != nil {
		if serrors.GetKind(err) == serrors.KindNotFound {
			return nil, serrors.NotFound("path %q not found in %s@%s", displayPath(src.Path), src.FullName(), commit.Ref).
				WithSuggestion("Check --path against the repository tree at " + src.HTMLURL())
		}
		return nil, err
	}
	log.Debug("extracted skill", zap.Int("files", len(files)), zap.String("staging", staging))

	manifest, err := skill.LoadManifest(staging, src.Name())
	if err != nil {
		return nil, err
	}
	if expectName != "" && manifest.Name != expectName {
		return nil, serrors.Conflict("skill %s was renamed to %s upstream", expectName, manifest.Name).
			WithSuggestion(fmt.Sprintf("Remove it with 'skiller remove %s' and install the new name.", expectName))
	}

	result := &InstallResult{
		Name:        manifest.Name,
		Description: manifest.Description,
		Source:      src.String(),
		Ref:         commit.Ref,
		Commit:      commit.SHA,
		Files:       files,
		DryRun:      req.DryRun,
	}

	// Check every target before touching any, so a conflict leaves nothing
	// half installed.
	for _, h := range targets {
		dir := filepath.Join(h.SkillsDir, manifest.Name)
		existing, err := ListExistingFiles(dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, serrors.WrapInternal(err, "failed to check existing files")
		}
		if len(existing) > 0 && !req.Force {
			return nil, serrors.Conflict("skill %s already exists at %s", manifest.Name, dir).
				WithDetails("harness", h.Name).
				WithSuggestion("Use --force to overwrite; the existing copy is backed up first.")
		}
		result.Targets = append(result.Targets, TargetResult{
			Harness:     h.Name,
			Path:        dir,
			Overwritten: len(existing) > 0,
		})
	}

	if req.DryRun {
		return result, nil
	}

	for i, h := range targets {
		target := &result.Targets[i]
		if target.Overwritten && s.backups != nil {
			path, err := s.backups.Backup(backup.Key(manifest.Name, h.Name), target.Path)
			if err != nil {
				return nil, serrors.WrapInternal(err, "failed to back up %s", target.Path)
			}
			target.Backup = path
		}

		if err := replaceDir(staging, target.Path); err != nil {
			return nil, serrors.WrapInternal(err, "failed to install into %s", target.Path)
		}

		inst := &models.Installation{
			Name:        manifest.Name,
			Description: manifest.Description,
			Owner:       src.Owner,
			Repo:        src.Repo,
			Ref:         src.Ref,
			Commit:      commit.SHA,
			Path:        src.Path,
			Harness:     h.Name,
			TargetDir:   target.Path,
			FileCount:   len(files),
			Exclude:     req.Exclude,
		}
		if err := s.installs.Upsert(inst); err != nil {
			return nil, serrors.WrapInternal(err, "failed to record installation")
		}
		log.Info("installed skill", zap.String("name", manifest.Name), zap.String("harness", h.Name), zap.String("path", target.Path))
	}

	return result, nil
}

// Remove deletes an installed skill from the given harnesses, or from every
// harness it is installed in when harnesses is empty.
func (s *InstallService) Remove(ctx context.Context, name string, harnesses []string) ([]*models.Installation, error) {
	all, err := s.installs.ListByName(name)
	if err != nil {
		return nil, serrors.WrapInternal(err, "failed to look up %s", name)
	}

	var selected []*models.Installation
	for _, inst := range all {
		if len(harnesses) == 0 || slices.Contains(harnesses, inst.Harness) {
			selected = append(selected, inst)
		}
	}
	if len(selected) == 0 {
		return nil, serrors.NotFound("skill %s is not installed", name).
			WithSuggestion("Run 'skiller list' to see installed skills.")
	}

	for _, inst := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := os.RemoveAll(inst.TargetDir); err != nil {
			return nil, serrors.WrapInternal(err, "failed to remove %s", inst.TargetDir)
		}
		if err := s.installs.Delete(inst.Name, inst.Harness); err != nil {
			return nil, serrors.WrapInternal(err, "failed to delete installation record")
		}
		s.logger.Info("removed skill", zap.String("name", inst.Name), zap.String("harness", inst.Harness))
	}
	return selected, nil
}

// List returns installations, optionally for one harness.
func (s *InstallService) List(harness string) ([]*models.Installation, error) {
	installs, err := s.installs.List(harness)
	if err != nil {
		return nil, serrors.WrapInternal(err, "failed to list installations")
	}
	return installs, nil
}

// resolveTargets picks the target harnesses: an explicit destination, the
// named harnesses, the configured targets, or every detected harness.
func (s *InstallService) resolveTargets(names []string, dest string) ([]Harness, error) {
	if dest != "" {
		abs, err := filepath.Abs(dest)
		if err != nil {
			return nil, serrors.InvalidArgs("invalid --dest %q: %v", dest, err)
		}
		return []Harness{{Name: abs, SkillsDir: abs}}, nil
	}

	if len(names) == 0 {
		names = s.targets
	}
	if len(names) > 0 {
		return SelectHarnesses(s.harnesses, names)
	}

	detected := DetectHarnesses(s.harnesses)
	if len(detected) == 0 {
		return nil, serrors.NotFound("no harness detected").
			WithSuggestion("Install into a directory with --dest, or name a harness with --harness (" +
				strings.Join(harnessNames(s.harnesses), ", ") + ").")
	}
	return detected, nil
}

// replaceDir installs a copy of src at dst. The copy is built next to dst and
// swapped in, so dst is never left partially written.
func replaceDir(src, dst string) error {
	parent := filepath.Dir(dst)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return err
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dst)+"-")
	if err != nil {
		return err
	}
	if err := os.Chmod(tmp, 0755); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := backup.CopyDir(src, tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}

	old := ""
	if _, err := os.Stat(dst); err == nil {
		old = tmp + ".old"
		if err := os.Rename(dst, old); err != nil {
			os.RemoveAll(tmp)
			return err
		}
	}
	if err := os.Rename(tmp, dst); err != nil {
		if old != "" {
			_ = os.Rename(old, dst)
		}
		os.RemoveAll(tmp)
		return err
	}
	if old != "" {
		return os.RemoveAll(old)
	}
	return nil
}

// ListExistingFiles returns the non-directory entries below dir as sorted
// paths relative to it. A missing dir is reported as fs.ErrNotExist.
func ListExistingFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		switch {
		case walkErr != nil:
			return walkErr
		case d.IsDir():
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func displayPath(p string) string {
	if p == "" {
		return "."
	}
	return p
}
