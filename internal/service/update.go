package service

import (
	"context"
	"path/filepath"

	serrors "github.com/spetersoncode/skiller/internal/errors"
	"github.com/spetersoncode/skiller/internal/models"
	"github.com/spetersoncode/skiller/internal/source"
	"github.com/spetersoncode/skiller/internal/tasks"
	"go.uber.org/zap"
)

// UpdateResult is the outcome of updating one installation.
type UpdateResult struct {
	Name    string `json:"name"`
	Harness string `json:"harness"`
	From    string `json:"from"`
	To      string `json:"to"`
	Updated bool   `json:"updated"`
	Pinned  bool   `json:"pinned,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Update reinstalls name, in every harness it is installed in, at the latest
// commit of its recorded ref. Installations already at that commit and
// installations pinned to a SHA are left alone.
func (s *InstallService) Update(ctx context.Context, name string) ([]*UpdateResult, error) {
	installs, err := s.installs.ListByName(name)
	if err != nil {
		return nil, serrors.WrapInternal(err, "failed to look up %s", name)
	}
	if len(installs) == 0 {
		return nil, serrors.NotFound("skill %s is not installed", name).
			WithSuggestion("Run 'skiller list' to see installed skills.")
	}

	var results []*UpdateResult
	for _, inst := range installs {
		res, err := s.updateOne(ctx, inst)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// UpdateOutdated updates every installation the check reports as outdated.
// Failures are collected per installation; the first one is also returned.
func (s *InstallService) UpdateOutdated(ctx context.Context, check *tasks.CheckResult) ([]*UpdateResult, error) {
	var results []*UpdateResult
	var firstErr error
	for _, st := range check.Statuses {
		inst := st.Installation
		switch {
		case st.Pinned:
			results = append(results, &UpdateResult{Name: inst.Name, Harness: inst.Harness, From: inst.Commit, To: inst.Commit, Pinned: true})
		case st.Err != nil:
			results = append(results, &UpdateResult{Name: inst.Name, Harness: inst.Harness, From: inst.Commit, Error: st.ErrorMessage})
			if firstErr == nil {
				firstErr = st.Err
			}
		case !st.Outdated:
			results = append(results, &UpdateResult{Name: inst.Name, Harness: inst.Harness, From: inst.Commit, To: inst.Commit})
		default:
			res, err := s.updateOne(ctx, inst)
			if err != nil {
				res = &UpdateResult{Name: inst.Name, Harness: inst.Harness, From: inst.Commit, Error: err.Error()}
				if firstErr == nil {
					firstErr = err
				}
			}
			results = append(results, res)
		}
	}
	return results, firstErr
}

func (s *InstallService) updateOne(ctx context.Context, inst *models.Installation) (*UpdateResult, error) {
	res := &UpdateResult{Name: inst.Name, Harness: inst.Harness, From: inst.Commit}
	src := source.Source{Owner: inst.Owner, Repo: inst.Repo, Ref: inst.Ref, Path: inst.Path}

	commit, err := s.fetcher.ResolveCommit(ctx, src)
	if err != nil {
		return nil, err
	}
	res.To = commit.SHA
	if commit.SHA == inst.Commit {
		res.Pinned = commit.SHA == inst.Ref
		return res, nil
	}

	target := Harness{Name: inst.Harness, SkillsDir: filepath.Dir(inst.TargetDir)}
	req := InstallRequest{Source: src, Force: true, Exclude: inst.Exclude}
	if _, err := s.install(ctx, req, commit, []Harness{target}, inst.Name); err != nil {
		return nil, err
	}

	s.logger.Info("updated skill",
		zap.String("name", inst.Name),
		zap.String("harness", inst.Harness),
		zap.String("from", inst.ShortCommit()),
		zap.String("to", commit.SHA))
	res.Updated = true
	return res, nil
}
