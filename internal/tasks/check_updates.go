// Package tasks provides batch tasks that run over every installation.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/spetersoncode/skiller/internal/db"
	"github.com/spetersoncode/skiller/internal/github"
	"github.com/spetersoncode/skiller/internal/models"
	"github.com/spetersoncode/skiller/internal/source"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the number of repositories queried at once.
const DefaultConcurrency = 4

var shaRegex = regexp.MustCompile(`^[0-9a-f]{40}$`)

// RemoteLister lists the refs of a repository.
type RemoteLister interface {
	ListRemote(ctx context.Context, src source.Source) (*github.RemoteRefs, error)
}

// UpdateStatus is the update state of one installation.
type UpdateStatus struct {
	Installation *models.Installation `json:"installation"`
	Latest       string               `json:"latest,omitempty"`
	Outdated     bool                 `json:"outdated"`
	// Pinned is set for installations recorded at a commit SHA; they never
	// go out of date.
	Pinned       bool                 `json:"pinned,omitempty"`
	ErrorMessage string               `json:"error,omitempty"`
	Err          error                `json:"-"`
}

// CheckResult is the result of an update check.
type CheckResult struct {
	Checked  int             `json:"checked"`
	Outdated int             `json:"outdated"`
	Errors   int             `json:"errors"`
	Statuses []*UpdateStatus `json:"statuses"`
}

// UpdateChecker compares installed commits with the current commits of
// their recorded refs.
type UpdateChecker struct {
	installRepo *db.InstallRepo
	lister      RemoteLister
	concurrency int
	logger      *zap.Logger
}

// NewUpdateChecker creates a new UpdateChecker.
func NewUpdateChecker(database *sql.DB, lister RemoteLister, logger *zap.Logger) *UpdateChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpdateChecker{
		installRepo: db.NewInstallRepo(database),
		lister:      lister,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
}

// SetConcurrency sets how many repositories are queried at once.
func (c *UpdateChecker) SetConcurrency(n int) {
	if n > 0 {
		c.concurrency = n
	}
}

// CheckAll checks every installation. name, when set, restricts the check to
// one skill.
//
// Each repository is listed once no matter how many installations come from
// it. A failed listing marks that repository's installations with the error
// and does not stop the others.
func (c *UpdateChecker) CheckAll(ctx context.Context, name string) (*CheckResult, error) {
	var installs []*models.Installation
	var err error
	if name != "" {
		installs, err = c.installRepo.ListByName(name)
	} else {
		installs, err = c.installRepo.List("")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}

	result := &CheckResult{Checked: len(installs)}
	byRepo := make(map[string][]*models.Installation)
	var repos []string
	for _, inst := range installs {
		if shaRegex.MatchString(inst.Ref) {
			result.Statuses = append(result.Statuses, &UpdateStatus{Installation: inst, Latest: inst.Ref, Pinned: true})
			continue
		}
		key := inst.FullName()
		if _, ok := byRepo[key]; !ok {
			repos = append(repos, key)
		}
		byRepo[key] = append(byRepo[key], inst)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, key := range repos {
		group := byRepo[key]
		g.Go(func() error {
			first := group[0]
			refs, err := c.lister.ListRemote(gctx, source.Source{Owner: first.Owner, Repo: first.Repo})
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}

			statuses := make([]*UpdateStatus, 0, len(group))
			for _, inst := range group {
				statuses = append(statuses, compare(inst, refs, err))
			}
			if err != nil {
				c.logger.Debug("update check failed", zap.String("repo", key), zap.Error(err))
			}

			mu.Lock()
			result.Statuses = append(result.Statuses, statuses...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, st := range result.Statuses {
		if st.Err != nil {
			result.Errors++
		} else if st.Outdated {
			result.Outdated++
		}
	}
	sort.Slice(result.Statuses, func(i, j int) bool {
		a, b := result.Statuses[i].Installation, result.Statuses[j].Installation
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Harness < b.Harness
	})
	return result, nil
}

func compare(inst *models.Installation, refs *github.RemoteRefs, err error) *UpdateStatus {
	st := &UpdateStatus{Installation: inst}
	if err != nil {
		st.Err = err
		st.ErrorMessage = err.Error()
		return st
	}
	latest, ok := refs.Lookup(inst.Ref)
	if !ok {
		st.Err = fmt.Errorf("ref %q no longer exists in %s", refName(inst.Ref), inst.FullName())
		st.ErrorMessage = st.Err.Error()
		return st
	}
	st.Latest = latest
	st.Outdated = latest != inst.Commit
	return st
}

func refName(ref string) string {
	if ref == "" {
		return "HEAD"
	}
	return ref
}
