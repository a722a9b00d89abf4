// Package source resolves GitHub locations of skills.
//
// A skill source is a repository (owner/name), an optional ref, and the
// sub-path of the skill directory inside the repository. Sources come either
// from a GitHub URL (--url) or from explicit --repo/--path flags.
package source

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	serrors "github.com/spetersoncode/skiller/internal/errors"
)

// Host is the only source host skiller installs from.
const Host = "github.com"

// MissingPathMessage is reported when a GitHub URL names a repository but no
// skill directory inside it, and --path was not given.
const MissingPathMessage = "Missing --path for GitHub URL."

var (
	ownerRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	repoRegex  = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
)

// Source is a resolved skill location.
type Source struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Ref   string `json:"ref,omitempty"`
	// Path is the skill directory inside the repository, slash separated.
	// Empty means the repository root.
	Path string `json:"path"`
}

// FullName returns owner/repo.
func (s Source) FullName() string {
	return s.Owner + "/" + s.Repo
}

// Name returns the default skill name: the last element of Path, or the
// repository name for a root skill.
func (s Source) Name() string {
	if s.Path == "" {
		return s.Repo
	}
	return path.Base(s.Path)
}

// String renders the source as owner/repo[@ref]:path.
func (s Source) String() string {
	var b strings.Builder
	b.WriteString(s.FullName())
	if s.Ref != "" {
		b.WriteString("@")
		b.WriteString(s.Ref)
	}
	b.WriteString(":")
	if s.Path == "" {
		b.WriteString(".")
	} else {
		b.WriteString(s.Path)
	}
	return b.String()
}

// HTMLURL returns the browsable GitHub URL for the source.
func (s Source) HTMLURL() string {
	u := "https://" + Host + "/" + s.FullName()
	if s.Ref == "" && s.Path == "" {
		return u
	}
	ref := s.Ref
	if ref == "" {
		ref = "HEAD"
	}
	u += "/tree/" + ref
	if s.Path != "" {
		u += "/" + s.Path
	}
	return u
}

// RemediationCommand renders the explicit install command for this source.
func (s Source) RemediationCommand() string {
	p := s.Path
	if p == "" {
		p = "."
	}
	cmd := fmt.Sprintf("skiller install --repo %s --path %s", s.FullName(), p)
	if s.Ref != "" {
		cmd += " --ref " + s.Ref
	}
	return cmd
}

// ParseURL parses a GitHub URL into a Source. Accepted forms:
//
//	https://github.com/owner/repo
//	github.com/owner/repo.git
//	git@github.com:owner/repo.git
//	https://github.com/owner/repo/tree/<ref>/<path>
//	https://github.com/owner/repo/blob/<ref>/<path>/SKILL.md
//
// Refs containing slashes cannot be told apart from the path in tree/blob
// URLs; the first segment after tree/blob is taken as the ref.
func ParseURL(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, serrors.InvalidArgs("GitHub URL cannot be empty")
	}

	if rest, ok := strings.CutPrefix(raw, "git@"); ok {
		host, repoPath, found := strings.Cut(rest, ":")
		if !found {
			return Source{}, serrors.InvalidArgs("invalid SSH URL: %s", raw)
		}
		raw = "https://" + host + "/" + repoPath
	} else if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Source{}, serrors.Wrap(err, serrors.KindInvalidArgs, "invalid URL")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return Source{}, serrors.InvalidArgs("unsupported URL scheme %q", u.Scheme)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != Host {
		return Source{}, serrors.InvalidArgs("unsupported host %q: only %s URLs are supported", u.Hostname(), Host)
	}

	segments := splitPath(u.Path)
	if len(segments) < 2 {
		return Source{}, serrors.InvalidArgs("URL must name a repository: %s", raw).
			WithSuggestion("Use a URL like https://github.com/owner/repo/tree/main/skills/name")
	}

	src := Source{
		Owner: segments[0],
		Repo:  strings.TrimSuffix(segments[1], ".git"),
	}
	if err := validateRepo(src.Owner, src.Repo); err != nil {
		return Source{}, err
	}

	rest := segments[2:]
	if len(rest) == 0 {
		return src, nil
	}

	switch rest[0] {
	case "tree", "blob":
		if len(rest) < 2 {
			return Source{}, serrors.InvalidArgs("URL is missing a ref after /%s/", rest[0])
		}
		src.Ref = rest[1]
		parts := rest[2:]
		// A blob URL points at a file; the skill is the directory holding it.
		if rest[0] == "blob" && len(parts) > 0 {
			parts = parts[:len(parts)-1]
		}
		src.Path = strings.Join(parts, "/")
	default:
		return Source{}, serrors.InvalidArgs("unsupported GitHub URL path /%s", strings.Join(rest, "/"))
	}

	return src, nil
}

// ParseRepo parses "owner/name" or "owner/name@ref".
func ParseRepo(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	repo, ref, _ := strings.Cut(raw, "@")
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || strings.Contains(name, "/") {
		return Source{}, serrors.InvalidArgs("invalid repository %q: expected owner/name", raw)
	}
	name = strings.TrimSuffix(name, ".git")
	if err := validateRepo(owner, name); err != nil {
		return Source{}, err
	}
	return Source{Owner: owner, Repo: name, Ref: ref}, nil
}

// CleanPath normalizes a sub-path: forward slashes, no leading or trailing
// slash, and no escape from the repository root. "." and "" both mean root.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return "", nil
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", serrors.InvalidArgs("path %q escapes the repository root", p)
	}
	return cleaned, nil
}

// Options are the raw installer flags.
type Options struct {
	URL  string
	Repo string
	Path string
	Ref  string
}

// Resolve turns installer flags into a Source.
//
// A URL without a sub-path requires --path, exactly as --repo does; the
// repository root is selected with --path ".".
func Resolve(opts Options) (Source, error) {
	hasURL := strings.TrimSpace(opts.URL) != ""
	hasRepo := strings.TrimSpace(opts.Repo) != ""
	hasPath := strings.TrimSpace(opts.Path) != ""

	switch {
	case hasURL && hasRepo:
		return Source{}, serrors.InvalidArgs("--url and --repo cannot be used together")
	case !hasURL && !hasRepo:
		return Source{}, serrors.InvalidArgs("one of --url or --repo is required").
			WithSuggestion("skiller install --repo <owner/name> --path <path/to/skill>")
	}

	flagPath, err := CleanPath(opts.Path)
	if err != nil {
		return Source{}, err
	}

	var src Source
	if hasURL {
		src, err = ParseURL(opts.URL)
		if err != nil {
			return Source{}, err
		}
		switch {
		case src.Path == "" && !hasPath:
			return Source{}, serrors.InvalidArgs(MissingPathMessage).
				WithDetails("repo", src.FullName()).
				WithSuggestion(fmt.Sprintf("skiller install --repo %s --path <path/to/skill>", src.FullName()))
		case src.Path != "" && hasPath && flagPath != src.Path:
			return Source{}, serrors.InvalidArgs("--path %q conflicts with path %q in URL", flagPath, src.Path)
		case src.Path == "":
			src.Path = flagPath
		}
	} else {
		src, err = ParseRepo(opts.Repo)
		if err != nil {
			return Source{}, err
		}
		if !hasPath {
			return Source{}, serrors.InvalidArgs("Missing --path for --repo.").
				WithSuggestion(fmt.Sprintf("skiller install --repo %s --path <path/to/skill>", src.FullName()))
		}
		src.Path = flagPath
	}

	if ref := strings.TrimSpace(opts.Ref); ref != "" {
		if src.Ref != "" && src.Ref != ref {
			return Source{}, serrors.InvalidArgs("--ref %q conflicts with ref %q in source", ref, src.Ref)
		}
		src.Ref = ref
	}

	return src, nil
}

// ParseTarget parses a probe target: a GitHub URL or owner/name.
func ParseTarget(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, Host) || strings.HasPrefix(raw, "git@") || strings.Contains(raw, "://") {
		return ParseURL(raw)
	}
	return ParseRepo(raw)
}

func validateRepo(owner, repo string) error {
	if !ownerRegex.MatchString(owner) {
		return serrors.InvalidArgs("invalid repository owner %q", owner)
	}
	if !repoRegex.MatchString(repo) || repo == "." || repo == ".." {
		return serrors.InvalidArgs("invalid repository name %q", repo)
	}
	return nil
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
