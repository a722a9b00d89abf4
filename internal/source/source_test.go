package source

import (
	"testing"

	serrors "github.com/spetersoncode/skiller/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Source
		wantErr bool
	}{
		{"bare repo", "https://github.com/acme/skills", Source{Owner: "acme", Repo: "skills"}, false},
		{"no scheme", "github.com/acme/skills", Source{Owner: "acme", Repo: "skills"}, false},
		{"www and .git", "https://www.github.com/acme/skills.git/", Source{Owner: "acme", Repo: "skills"}, false},
		{"ssh", "git@github.com:acme/skills.git", Source{Owner: "acme", Repo: "skills"}, false},
		{"tree with path", "https://github.com/acme/skills/tree/main/skills/pdf", Source{Owner: "acme", Repo: "skills", Ref: "main", Path: "skills/pdf"}, false},
		{"tree without path", "https://github.com/acme/skills/tree/v1.2.0", Source{Owner: "acme", Repo: "skills", Ref: "v1.2.0"}, false},
		{"blob strips file", "https://github.com/acme/skills/blob/main/skills/pdf/SKILL.md", Source{Owner: "acme", Repo: "skills", Ref: "main", Path: "skills/pdf"}, false},
		{"other host", "https://gitlab.com/acme/skills", Source{}, true},
		{"owner only", "https://github.com/acme", Source{}, true},
		{"issues page", "https://github.com/acme/skills/issues/1", Source{}, true},
		{"tree without ref", "https://github.com/acme/skills/tree", Source{}, true},
		{"bad owner", "https://github.com/-acme/skills", Source{}, true},
		{"empty", "  ", Source{}, true},
		{"ftp", "ftp://github.com/acme/skills", Source{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, serrors.Is(err, serrors.KindInvalidArgs))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRepo(t *testing.T) {
	got, err := ParseRepo("acme/skills@v2")
	require.NoError(t, err)
	assert.Equal(t, Source{Owner: "acme", Repo: "skills", Ref: "v2"}, got)

	got, err = ParseRepo("acme/skills.git")
	require.NoError(t, err)
	assert.Equal(t, "skills", got.Repo)

	for _, bad := range []string{"acme", "acme/skills/extra", "/skills", "acme/"} {
		_, err := ParseRepo(bad)
		assert.Error(t, err, bad)
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"skills/pdf", "skills/pdf", false},
		{"/skills/pdf/", "skills/pdf", false},
		{`skills\pdf`, "skills/pdf", false},
		{"skills/./pdf", "skills/pdf", false},
		{".", "", false},
		{"", "", false},
		{"..", "", true},
		{"skills/../../etc", "", true},
		{"skills/../pdf", "pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanPath(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveMissingPathForURL(t *testing.T) {
	_, err := Resolve(Options{URL: "https://github.com/acme/skills"})
	require.Error(t, err)

	var serr *serrors.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, serrors.KindInvalidArgs, serr.Kind)
	assert.Equal(t, "Missing --path for GitHub URL.", serr.Error())
	assert.Contains(t, serr.Suggestion, "--repo acme/skills")
	assert.Contains(t, serr.Suggestion, "--path")
	assert.Equal(t, 2, serr.CLIExitCode())
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    Source
		wantErr string
	}{
		{
			name: "url with path",
			opts: Options{URL: "https://github.com/acme/skills/tree/main/skills/pdf"},
			want: Source{Owner: "acme", Repo: "skills", Ref: "main", Path: "skills/pdf"},
		},
		{
			name: "url plus path flag",
			opts: Options{URL: "https://github.com/acme/skills", Path: "skills/pdf"},
			want: Source{Owner: "acme", Repo: "skills", Path: "skills/pdf"},
		},
		{
			name: "url with matching path flag",
			opts: Options{URL: "https://github.com/acme/skills/tree/main/skills/pdf", Path: "skills/pdf/"},
			want: Source{Owner: "acme", Repo: "skills", Ref: "main", Path: "skills/pdf"},
		},
		{
			name: "repo and path",
			opts: Options{Repo: "acme/skills", Path: "skills/pdf", Ref: "v1"},
			want: Source{Owner: "acme", Repo: "skills", Ref: "v1", Path: "skills/pdf"},
		},
		{
			name: "repo root with dot",
			opts: Options{Repo: "acme/pdf-skill", Path: "."},
			want: Source{Owner: "acme", Repo: "pdf-skill"},
		},
		{
			name:    "repo without path",
			opts:    Options{Repo: "acme/skills"},
			wantErr: "Missing --path for --repo.",
		},
		{
			name:    "url and repo",
			opts:    Options{URL: "https://github.com/acme/skills", Repo: "acme/skills", Path: "x"},
			wantErr: "--url and --repo cannot be used together",
		},
		{
			name:    "nothing",
			opts:    Options{},
			wantErr: "one of --url or --repo is required",
		},
		{
			name:    "conflicting path",
			opts:    Options{URL: "https://github.com/acme/skills/tree/main/a", Path: "b"},
			wantErr: `--path "b" conflicts with path "a" in URL`,
		},
		{
			name:    "conflicting ref",
			opts:    Options{Repo: "acme/skills@v1", Path: "a", Ref: "v2"},
			wantErr: `--ref "v2" conflicts with ref "v1" in source`,
		},
		{
			name:    "escaping path",
			opts:    Options{Repo: "acme/skills", Path: "../x"},
			wantErr: `path "../x" escapes the repository root`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				assert.True(t, serrors.Is(err, serrors.KindInvalidArgs))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceRendering(t *testing.T) {
	src := Source{Owner: "acme", Repo: "skills", Ref: "main", Path: "skills/pdf"}

	assert.Equal(t, "acme/skills", src.FullName())
	assert.Equal(t, "pdf", src.Name())
	assert.Equal(t, "acme/skills@main:skills/pdf", src.String())
	assert.Equal(t, "https://github.com/acme/skills/tree/main/skills/pdf", src.HTMLURL())
	assert.Equal(t, "skiller install --repo acme/skills --path skills/pdf --ref main", src.RemediationCommand())

	root := Source{Owner: "acme", Repo: "pdf-skill"}
	assert.Equal(t, "pdf-skill", root.Name())
	assert.Equal(t, "acme/pdf-skill:.", root.String())
	assert.Equal(t, "https://github.com/acme/pdf-skill", root.HTMLURL())
	assert.Equal(t, "skiller install --repo acme/pdf-skill --path .", root.RemediationCommand())
}

func TestParseTarget(t *testing.T) {
	src, err := ParseTarget("https://github.com/acme/skills")
	require.NoError(t, err)
	assert.Equal(t, "acme/skills", src.FullName())

	src, err = ParseTarget("acme/skills")
	require.NoError(t, err)
	assert.Equal(t, "acme/skills", src.FullName())
}
