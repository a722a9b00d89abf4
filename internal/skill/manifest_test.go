package skill

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	serrors "github.com/spetersoncode/skiller/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	doc := "---\nname: pdf-tools\ndescription: Work with PDFs.\nallowed-tools:\n  - Bash\n  - Read\nmetadata:\n  owner: acme\n---\n# PDF tools\n\nInstructions.\n"

	m, body, err := ParseManifest([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "pdf-tools", m.Name)
	assert.Equal(t, "Work with PDFs.", m.Description)
	assert.Equal(t, []string{"Bash", "Read"}, m.AllowedTools)
	assert.Equal(t, "acme", m.Metadata["owner"])
	assert.Equal(t, "# PDF tools\n\nInstructions.\n", string(body))
	assert.NoError(t, m.Validate())
}

func TestParseManifestCRLFAndBOM(t *testing.T) {
	doc := "\xef\xbb\xbf---\r\nname: x\r\ndescription: y\r\n---\r\nbody"

	m, body, err := ParseManifest([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "x", m.Name)
	assert.Equal(t, "body", string(body))
}

func TestParseManifestErrors(t *testing.T) {
	tests := map[string]string{
		"no frontmatter":   "# Title\n",
		"unterminated":     "---\nname: x\n",
		"invalid yaml":     "---\nname: [\n---\n",
		"tabs not allowed": "---\nname:\n\t- x\n---\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseManifest([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"pdf", "pdf-tools", "a1-b2"}
	for _, n := range valid {
		assert.NoError(t, ValidateName(n), n)
	}

	invalid := []string{"", "PDF", "pdf_tools", "-pdf", "pdf-", "pdf--tools", strings.Repeat("a", MaxNameLength+1)}
	for _, n := range invalid {
		assert.Error(t, ValidateName(n), n)
	}
}

func TestManifestValidateDescription(t *testing.T) {
	m := &Manifest{Name: "pdf"}
	assert.Error(t, m.Validate())

	m.Description = strings.Repeat("d", MaxDescriptionLength+1)
	assert.Error(t, m.Validate())
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("---\ndescription: No name here.\n---\n"), 0644))

	m, err := LoadManifest(dir, "fallback-name")
	require.NoError(t, err)
	assert.Equal(t, "fallback-name", m.Name)
}

func TestLoadManifestMissing(t *testing.T) {
	_, err := LoadManifest(t.TempDir(), "x")
	require.Error(t, err)
	assert.True(t, serrors.Is(err, serrors.KindNotFound))
}

func TestLoadManifestInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("---\nname: Bad_Name\ndescription: d\n---\n"), 0644))

	_, err := LoadManifest(dir, "x")
	require.Error(t, err)
	assert.True(t, serrors.Is(err, serrors.KindInvalidArgs))
}

func TestSelfFSContainsExpectedFiles(t *testing.T) {
	fsys, err := SelfFS()
	require.NoError(t, err)

	data, err := fs.ReadFile(fsys, ManifestFile)
	require.NoError(t, err)

	m, _, err := ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, SelfName, m.Name)
	assert.NoError(t, m.Validate())

	_, err = fs.Stat(fsys, "references/troubleshooting.md")
	require.NoError(t, err)
}
