// Package skill parses and validates agent skill packages.
//
// A skill is a directory whose SKILL.md starts with YAML frontmatter:
//
//	---
//	name: pdf-tools
//	description: Extract text and tables from PDF files.
//	---
//
// followed by Markdown instructions. Any other files in the directory
// (references/, scripts/, assets/) are installed alongside it.
package skill

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	serrors "github.com/spetersoncode/skiller/internal/errors"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the file every skill directory must contain.
const ManifestFile = "SKILL.md"

// MaxNameLength and MaxDescriptionLength bound the frontmatter fields.
const (
	MaxNameLength        = 64
	MaxDescriptionLength = 1024
)

var nameRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Manifest is the YAML frontmatter of SKILL.md.
type Manifest struct {
	Name         string                 `yaml:"name" json:"name"`
	Description  string                 `yaml:"description" json:"description"`
	Version      string                 `yaml:"version,omitempty" json:"version,omitempty"`
	License      string                 `yaml:"license,omitempty" json:"license,omitempty"`
	AllowedTools []string               `yaml:"allowed-tools,omitempty" json:"allowed_tools,omitempty"`
	Metadata     map[string]interface{} `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// ValidateName validates a skill name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("skill name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("skill name must be at most %d characters", MaxNameLength)
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("skill name %q must be lowercase letters, digits and single hyphens", name)
	}
	return nil
}

// Validate validates the manifest fields.
func (m *Manifest) Validate() error {
	if err := ValidateName(m.Name); err != nil {
		return err
	}
	if m.Description == "" {
		return fmt.Errorf("skill description cannot be empty")
	}
	if len(m.Description) > MaxDescriptionLength {
		return fmt.Errorf("skill description must be at most %d characters", MaxDescriptionLength)
	}
	return nil
}

// ParseManifest extracts and decodes the frontmatter of a SKILL.md document.
// It returns the manifest and the Markdown body after the frontmatter.
func ParseManifest(data []byte) (*Manifest, []byte, error) {
	front, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(front, &m); err != nil {
		return nil, nil, fmt.Errorf("invalid %s frontmatter: %w", ManifestFile, err)
	}
	return &m, body, nil
}

// LoadManifest reads and validates SKILL.md from dir. When the frontmatter has
// no name, fallbackName (usually the directory name) is used.
func LoadManifest(dir, fallbackName string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, serrors.NotFound("no %s found in skill directory", ManifestFile).
			WithSuggestion("Check that --path points at a directory containing " + ManifestFile + ".")
	}
	if err != nil {
		return nil, serrors.WrapInternal(err, "failed to read %s", ManifestFile)
	}

	m, _, err := ParseManifest(data)
	if err != nil {
		return nil, serrors.Wrap(err, serrors.KindInvalidArgs, "invalid skill")
	}
	if m.Name == "" {
		m.Name = fallbackName
	}
	if err := m.Validate(); err != nil {
		return nil, serrors.Wrap(err, serrors.KindInvalidArgs, "invalid skill")
	}
	return m, nil
}

func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))

	if !bytes.HasPrefix(data, []byte("---\n")) {
		return nil, nil, fmt.Errorf("%s must start with YAML frontmatter (---)", ManifestFile)
	}
	rest := data[len("---\n"):]

	// The closing delimiter may be the last line of the file.
	if bytes.HasPrefix(rest, []byte("---\n")) || bytes.Equal(rest, []byte("---")) {
		return nil, bytes.TrimPrefix(rest[3:], []byte("\n")), nil
	}
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-len("\n---")], nil, nil
		}
		return nil, nil, fmt.Errorf("%s frontmatter is not terminated", ManifestFile)
	}
	return rest[:end], rest[end+len("\n---\n"):], nil
}
