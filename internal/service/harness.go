package service

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spetersoncode/skiller/internal/config"
	serrors "github.com/spetersoncode/skiller/internal/errors"
)

// Harness is an AI tool that loads skills from a directory.
type Harness struct {
	Name string `json:"name"`
	// DetectDir is the directory whose presence means the harness is installed.
	DetectDir string `json:"detect_dir,omitempty"`
	// SkillsDir is the directory skills are installed into, one subdirectory
	// per skill.
	SkillsDir string `json:"skills_dir"`
}

// Detected reports whether the harness is installed on this machine.
func (h Harness) Detected() bool {
	if h.DetectDir == "" {
		return false
	}
	info, err := os.Stat(h.DetectDir)
	return err == nil && info.IsDir()
}

// DefaultHarnesses returns the built-in harnesses rooted at homeDir.
func DefaultHarnesses(homeDir string) []Harness {
	return []Harness{
		{
			Name:      "claude",
			DetectDir: filepath.Join(homeDir, ".claude"),
			SkillsDir: filepath.Join(homeDir, ".claude", "skills"),
		},
		{
			Name:      "openclaw",
			DetectDir: filepath.Join(homeDir, ".openclaw"),
			SkillsDir: filepath.Join(homeDir, ".openclaw", "skills"),
		},
		{
			Name:      "opencode",
			DetectDir: filepath.Join(homeDir, ".config", "opencode"),
			SkillsDir: filepath.Join(homeDir, ".config", "opencode", "skill"),
		},
		{
			Name:      "codex",
			DetectDir: filepath.Join(homeDir, ".codex"),
			SkillsDir: filepath.Join(homeDir, ".codex", "skills"),
		},
	}
}

// LoadHarnesses returns the built-in harnesses with the [harness.<name>]
// sections of the config applied. Config entries override built-in
// directories or add new harnesses; added ones sort after the built-ins.
func LoadHarnesses(homeDir string, overrides map[string]config.HarnessConfig) []Harness {
	harnesses := DefaultHarnesses(homeDir)

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		o := overrides[name]
		idx := -1
		for i, h := range harnesses {
			if h.Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			harnesses = append(harnesses, Harness{Name: name})
			idx = len(harnesses) - 1
		}
		if o.Detect != "" {
			harnesses[idx].DetectDir = expandHome(o.Detect, homeDir)
		}
		if o.SkillsDir != "" {
			harnesses[idx].SkillsDir = expandHome(o.SkillsDir, homeDir)
		}
		// A custom harness without a detect dir is detected by its skills dir.
		if harnesses[idx].DetectDir == "" {
			harnesses[idx].DetectDir = harnesses[idx].SkillsDir
		}
	}
	return harnesses
}

// SelectHarnesses picks the harnesses named in names. Unknown names are an
// invalid-args error.
func SelectHarnesses(all []Harness, names []string) ([]Harness, error) {
	var selected []Harness
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		found := false
		for _, h := range all {
			if h.Name == name {
				selected = append(selected, h)
				found = true
				break
			}
		}
		if !found {
			return nil, serrors.InvalidArgs("unknown harness %q", name).
				WithSuggestion("Known harnesses: " + strings.Join(harnessNames(all), ", ") + ". Add others under [harness.<name>] in the config file.")
		}
	}
	return selected, nil
}

// DetectHarnesses returns the installed harnesses.
func DetectHarnesses(all []Harness) []Harness {
	var detected []Harness
	for _, h := range all {
		if h.Detected() {
			detected = append(detected, h)
		}
	}
	return detected
}

func harnessNames(all []Harness) []string {
	names := make([]string, len(all))
	for i, h := range all {
		names[i] = h.Name
	}
	return names
}

func expandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
