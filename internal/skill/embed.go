package skill

import (
	"embed"
	"io/fs"
)

//go:embed all:files
var selfFS embed.FS

// SelfName is the name skiller installs its own skill under.
const SelfName = "skiller"

// SelfFS returns a filesystem rooted at skiller's own skill files.
// This allows direct access to SKILL.md, references/, etc.
func SelfFS() (fs.FS, error) {
	return fs.Sub(selfFS, "files")
}
