// Package backup keeps rotating copies of skill directories that are about to
// be replaced.
//
// Backups of a skill are named <name>.<harness>.bak.1, .bak.2, etc., where 1
// is the most recent. Installing with --force backs up the existing
// directory first, and a failed install restores it.
package backup

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spetersoncode/skiller/internal/config"
)

const suffix = ".bak."

// Manager handles skill directory backups.
type Manager struct {
	backupDir string
	cfg       config.BackupConfig
}

// NewManager creates a new backup manager storing backups in backupDir.
func NewManager(backupDir string, cfg config.BackupConfig) *Manager {
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = 1
	}
	return &Manager{backupDir: backupDir, cfg: cfg}
}

// Key returns the backup key of a skill in a harness. Harnesses given as
// directories are flattened to a single path element.
func Key(name, harness string) string {
	return name + "." + keyReplacer.Replace(strings.Trim(harness, `/\`))
}

var keyReplacer = strings.NewReplacer("/", "_", `\`, "_", ":", "_")

// Backup copies srcDir to a new backup for key, rotating older ones.
// Returns the backup path, or empty string if backups are disabled or srcDir
// does not exist.
func (m *Manager) Backup(key, srcDir string) (string, error) {
	if !m.cfg.Enabled {
		return "", nil
	}
	if info, err := os.Stat(srcDir); os.IsNotExist(err) || (err == nil && !info.IsDir()) {
		return "", nil
	}

	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	if err := m.rotate(key); err != nil {
		return "", fmt.Errorf("rotating backups: %w", err)
	}

	dst := filepath.Join(m.backupDir, key+suffix+"1")
	if err := CopyDir(srcDir, dst); err != nil {
		os.RemoveAll(dst)
		return "", fmt.Errorf("copying %s: %w", srcDir, err)
	}
	return dst, nil
}

// Restore replaces dstDir with the most recent backup for key.
func (m *Manager) Restore(key, dstDir string) error {
	backups, err := m.List(key)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backup found for %s", key)
	}
	if err := os.RemoveAll(dstDir); err != nil {
		return fmt.Errorf("clearing %s: %w", dstDir, err)
	}
	return CopyDir(backups[0], dstDir)
}

// List returns the paths to existing backups for key, newest first.
func (m *Manager) List(key string) ([]string, error) {
	entries, err := os.ReadDir(m.backupDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	type numbered struct {
		path string
		n    int
	}
	var found []numbered
	prefix := key + suffix
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), prefix))
		if err != nil {
			continue
		}
		found = append(found, numbered{path: filepath.Join(m.backupDir, entry.Name()), n: n})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

// Dir returns the directory where backups are stored.
func (m *Manager) Dir() string {
	return m.backupDir
}

// rotate shifts bak.N to bak.N+1, oldest first, deleting anything beyond MaxCount.
func (m *Manager) rotate(key string) error {
	backups, err := m.List(key)
	if err != nil {
		return err
	}
	prefix := key + suffix
	for i := len(backups) - 1; i >= 0; i-- {
		path := backups[i]
		n, _ := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), prefix))
		next := n + 1
		if next > m.cfg.MaxCount {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("deleting old backup %s: %w", path, err)
			}
			continue
		}
		newPath := filepath.Join(m.backupDir, fmt.Sprintf("%s%d", prefix, next))
		if err := os.Rename(path, newPath); err != nil {
			return fmt.Errorf("renaming backup %s to %s: %w", path, newPath, err)
		}
	}
	return nil
}

// CopyDir copies the regular files and directories under src into dst.
// Symlinks and other special files are skipped.
func CopyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

// copyFile copies a file from src to dst, keeping its permissions.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return dstFile.Sync()
}
