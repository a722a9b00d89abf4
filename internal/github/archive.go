package github

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	serrors "github.com/spetersoncode/skiller/internal/errors"
)

// Extraction limits.
const (
	MaxFileSize  = 10 << 20
	MaxTotalSize = 100 << 20
	MaxFiles     = 2000
)

// ExtractOptions controls ExtractSubtree.
type ExtractOptions struct {
	// Subpath selects the directory inside the repository; "" is the root.
	Subpath string
	// Exclude holds doublestar patterns, relative to Subpath, of files to skip.
	Exclude []string
}

// ExtractSubtree reads a codeload tar.gz stream and writes the files under
// opts.Subpath into dest. The archive's top-level directory is stripped.
// Symlinks are skipped. It returns the written files relative to dest,
// sorted, and a NotFound error if the sub-path has no files.
func ExtractSubtree(r io.Reader, dest string, opts ExtractOptions) ([]string, error) {
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, serrors.InvalidArgs("invalid exclude pattern %q", pattern)
		}
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, serrors.Wrap(err, serrors.KindGeneral, "invalid archive")
	}
	defer gz.Close()

	prefix := ""
	if opts.Subpath != "" {
		prefix = opts.Subpath + "/"
	}

	var files []string
	var total int64
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, serrors.Wrap(err, serrors.KindNetwork, "failed to read archive")
		}

		rel, ok := archiveRelPath(hdr.Name)
		if !ok {
			continue
		}
		if prefix != "" {
			if !strings.HasPrefix(rel, prefix) {
				continue
			}
			rel = strings.TrimPrefix(rel, prefix)
		}
		if rel == "" {
			continue
		}
		if excluded(opts.Exclude, rel) {
			continue
		}

		target := filepath.Join(dest, filepath.FromSlash(rel))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, serrors.WrapInternal(err, "failed to create %s", rel)
			}
		case tar.TypeReg:
			if hdr.Size > MaxFileSize {
				return nil, serrors.General("file %s exceeds the %d byte limit", rel, MaxFileSize)
			}
			total += hdr.Size
			if total > MaxTotalSize {
				return nil, serrors.General("skill exceeds the %d byte limit", MaxTotalSize)
			}
			if len(files) >= MaxFiles {
				return nil, serrors.General("skill exceeds the %d file limit", MaxFiles)
			}
			if err := writeFile(target, tr, hdr.FileInfo().Mode()); err != nil {
				return nil, serrors.WrapInternal(err, "failed to write %s", rel)
			}
			files = append(files, rel)
		default:
			// Symlinks, hardlinks and devices are not installed.
		}
	}

	if len(files) == 0 {
		where := opts.Subpath
		if where == "" {
			where = "."
		}
		return nil, serrors.NotFound("path %q not found in repository archive", where)
	}

	sort.Strings(files)
	return files, nil
}

// archiveRelPath strips the top-level directory from an archive entry name
// and rejects names that would escape it.
func archiveRelPath(name string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	_, rest, found := strings.Cut(name, "/")
	if !found {
		return "", false
	}
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return "", true
	}
	if path.IsAbs(rest) {
		return "", false
	}
	cleaned := path.Clean(rest)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

func excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// A pattern naming a directory excludes its contents.
		if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/")+"/**", rel); ok {
			return true
		}
	}
	return false
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	perm := mode.Perm() | 0600
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, io.LimitReader(r, MaxFileSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > MaxFileSize {
		return fmt.Errorf("file larger than %d bytes", MaxFileSize)
	}
	return nil
}
