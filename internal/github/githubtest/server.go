// Package githubtest provides an in-process fake of the GitHub endpoints
// skiller talks to: the REST API, codeload archives, and git smart HTTP.
package githubtest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

// Server is a fake GitHub. All three base URLs point at the same server.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	repos    map[string]*repo
	commits  int
	failures []int
	hits     map[string]int
}

type repo struct {
	defaultBranch string
	branches      map[string]string
	tags          map[string]string
	// trees maps a commit SHA to its files.
	trees map[string]map[string]string
}

// NewServer starts a fake GitHub that is closed when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		repos: make(map[string]*repo),
		hits:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}", s.handleRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}/commits/{ref}", s.handleCommit)
	mux.HandleFunc("GET /{owner}/{repo}/tar.gz/{sha}", s.handleArchive)
	mux.HandleFunc("GET /{owner}/{repo}/info/refs", s.handleInfoRefs)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		var fail int
		if len(s.failures) > 0 {
			fail, s.failures = s.failures[0], s.failures[1:]
		}
		s.mu.Unlock()

		if fail != 0 {
			writeMessage(w, fail, http.StatusText(fail))
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Server.Close)
	return s
}

// Push records a new commit with files on branch of owner/name, creating the
// repository (with branch as default) if needed. It returns the commit SHA.
func (s *Server) Push(owner, name, branch string, files map[string]string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := owner + "/" + name
	r, ok := s.repos[key]
	if !ok {
		r = &repo{
			defaultBranch: branch,
			branches:      make(map[string]string),
			tags:          make(map[string]string),
			trees:         make(map[string]map[string]string),
		}
		s.repos[key] = r
	}

	s.commits++
	sum := sha1.Sum([]byte(fmt.Sprintf("%s@%s#%d", key, branch, s.commits)))
	sha := hex.EncodeToString(sum[:])

	tree := make(map[string]string, len(files))
	for p, content := range files {
		tree[p] = content
	}
	r.trees[sha] = tree
	r.branches[branch] = sha
	return sha
}

// Tag points tag at the current head of branch.
func (s *Server) Tag(owner, name, branch, tag string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.repos[owner+"/"+name]
	sha := r.branches[branch]
	r.tags[tag] = sha
	return sha
}

// FailNext makes the next requests fail with the given statuses, in order.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Server) lookup(owner, name string) *repo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repos[owner+"/"+name]
}

func (s *Server) handleRepo(w http.ResponseWriter, r *http.Request) {
	rp := s.lookup(r.PathValue("owner"), r.PathValue("repo"))
	if rp == nil {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"default_branch": rp.defaultBranch})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	rp := s.lookup(r.PathValue("owner"), r.PathValue("repo"))
	if rp == nil {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	ref := r.PathValue("ref")

	s.mu.Lock()
	sha, ok := rp.branches[ref]
	if !ok {
		sha, ok = rp.tags[ref]
	}
	if !ok {
		if _, exists := rp.trees[ref]; exists {
			sha, ok = ref, true
		}
	}
	s.mu.Unlock()

	if !ok {
		writeMessage(w, http.StatusUnprocessableEntity, "No commit found for SHA: "+ref)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.github.sha")
	_, _ = w.Write([]byte(sha))
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("repo")
	rp := s.lookup(r.PathValue("owner"), name)
	sha := r.PathValue("sha")
	if rp == nil {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}

	s.mu.Lock()
	files, ok := rp.trees[sha]
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}

	data, err := Tarball(name+"-"+sha, files)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/x-gzip")
	_, _ = w.Write(data)
}

func (s *Server) handleInfoRefs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("service") != "git-upload-pack" {
		writeMessage(w, http.StatusForbidden, "Service not enabled")
		return
	}
	rp := s.lookup(r.PathValue("owner"), strings.TrimSuffix(r.PathValue("repo"), ".git"))
	if rp == nil {
		writeMessage(w, http.StatusNotFound, "Repository not found.")
		return
	}

	s.mu.Lock()
	head := rp.branches[rp.defaultBranch]
	refs := make(map[string]string)
	for b, sha := range rp.branches {
		refs["refs/heads/"+b] = sha
	}
	for tag, sha := range rp.tags {
		refs["refs/tags/"+tag] = sha
	}
	defaultBranch := rp.defaultBranch
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
	_, _ = w.Write(Advertisement(head, defaultBranch, refs))
}

// Advertisement renders a git-upload-pack ref advertisement.
func Advertisement(head, defaultBranch string, refs map[string]string) []byte {
	var buf bytes.Buffer
	writePkt(&buf, "# service=git-upload-pack\n")
	buf.WriteString("0000")

	caps := "multi_ack side-band-64k ofs-delta symref=HEAD:refs/heads/" + defaultBranch + " agent=git/github"
	writePkt(&buf, head+" HEAD\x00"+caps+"\n")

	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writePkt(&buf, refs[name]+" "+name+"\n")
	}
	buf.WriteString("0000")
	return buf.Bytes()
}

func writePkt(buf *bytes.Buffer, line string) {
	fmt.Fprintf(buf, "%04x%s", len(line)+4, line)
}

// Tarball builds a gzipped tar with every file under root/, the layout
// codeload uses.
func Tarball(root string, files map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{Name: root + "/", Typeflag: tar.TypeDir, Mode: 0755}); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		content := files[name]
		hdr := &tar.Header{
			Name:     root + "/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
