package github

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	serrors "github.com/spetersoncode/skiller/internal/errors"
	"github.com/spetersoncode/skiller/internal/source"
)

// RemoteRef is one advertised ref.
type RemoteRef struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// RemoteRefs is the ref advertisement of a repository, the equivalent of
// `git ls-remote`.
type RemoteRefs struct {
	// Head is the symbolic target of HEAD, e.g. refs/heads/main.
	Head string      `json:"head,omitempty"`
	Refs []RemoteRef `json:"refs"`
}

// Lookup resolves a short or full ref name to its hash. Branches win over
// tags, and peeled tag entries (^{}) are preferred for annotated tags.
func (r *RemoteRefs) Lookup(ref string) (string, bool) {
	if ref == "" || ref == "HEAD" {
		if r.Head == "" {
			return r.find("HEAD")
		}
		ref = r.Head
	}
	candidates := []string{ref}
	if !strings.HasPrefix(ref, "refs/") {
		candidates = append(candidates, "refs/heads/"+ref, "refs/tags/"+ref)
	}
	for _, name := range candidates {
		if hash, ok := r.find(name + "^{}"); ok {
			return hash, true
		}
		if hash, ok := r.find(name); ok {
			return hash, true
		}
	}
	return "", false
}

func (r *RemoteRefs) find(name string) (string, bool) {
	for _, ref := range r.Refs {
		if ref.Name == name {
			return ref.Hash, true
		}
	}
	return "", false
}

// ListRemote fetches the ref advertisement of src's repository over git smart
// HTTP.
func (c *Client) ListRemote(ctx context.Context, src source.Source) (*RemoteRefs, error) {
	endpoint := fmt.Sprintf("%s/%s/%s.git/info/refs?service=git-upload-pack", c.gitURL, src.Owner, src.Repo)
	resp, err := c.get(ctx, endpoint, "")
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) && (status.StatusCode == http.StatusNotFound || status.StatusCode == http.StatusUnauthorized) {
			return nil, serrors.NotFound("repository %s not found", src.FullName()).
				WithSuggestion("Check the owner and name, or set GITHUB_TOKEN for private repositories.")
		}
		return nil, c.wrap(err, endpoint, src)
	}
	defer resp.Body.Close()

	refs, err := ParseAdvertisement(resp.Body)
	if err != nil {
		return nil, serrors.Wrap(err, serrors.KindGeneral, "invalid ref advertisement from %s", src.FullName())
	}
	return refs, nil
}

// ParseAdvertisement parses a git-upload-pack ref advertisement.
func ParseAdvertisement(r io.Reader) (*RemoteRefs, error) {
	br := bufio.NewReader(r)
	result := &RemoteRefs{}

	first := true
	for {
		line, flush, err := readPktLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if flush {
			continue
		}
		line = strings.TrimSuffix(line, "\n")
		if strings.HasPrefix(line, "# service=") {
			continue
		}

		refPart, caps, hasCaps := strings.Cut(line, "\x00")
		if first && hasCaps {
			for _, cap := range strings.Fields(caps) {
				if target, ok := strings.CutPrefix(cap, "symref=HEAD:"); ok {
					result.Head = target
				}
			}
		}
		first = false

		hash, name, ok := strings.Cut(refPart, " ")
		if !ok || len(hash) != 40 {
			return nil, fmt.Errorf("malformed ref line %q", refPart)
		}
		// An empty repository advertises capabilities^{} with a zero hash.
		if name == "capabilities^{}" {
			continue
		}
		result.Refs = append(result.Refs, RemoteRef{Name: name, Hash: hash})
	}

	sort.SliceStable(result.Refs, func(i, j int) bool {
		return refOrder(result.Refs[i].Name) < refOrder(result.Refs[j].Name)
	})
	return result, nil
}

// refOrder keeps HEAD first, as git ls-remote prints it.
func refOrder(name string) int {
	if name == "HEAD" {
		return 0
	}
	return 1
}

// readPktLine reads one pkt-line. flush is true for a 0000 packet.
func readPktLine(r *bufio.Reader) (string, bool, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return "", false, fmt.Errorf("truncated pkt-line header")
		}
		return "", false, err
	}
	n, err := strconv.ParseUint(string(head[:]), 16, 16)
	if err != nil {
		return "", false, fmt.Errorf("invalid pkt-line length %q", string(head[:]))
	}
	if n == 0 {
		return "", true, nil
	}
	if n < 4 {
		return "", false, fmt.Errorf("invalid pkt-line length %d", n)
	}
	buf := make([]byte, n-4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", false, fmt.Errorf("truncated pkt-line: %w", err)
	}
	return string(buf), false, nil
}
