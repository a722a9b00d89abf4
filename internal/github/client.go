// Package github fetches skills from GitHub: commit resolution over the REST
// API, repository archives from codeload, and ref listing over git smart HTTP.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	serrors "github.com/spetersoncode/skiller/internal/errors"
	"github.com/spetersoncode/skiller/internal/netdiag"
	"github.com/spetersoncode/skiller/internal/source"
	"go.uber.org/zap"
)

// Default endpoints.
const (
	DefaultAPIURL      = "https://api.github.com"
	DefaultCodeloadURL = "https://codeload.github.com"
	DefaultGitURL      = "https://github.com"
)

// Options configures a Client.
type Options struct {
	APIURL      string
	CodeloadURL string
	GitURL      string
	Token       string
	UserAgent   string

	// Timeout bounds how long each request waits for response headers.
	// Reading the body is bounded only by the caller's context, so large
	// archives can stream on slow links. Default: 30s.
	Timeout time.Duration
	// MaxRetries is the number of retries for transient failures.
	MaxRetries int
	// RetryDelay is the initial backoff. Default: 500ms.
	RetryDelay time.Duration

	// Proxy overrides the proxy resolution; nil uses the environment.
	Proxy netdiag.ProxyFunc
	// Transport overrides the HTTP transport entirely (tests).
	Transport http.RoundTripper

	Logger *zap.Logger
}

// Client talks to GitHub.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	codeloadURL string
	gitURL      string
	token       string
	userAgent   string
	maxRetries  int
	retryDelay  time.Duration
	timeout     time.Duration
	proxy       netdiag.ProxyFunc
	logger      *zap.Logger
}

// NewClient creates a new Client.
func NewClient(opts Options) *Client {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.CodeloadURL == "" {
		opts.CodeloadURL = DefaultCodeloadURL
	}
	if opts.GitURL == "" {
		opts.GitURL = DefaultGitURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "skiller"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Proxy == nil {
		opts.Proxy = netdiag.EnvironmentProxy()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	transport := opts.Transport
	if transport == nil {
		transport = netdiag.NewTransport(opts.Proxy)
	}

	return &Client{
		httpClient:  &http.Client{Transport: transport},
		apiURL:      strings.TrimRight(opts.APIURL, "/"),
		codeloadURL: strings.TrimRight(opts.CodeloadURL, "/"),
		gitURL:      strings.TrimRight(opts.GitURL, "/"),
		token:       opts.Token,
		userAgent:   opts.UserAgent,
		maxRetries:  opts.MaxRetries,
		retryDelay:  opts.RetryDelay,
		timeout:     opts.Timeout,
		proxy:       opts.Proxy,
		logger:      opts.Logger,
	}
}

// StatusError is a non-success HTTP response from GitHub itself.
type StatusError struct {
	URL        string
	StatusCode int
	Message    string
	// RateLimited is set when GitHub reports an exhausted rate limit.
	RateLimited bool
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Commit is a ref resolved to a commit.
type Commit struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// ResolveCommit resolves src.Ref (or the default branch) to a commit SHA.
func (c *Client) ResolveCommit(ctx context.Context, src source.Source) (*Commit, error) {
	ref := src.Ref
	if ref == "" {
		branch, err := c.DefaultBranch(ctx, src)
		if err != nil {
			return nil, err
		}
		ref = branch
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits/%s", c.apiURL, src.Owner, src.Repo, url.PathEscape(ref))
	resp, err := c.get(ctx, endpoint, "application/vnd.github.sha")
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) && (status.StatusCode == http.StatusNotFound || status.StatusCode == http.StatusUnprocessableEntity) {
			return nil, serrors.NotFound("ref %q not found in %s", ref, src.FullName()).
				WithSuggestion(fmt.Sprintf("Run 'skiller probe %s' to list available refs.", src.FullName()))
		}
		return nil, c.wrap(err, endpoint, src)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return nil, c.wrap(err, endpoint, src)
	}
	sha := strings.TrimSpace(string(body))
	if len(sha) != 40 {
		return nil, serrors.General("unexpected commit response for %s@%s", src.FullName(), ref)
	}
	return &Commit{Ref: ref, SHA: sha}, nil
}

// DefaultBranch returns the repository's default branch.
func (c *Client) DefaultBranch(ctx context.Context, src source.Source) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s", c.apiURL, src.Owner, src.Repo)
	resp, err := c.get(ctx, endpoint, "application/vnd.github+json")
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
			return "", serrors.NotFound("repository %s not found", src.FullName()).
				WithSuggestion("Check the owner and name, or set GITHUB_TOKEN for private repositories.")
		}
		return "", c.wrap(err, endpoint, src)
	}
	defer resp.Body.Close()

	var repo struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return "", serrors.Wrap(err, serrors.KindGeneral, "failed to decode repository metadata")
	}
	if repo.DefaultBranch == "" {
		return "", serrors.General("repository %s has no default branch", src.FullName())
	}
	return repo.DefaultBranch, nil
}

// DownloadArchive streams the gzipped tarball of the repository at commit.
// The caller must close the returned reader.
func (c *Client) DownloadArchive(ctx context.Context, src source.Source, commit string) (io.ReadCloser, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/tar.gz/%s", c.codeloadURL, src.Owner, src.Repo, url.PathEscape(commit))
	resp, err := c.get(ctx, endpoint, "")
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
			return nil, serrors.NotFound("archive for %s@%s not found", src.FullName(), commit)
		}
		return nil, c.wrap(err, endpoint, src)
	}
	return resp.Body, nil
}

// ProxyFor reports the proxy used to reach rawURL, for diagnostics.
func (c *Client) ProxyFor(rawURL string) string {
	return netdiag.ProxyFor(c.proxy, rawURL)
}

// get performs a GET with retries on transient failures. A non-2xx response
// is returned as *StatusError with the body already closed.
func (c *Client) get(ctx context.Context, endpoint, accept string) (*http.Response, error) {
	var resp *http.Response
	attempt := 0

	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(c.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		if c.token != "" && c.sendsToken(req.URL) {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		c.logger.Debug("http request", zap.String("url", endpoint), zap.Int("attempt", attempt))

		r, err := c.do(req)
		if err != nil {
			if netdiag.Retryable(err) {
				c.logger.Debug("retrying after transport error", zap.String("url", endpoint), zap.Error(err))
				return retry.RetryableError(err)
			}
			return err
		}

		if r.StatusCode >= 200 && r.StatusCode < 300 {
			resp = r
			return nil
		}

		status := readStatusError(endpoint, r)
		if status.retryable() {
			c.logger.Debug("retrying after status", zap.String("url", endpoint), zap.Int("status", status.StatusCode))
			return retry.RetryableError(status)
		}
		return status
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// sendsToken reports whether the token may be sent to u. Tokens only go to
// the configured GitHub endpoints.
func (c *Client) sendsToken(u *url.URL) bool {
	for _, base := range []string{c.apiURL, c.codeloadURL, c.gitURL} {
		b, err := url.Parse(base)
		if err == nil && b.Host == u.Host {
			return true
		}
	}
	return false
}

// wrap converts a request error into a structured error for src.
func (c *Client) wrap(err error, endpoint string, src source.Source) error {
	host := endpoint
	if u, perr := url.Parse(endpoint); perr == nil {
		host = u.Host
	}

	var status *StatusError
	if errors.As(err, &status) {
		kind := serrors.FromHTTPStatus(status.StatusCode)
		e := serrors.Wrap(err, kind, "GitHub request failed")
		switch {
		case status.RateLimited:
			e.WithSuggestion("GitHub rate limit exceeded. Set GITHUB_TOKEN or wait for the limit to reset.")
		case status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden:
			e.WithSuggestion("Check GITHUB_TOKEN; private repositories need a token with read access.")
		}
		return e
	}

	wrapped := netdiag.Wrap(err, host, src.RemediationCommand())
	var serr *serrors.Error
	if errors.As(wrapped, &serr) {
		if proxy := c.ProxyFor(endpoint); proxy != "" {
			serr.WithDetails("proxy", proxy)
		}
		serr.WithDetails("host", host)
	}
	return wrapped
}

// errResponseTimeout is the cancel cause when headers do not arrive in time.
var errResponseTimeout = fmt.Errorf("timed out awaiting response headers: %w", context.DeadlineExceeded)

// do sends req, giving up if response headers take longer than the client
// timeout. The returned body keeps the request alive until it is closed.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancelCause(req.Context())
	timer := time.AfterFunc(c.timeout, func() { cancel(errResponseTimeout) })

	r, err := c.httpClient.Do(req.WithContext(ctx))
	if !timer.Stop() && err == nil {
		r.Body.Close()
		err = errResponseTimeout
	}
	if err != nil {
		if errors.Is(context.Cause(ctx), errResponseTimeout) {
			err = &url.Error{Op: req.Method, URL: req.URL.String(), Err: errResponseTimeout}
		}
		cancel(nil)
		return nil, err
	}

	r.Body = &cancelBody{ReadCloser: r.Body, cancel: func() { cancel(nil) }}
	return r, nil
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel func()
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func readStatusError(endpoint string, r *http.Response) *StatusError {
	defer r.Body.Close()

	status := &StatusError{URL: endpoint, StatusCode: r.StatusCode}
	if r.StatusCode == http.StatusForbidden || r.StatusCode == http.StatusTooManyRequests {
		status.RateLimited = r.Header.Get("X-RateLimit-Remaining") == "0"
	}

	var body struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
	if json.Unmarshal(data, &body) == nil {
		status.Message = body.Message
	}
	return status
}
