// Package netdiag builds the HTTP transport skiller uses to reach GitHub and
// classifies transport failures.
//
// The distinction that matters most is between the source host failing and an
// intermediary refusing to let the request out. A proxy that answers CONNECT
// with 403 is an egress policy decision; retrying or changing arguments will
// not help until network access is restored.
package netdiag

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"

	serrors "github.com/spetersoncode/skiller/internal/errors"
	"golang.org/x/net/http/httpproxy"
)

// TunnelError is returned when a proxy rejects a CONNECT request.
type TunnelError struct {
	// Proxy is the proxy host, without credentials.
	Proxy      string
	StatusCode int
	Status     string
}

func (e *TunnelError) Error() string {
	return fmt.Sprintf("CONNECT tunnel failed, response %d", e.StatusCode)
}

// ProxyFunc resolves the proxy for a request URL; nil means no proxy.
type ProxyFunc func(*url.URL) (*url.URL, error)

// EnvironmentProxy returns the proxy configuration from HTTPS_PROXY,
// HTTP_PROXY and NO_PROXY (and their lowercase forms).
func EnvironmentProxy() ProxyFunc {
	return httpproxy.FromEnvironment().ProxyFunc()
}

// NewTransport returns a transport that routes through proxy and reports
// rejected CONNECT tunnels as *TunnelError. A nil proxy uses the environment.
func NewTransport(proxy ProxyFunc) *http.Transport {
	if proxy == nil {
		proxy = EnvironmentProxy()
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = func(r *http.Request) (*url.URL, error) {
		return proxy(r.URL)
	}
	t.OnProxyConnectResponse = func(_ context.Context, proxyURL *url.URL, _ *http.Request, res *http.Response) error {
		if res.StatusCode == http.StatusOK {
			return nil
		}
		return &TunnelError{
			Proxy:      Redact(proxyURL),
			StatusCode: res.StatusCode,
			Status:     res.Status,
		}
	}
	return t
}

// ProxyFor returns the redacted proxy that would carry a request to target,
// or "" for a direct connection.
func ProxyFor(proxy ProxyFunc, target string) string {
	if proxy == nil {
		proxy = EnvironmentProxy()
	}
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	p, err := proxy(u)
	if err != nil || p == nil {
		return ""
	}
	return Redact(p)
}

// Redact renders a proxy URL without user info.
func Redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Host
}

// Classify maps a transport error to an error kind.
func Classify(err error) serrors.Kind {
	if err == nil {
		return serrors.KindGeneral
	}

	var tunnel *TunnelError
	if errors.As(err, &tunnel) {
		return serrors.KindEgressBlocked
	}
	if errors.Is(err, context.Canceled) {
		return serrors.KindGeneral
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return serrors.KindNetwork
	}

	// A proxy that is down or unreachable is a transport failure; only a
	// refused CONNECT (TunnelError, above) means egress is blocked.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return serrors.KindNetwork
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return serrors.KindNetwork
	}

	var certErr *tls.CertificateVerificationError
	var authErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &authErr) || errors.As(err, &hostErr) {
		return serrors.KindNetwork
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return serrors.KindNetwork
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return serrors.KindNetwork
	}

	return serrors.KindGeneral
}

// Wrap converts a transport error talking to host into a structured error.
// remediation is offered when egress is blocked.
func Wrap(err error, host, remediation string) error {
	if err == nil {
		return nil
	}
	var existing *serrors.Error
	if errors.As(err, &existing) {
		return err
	}

	kind := Classify(err)
	switch kind {
	case serrors.KindEgressBlocked:
		msg := fmt.Sprintf("network access to %s is blocked", host)
		var tunnel *TunnelError
		if errors.As(err, &tunnel) && tunnel.Proxy != "" {
			msg = fmt.Sprintf("network access to %s is blocked by proxy %s", host, tunnel.Proxy)
		}
		suggestion := "The failure is an egress policy, not a problem with the source. Retry once network access is restored."
		if remediation != "" {
			suggestion = "The failure is an egress policy, not a problem with the source. Once network access is restored, run:\n  " + remediation
		}
		return serrors.Wrap(err, kind, "%s", msg).WithSuggestion(suggestion)
	case serrors.KindNetwork:
		return serrors.Wrap(err, kind, "failed to reach %s", host).
			WithSuggestion("Check your network connection and proxy settings (HTTPS_PROXY, NO_PROXY).")
	default:
		return serrors.Wrap(err, kind, "request to %s failed", host)
	}
}

// Retryable reports whether a transport error is worth retrying.
// Blocked egress never is.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return Classify(err) == serrors.KindNetwork
}
