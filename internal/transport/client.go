package transport

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// maxRedirects bounds redirect chains followed for a single fetch.
const maxRedirects = 10

// ClientOptions configures the *http.Client shared by every flavor.
type ClientOptions struct {
	// Timeout bounds a whole request including reading the body.
	Timeout time.Duration

	// Cookie is a raw Cookie header value sent with every request,
	// e.g. "session_id=abc123; lang=en".
	Cookie string

	// Headers are set on every request, overriding defaults.
	Headers map[string]string
}

// NewHTTPClient wraps base in a client with a cookie jar, a redirect limit
// and the configured cookie and headers. A nil base uses a direct transport.
//
// The cookie jar uses the public suffix list so cookies set by one site are
// never sent to a sibling registrable domain.
func NewHTTPClient(base http.RoundTripper, opts ClientOptions) *http.Client {
	if base == nil {
		base = newDirectTransport(false)
	}
	if opts.Cookie != "" || len(opts.Headers) > 0 {
		base = &headerInjectingTransport{
			base:    base,
			cookie:  opts.Cookie,
			headers: opts.Headers,
		}
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) //nolint:errcheck // cookiejar.New never fails

	return &http.Client{
		Transport: base,
		Timeout:   opts.Timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// newDirectTransport returns a pooled *http.Transport. insecure disables
// certificate checks, which onion services need because they serve
// self-signed certificates.
func newDirectTransport(insecure bool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	t.MaxIdleConns = 10
	t.MaxIdleConnsPerHost = 2
	t.IdleConnTimeout = 30 * time.Second

	if insecure {
		t.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // Required for .onion services
		}
	}
	return t
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// custom headers and cookies into every request, redirects included.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
