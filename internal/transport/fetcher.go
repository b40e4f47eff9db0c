package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/spidey/internal/model"
)

// Defaults applied by New when Settings leaves a field zero.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultUserAgent   = "spidey/1.0 (+https://github.com/nao1215/spidey)"
	DefaultMaxBodySize = int64(10 * 1024 * 1024)
)

// Settings selects and configures a transport flavor.
type Settings struct {
	Kind Kind

	// ProxyAddress is the SOCKS5 "host:port" for KindSOCKS.
	ProxyAddress string

	// TorStartupTimeout bounds the embedded daemon bootstrap for KindTor.
	TorStartupTimeout time.Duration

	Timeout     time.Duration
	UserAgent   string
	MaxBodySize int64

	// Cookie and Headers are injected into every request.
	Cookie  string
	Headers map[string]string

	// SkipProxyCheck disables the SOCKS5 handshake probe done by New.
	SkipProxyCheck bool

	Logger *slog.Logger
}

// Fetcher retrieves pages and files over HTTP. It satisfies the crawler's
// Fetcher interface and serves the downloader through Open.
type Fetcher struct {
	client      *http.Client
	kind        Kind
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger

	// tor is the embedded daemon backing KindTor, stopped by Close.
	tor *EmbeddedTor
}

// New builds a Fetcher for the flavor in s. For KindTor it starts an
// embedded Tor daemon, which Close stops again.
func New(ctx context.Context, s Settings) (*Fetcher, error) {
	s = s.withDefaults()

	clientOpts := ClientOptions{
		Timeout: s.Timeout,
		Cookie:  s.Cookie,
		Headers: s.Headers,
	}

	f := &Fetcher{
		kind:        s.Kind,
		userAgent:   s.UserAgent,
		maxBodySize: s.MaxBodySize,
		logger:      s.Logger,
	}

	switch s.Kind {
	case KindHTTP:
		f.client = NewHTTPClient(nil, clientOpts)

	case KindSOCKS:
		if s.ProxyAddress == "" {
			return nil, ErrProxyRequired
		}
		dialer, err := NewSOCKSDialer(s.ProxyAddress)
		if err != nil {
			return nil, err
		}
		if !s.SkipProxyCheck {
			if status := dialer.CheckConnection(ctx); status != ProxyStatusOK {
				return nil, fmt.Errorf("proxy %s: %w", s.ProxyAddress, status.Error())
			}
		}
		f.client = NewHTTPClient(dialer.Transport(false), clientOpts)

	case KindTor:
		s.Logger.Info("starting embedded Tor daemon", "timeout", s.TorStartupTimeout)
		tor := NewEmbeddedTor(WithStartupTimeout(s.TorStartupTimeout))
		if err := tor.Start(ctx); err != nil {
			return nil, err
		}
		dialer, err := tor.Dialer()
		if err != nil {
			_ = tor.Stop() //nolint:errcheck // Best effort cleanup
			return nil, err
		}
		s.Logger.Info("embedded Tor ready", "socks", tor.SocksAddr())
		f.tor = tor
		f.client = NewHTTPClient(dialer.Transport(true), clientOpts)

	default:
		return nil, ErrUnknownKind
	}

	s.Logger.Debug("transport ready",
		"kind", s.Kind,
		"timeout", s.Timeout,
		"cookie", s.Cookie,
		"headers", len(s.Headers))
	return f, nil
}

// NewWithClient wraps an existing client as a KindHTTP Fetcher. Tests use it
// with httptest servers.
func NewWithClient(client *http.Client, userAgent string, maxBodySize int64) *Fetcher {
	s := Settings{UserAgent: userAgent, MaxBodySize: maxBodySize}.withDefaults()
	return &Fetcher{
		client:      client,
		kind:        KindHTTP,
		userAgent:   s.UserAgent,
		maxBodySize: s.MaxBodySize,
		logger:      s.Logger,
	}
}

func (s Settings) withDefaults() Settings {
	if s.Kind == "" {
		s.Kind = KindHTTP
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}
	if s.MaxBodySize <= 0 {
		s.MaxBodySize = DefaultMaxBodySize
	}
	if s.TorStartupTimeout <= 0 {
		s.TorStartupTimeout = DefaultTorStartupTimeout
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	return s
}

// Kind reports the flavor this Fetcher was built for.
func (f *Fetcher) Kind() Kind {
	return f.kind
}

// Fetch returns at most MaxBodySize bytes of the body at url. An empty url
// yields (nil, nil). Network errors and non-2xx responses are returned as
// *model.TransportError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, nil
	}

	resp, err := f.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, &model.TransportError{URL: url, Err: err}
	}
	return body, nil
}

// Open issues a GET for url and returns the response with a 2xx status.
// The caller must close the body. Downloads stream through it instead of
// buffering whole files.
func (f *Fetcher) Open(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &model.TransportError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &model.TransportError{URL: url, Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_ = resp.Body.Close() //nolint:errcheck // body is discarded
		return nil, &model.TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	f.logger.Debug("fetched", "url", url, "status", resp.StatusCode, "content_type", resp.Header.Get("Content-Type"))
	return resp, nil
}

// Close releases the embedded Tor daemon, if any.
func (f *Fetcher) Close() error {
	if f.tor == nil {
		return nil
	}
	return f.tor.Stop()
}
