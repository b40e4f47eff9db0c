package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	spideylog "github.com/nao1215/spidey/internal/log"
	"github.com/nao1215/spidey/internal/model"
)

func TestFetcherFetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<p>%s</p>", r.Header.Get("User-Agent"))
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 1024))) //nolint:errcheck
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	t.Run("returns body and sends user agent", func(t *testing.T) {
		t.Parallel()

		f := NewWithClient(server.Client(), "spidey-test", 0)
		body, err := f.Fetch(context.Background(), server.URL+"/page")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != "<p>spidey-test</p>" {
			t.Errorf("unexpected body %q", body)
		}
	})

	t.Run("empty url yields nothing", func(t *testing.T) {
		t.Parallel()

		f := NewWithClient(server.Client(), "", 0)
		body, err := f.Fetch(context.Background(), "")
		if err != nil || body != nil {
			t.Errorf("expected (nil, nil), got (%q, %v)", body, err)
		}
	})

	t.Run("non-2xx is a transport error with status", func(t *testing.T) {
		t.Parallel()

		f := NewWithClient(server.Client(), "", 0)
		_, err := f.Fetch(context.Background(), server.URL+"/missing")

		var terr *model.TransportError
		if !errors.As(err, &terr) {
			t.Fatalf("expected *model.TransportError, got %T: %v", err, err)
		}
		if terr.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", terr.StatusCode)
		}
	})

	t.Run("network failure is a transport error", func(t *testing.T) {
		t.Parallel()

		f := NewWithClient(server.Client(), "", 0)
		_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")

		var terr *model.TransportError
		if !errors.As(err, &terr) {
			t.Fatalf("expected *model.TransportError, got %T: %v", err, err)
		}
		if terr.StatusCode != 0 || terr.Err == nil {
			t.Errorf("expected wrapped network error, got %+v", terr)
		}
	})

	t.Run("limits body size", func(t *testing.T) {
		t.Parallel()

		f := NewWithClient(server.Client(), "", 100)
		body, err := f.Fetch(context.Background(), server.URL+"/big")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(body) != 100 {
			t.Errorf("expected 100 bytes, got %d", len(body))
		}
	})
}

func TestNewHTTPClientInjectsSiteSettings(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s|%s", r.Header.Get("Cookie"), r.Header.Get("X-Custom"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.Client().Transport, ClientOptions{
		Cookie:  "session_id=abc123",
		Headers: map[string]string{"X-Custom": "value"},
	})
	f := NewWithClient(client, "", 0)

	body, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "session_id=abc123|value" {
		t.Errorf("expected injected cookie and header, got %q", body)
	}
}

func TestNewHTTPClientRedirectLimit(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer server.Close()

	client := NewHTTPClient(server.Client().Transport, ClientOptions{})
	_, err := NewWithClient(client, "", 0).Fetch(context.Background(), server.URL+"/")

	var terr *model.TransportError
	if !errors.As(err, &terr) || terr.StatusCode != http.StatusFound {
		t.Errorf("expected redirect loop to stop with 302, got %v", err)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	quiet := spideylog.Discard()

	t.Run("http flavor", func(t *testing.T) {
		t.Parallel()

		f, err := New(context.Background(), Settings{Logger: quiet})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer f.Close()
		if f.Kind() != KindHTTP {
			t.Errorf("expected http, got %s", f.Kind())
		}
	})

	t.Run("socks flavor requires a proxy", func(t *testing.T) {
		t.Parallel()

		_, err := New(context.Background(), Settings{Kind: KindSOCKS, Logger: quiet})
		if !errors.Is(err, ErrProxyRequired) {
			t.Errorf("expected ErrProxyRequired, got %v", err)
		}
	})

	t.Run("socks flavor rejects malformed address", func(t *testing.T) {
		t.Parallel()

		_, err := New(context.Background(), Settings{Kind: KindSOCKS, ProxyAddress: "nope", Logger: quiet})
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("socks flavor checks the proxy", func(t *testing.T) {
		t.Parallel()

		_, err := New(context.Background(), Settings{Kind: KindSOCKS, ProxyAddress: "127.0.0.1:59997", Logger: quiet})
		if !errors.Is(err, ErrProxyCannotConnect) {
			t.Errorf("expected ErrProxyCannotConnect, got %v", err)
		}
	})

	t.Run("socks flavor can skip the check", func(t *testing.T) {
		t.Parallel()

		f, err := New(context.Background(), Settings{
			Kind:           KindSOCKS,
			ProxyAddress:   "127.0.0.1:59996",
			SkipProxyCheck: true,
			Logger:         quiet,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Kind() != KindSOCKS {
			t.Errorf("expected socks, got %s", f.Kind())
		}
	})

	t.Run("unknown flavor", func(t *testing.T) {
		t.Parallel()

		_, err := New(context.Background(), Settings{Kind: "carrier-pigeon", Logger: quiet})
		if !errors.Is(err, ErrUnknownKind) {
			t.Errorf("expected ErrUnknownKind, got %v", err)
		}
	})
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindHTTP, false},
		{"http", KindHTTP, false},
		{" SOCKS ", KindSOCKS, false},
		{"tor", KindTor, false},
		{"ftp", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseKind(%q) = (%q, %v)", tt.in, got, err)
			}
		})
	}
}
