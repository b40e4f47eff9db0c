// Package transport retrieves pages and files for the crawler and the
// downloader.
//
// Three flavors share one *http.Client setup (cookie jar, redirect limit,
// per-site cookie and header injection):
//
//   - http: direct connections
//   - socks: every connection through a SOCKS5 proxy, verified with a
//     handshake before the crawl starts
//   - tor: an embedded Tor daemon started through tornago, then SOCKS5
//
// Failed fetches are reported as *model.TransportError so callers can tell
// an HTTP status from a network failure and keep crawling.
package transport
