package transport

import "strings"

// Kind selects how pages are retrieved.
type Kind string

const (
	// KindHTTP fetches directly over the host network.
	KindHTTP Kind = "http"
	// KindSOCKS routes every connection through a SOCKS5 proxy.
	KindSOCKS Kind = "socks"
	// KindTor starts an embedded Tor daemon and routes through its SOCKS port.
	KindTor Kind = "tor"
)

// Kinds lists every supported transport flavor.
var Kinds = []Kind{KindHTTP, KindSOCKS, KindTor}

// ParseKind converts a flag or config value into a Kind. The empty string
// selects KindHTTP.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindHTTP:
		return KindHTTP, nil
	case KindSOCKS:
		return KindSOCKS, nil
	case KindTor:
		return KindTor, nil
	default:
		return "", ErrUnknownKind
	}
}
