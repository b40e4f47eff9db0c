package urlnorm

import (
	"net/url"
	"path"
	"strings"
)

// protocolRelativeScheme is prefixed to references that start with "//".
const protocolRelativeScheme = "http:"

// Resolve turns ref into an absolute URL using base as the anchor.
//
//   - an empty reference yields ("", false)
//   - an absolute reference (scheme and host) is returned unchanged
//   - a protocol-relative reference ("//host/path") gets "http:" prepended
//   - anything else is resolved against base per RFC 3986
//
// References that cannot be parsed, or that do not end up with both a
// scheme and a host (mailto:, javascript:, data:), yield ("", false).
func Resolve(base, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}

	if strings.HasPrefix(ref, "//") {
		ref = protocolRelativeScheme + ref
	}

	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}

	if r.Scheme != "" {
		if r.Host == "" {
			return "", false
		}
		return ref, true
	}

	b, err := url.Parse(base)
	if err != nil || b.Scheme == "" || b.Host == "" {
		return "", false
	}

	resolved := b.ResolveReference(r)
	if resolved.Host == "" {
		return "", false
	}
	return resolved.String(), true
}

// DomainOf returns the host component of u, port included.
// It returns "" when u cannot be parsed.
func DomainOf(u string) string {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return ""
	}
	return parsed.Host
}

// SameDomain reports whether a and b share a non-empty host.
func SameDomain(a, b string) bool {
	da := DomainOf(a)
	return da != "" && strings.EqualFold(da, DomainOf(b))
}

// BaseOf returns scheme://host of u with path, query and fragment
// stripped. Relative or unparseable input yields "".
func BaseOf(u string) string {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host}).String()
}

// Extension returns the extension of the final path segment of ref,
// dot included, or "" if the segment has none. The query and fragment
// never contribute.
func Extension(ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	ext := path.Ext(parsed.Path)
	if len(ext) < 2 {
		return ""
	}
	return ext
}

// HasExtension reports whether ref names a file: the final path segment
// contains a dot followed by a non-empty suffix.
func HasExtension(ref string) bool {
	return Extension(ref) != ""
}

// IsType reports whether the extension of ref equals ext, ignoring case.
// ext must include the leading dot.
func IsType(ref, ext string) bool {
	found := Extension(ref)
	return found != "" && strings.EqualFold(found, ext)
}
