package storage

import (
	"encoding/hex"
	"strings"

	"github.com/kennygrant/sanitize"
	"golang.org/x/crypto/sha3"
)

// maxSlugLength keeps directory and file names well under the 255-byte
// limit of common filesystems once an extension is appended.
const maxSlugLength = 120

// Slugify turns s into a lowercase ASCII name made of [a-z0-9] runs joined
// by single dashes. Accented letters are folded to their base letter.
// Slugs longer than maxSlugLength are cut and suffixed with a short digest
// of s so distinct inputs keep distinct names.
//
//	Slugify("http://Example.com/Café?x=1") == "http-example-com-cafe-x-1"
func Slugify(s string) string {
	folded := strings.ToLower(sanitize.Accents(s))

	var b strings.Builder
	b.Grow(len(folded))
	pendingDash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}

	slug := b.String()
	if len(slug) <= maxSlugLength {
		return slug
	}
	sum := sha3.Sum256([]byte(s))
	return strings.TrimRight(slug[:maxSlugLength-9], "-") + "-" + hex.EncodeToString(sum[:4])
}

// safeFileName makes the last path segment of a URL safe to use as a file
// name while keeping its extension.
func safeFileName(name string) string {
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 && i < len(name)-1 {
		ext = name[i:]
		name = name[:i]
	}
	base := sanitize.BaseName(name)
	if base == "" {
		base = "file"
	}
	if ext == "" {
		return base
	}
	// BaseName maps "." to "-", so strip the leading dash it produces.
	cleanExt := strings.TrimPrefix(sanitize.BaseName(ext), "-")
	if cleanExt == "" {
		return base
	}
	return base + "." + cleanExt
}
