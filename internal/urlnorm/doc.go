// Package urlnorm resolves raw references found on a page into absolute
// URLs and answers the small questions the classifier asks about them:
// which host they belong to and whether their path names a file.
//
// Every function is total: malformed input yields an empty result rather
// than an error, and callers treat that as "discard this reference".
package urlnorm
