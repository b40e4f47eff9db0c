// Package log builds the slog loggers used across spidey.
//
// Every logger passes through SecureHandler, which masks cookie, header and
// token-like attributes, and the passwords and tokens embedded in logged
// URLs, before they reach the output.
//
// Recoverable crawl failures are tagged with a "failure" attribute whose
// value is a model.FailureKind:
//
//	logger.Warn("fetch failed", "url", u, log.Failure(model.FailureTransport))
//
// This keeps transport errors, malformed references and persistence errors
// distinguishable in both text and JSON output.
package log
