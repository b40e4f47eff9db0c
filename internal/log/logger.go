package log

import (
	"io"
	"log/slog"

	"github.com/nao1215/spidey/internal/model"
)

// FailureKey is the attribute key under which recoverable crawl failures
// are reported. Its value is one of the model.FailureKind constants.
const FailureKey = "failure"

// Options configures NewLogger.
type Options struct {
	// Verbose lowers the level from Warn to Debug.
	Verbose bool
	// JSON switches the output from logfmt-style text to JSON lines.
	JSON bool
}

// NewLogger builds a slog.Logger whose records pass through SecureHandler.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(NewSecureHandler(handler))
}

// Failure returns the attribute that tags a log record with a failure kind.
func Failure(kind model.FailureKind) slog.Attr {
	return slog.String(FailureKey, string(kind))
}

// Discard returns a logger that drops every record. Tests and library
// callers that do not care about diagnostics use it.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
