package model

import (
	"fmt"
	"time"
)

// Download records one attempt to persist a classified URL.
type Download struct {
	// Source is the page the URL was found on.
	Source string `json:"source"`

	Category Category `json:"category"`
	URL      string   `json:"url"`

	// Path is where the content was written. Empty on failure.
	Path string `json:"path,omitempty"`

	Size int64 `json:"size"`

	// Digest is the hex SHA3-256 of the written content.
	Digest string `json:"digest,omitempty"`

	// Metadata holds EXIF tags for images that carry them.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// OK reports whether the download succeeded.
func (d Download) OK() bool {
	return d.Error == ""
}

// FailureKind classifies the recoverable failures of a crawl.
// None of them stop traversal; they are attached to log records so
// they can be told apart.
type FailureKind string

const (
	// FailureTransport is a network or HTTP error while fetching a page.
	FailureTransport FailureKind = "transport"
	// FailureMalformedURL is a reference that could not be normalized.
	FailureMalformedURL FailureKind = "malformed_url"
	// FailurePersistence is a download or save error for one item.
	FailurePersistence FailureKind = "persistence"
)

// TransportError is returned by fetchers when a page cannot be retrieved.
type TransportError struct {
	URL string

	// StatusCode is the HTTP status for non-2xx responses, 0 otherwise.
	StatusCode int

	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
