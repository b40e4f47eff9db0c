package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed specified: provide at least one URL")

	// ErrInvalidDepth is returned for a negative depth.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidTransport is returned for an unknown transport name.
	ErrInvalidTransport = errors.New("invalid transport: must be http, socks or tor")

	// ErrProxyRequired is returned when the socks transport has no proxy.
	ErrProxyRequired = errors.New("socks transport requires --proxy")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxPages is returned for a negative page limit.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxBodySize is returned for a negative size limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrNoOutputDir is returned when files must be saved but no output
	// directory is set.
	ErrNoOutputDir = errors.New("no output directory: --out is required with --save or --graph")

	// ErrNoDBDir is returned when the database is enabled without a directory.
	ErrNoDBDir = errors.New("no database directory")

	// ErrUnknownCategory is wrapped by CategoryError.
	ErrUnknownCategory = errors.New("unknown category")
)

// CategoryError reports a --save label that names no downloadable category.
type CategoryError struct {
	Label string
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("%s %q: use img, mp3, mp4, html, txt, pdf, csv, xml or all", ErrUnknownCategory, e.Label)
}

func (e *CategoryError) Unwrap() error {
	return ErrUnknownCategory
}
