package classify

import (
	"log/slog"

	spideylog "github.com/nao1215/spidey/internal/log"
	"github.com/nao1215/spidey/internal/model"
	"github.com/nao1215/spidey/internal/urlnorm"
)

// Filter decides whether a raw reference belongs to a category. It sees
// the reference before normalization.
type Filter func(ref string) bool

// Pages keeps references whose path has no extension: navigable pages.
func Pages(ref string) bool { return !urlnorm.HasExtension(ref) }

// Files keeps references whose path has an extension.
func Files(ref string) bool { return urlnorm.HasExtension(ref) }

// All keeps every reference. Image sources use it because their URLs
// frequently lack an extension.
func All(string) bool { return true }

// OfType keeps references whose extension equals ext, ignoring case.
func OfType(ext string) Filter {
	return func(ref string) bool { return urlnorm.IsType(ref, ext) }
}

// Classifier applies a Filter, normalization and the optional domain
// restriction to a page's references.
type Classifier struct {
	stayInternal bool
	logger       *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger used to report dropped references.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a Classifier. When stayInternal is true, only URLs on the
// same host as the page are kept.
func New(stayInternal bool, opts ...Option) *Classifier {
	c := &Classifier{
		stayInternal: stayInternal,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StayInternal reports whether the domain restriction is active.
func (c *Classifier) StayInternal() bool {
	return c.stayInternal
}

// Classify returns the normalized URLs of refs that pass keep. base is the
// scheme://host of the page the references were found on; relative
// references are resolved against it.
//
// The result is a fresh set. Malformed references are dropped and logged at
// debug level.
func (c *Classifier) Classify(base string, refs []string, keep Filter) model.URLSet {
	out := model.NewURLSet()

	for _, ref := range refs {
		if !keep(ref) {
			continue
		}
		abs, ok := urlnorm.Resolve(base, ref)
		if !ok {
			if ref != "" {
				c.logger.Debug("dropped reference",
					"base", base,
					"ref", ref,
					spideylog.Failure(model.FailureMalformedURL))
			}
			continue
		}
		if c.stayInternal && !urlnorm.SameDomain(abs, base) {
			continue
		}
		out.Add(abs)
	}

	return out
}
