package report

import (
	"io"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/spidey/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report of a whole crawl session.
	Write(report *Report) (int, error)

	// WriteScrape outputs the counts of a single page.
	WriteScrape(scrape *model.Scrape) (int, error)
}

// Report bundles a finished session with what was persisted for it.
type Report struct {
	Session *model.Session `json:"session"`

	// Totals sums every category across the session's scrapes.
	Totals map[model.Category]int `json:"totals"`

	// FailedPages counts scrapes whose fetch failed.
	FailedPages int `json:"failed_pages"`

	// Downloads lists every attempted file save, if downloads were enabled.
	Downloads []model.Download `json:"downloads,omitempty"`

	// Graphs lists the graph files written, if graphs were enabled.
	Graphs []string `json:"graphs,omitempty"`
}

// NewReport summarizes session and attaches the persisted artifacts.
func NewReport(session *model.Session, downloads []model.Download, graphs []string) *Report {
	failed := 0
	for _, s := range session.Results() {
		if s.FetchError != "" {
			failed++
		}
	}
	return &Report{
		Session:     session,
		Totals:      session.Totals(),
		FailedPages: failed,
		Downloads:   downloads,
		Graphs:      graphs,
	}
}

// Pages returns the number of scrapes in the session.
func (r *Report) Pages() int {
	return len(r.Session.Results())
}

// Duration returns how long the crawl ran, or 0 if it has not finished.
func (r *Report) Duration() time.Duration {
	if r.Session.FinishedAt.IsZero() {
		return 0
	}
	return r.Session.FinishedAt.Sub(r.Session.StartedAt).Round(time.Millisecond)
}

// DownloadCounts returns how many saves succeeded and failed.
func (r *Report) DownloadCounts() (saved, failed int) {
	for _, d := range r.Downloads {
		if d.OK() {
			saved++
		} else {
			failed++
		}
	}
	return saved, failed
}

// MultiWriter writes to multiple Writers in turn.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers and stops on the first
// error.
func (m *MultiWriter) Write(report *Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteScrape outputs the page report to all configured Writers.
func (m *MultiWriter) WriteScrape(scrape *model.Scrape) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteScrape(scrape)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// SyncWriter serializes calls to an underlying Writer so that reports of
// concurrent crawls do not interleave.
type SyncWriter struct {
	mu sync.Mutex
	w  Writer
}

// NewSyncWriter wraps w.
func NewSyncWriter(w Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

// Write outputs the report while holding the lock.
func (s *SyncWriter) Write(report *Report) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(report)
}

// WriteScrape outputs the page report while holding the lock.
func (s *SyncWriter) WriteScrape(scrape *model.Scrape) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.WriteScrape(scrape)
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

var titleCaser = cases.Title(language.English)

// categoryTitle returns the display name of c, e.g. "Pdf Documents".
func categoryTitle(c model.Category) string {
	return titleCaser.String(c.Description())
}

const timeLayout = "2006-01-02 15:04:05 MST"
