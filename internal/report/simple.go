package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/spidey/internal/model"
)

// SimpleWriter outputs plain text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints categories with a zero count.
	showEmpty bool

	// verbose adds per-page counts and failure reasons.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty categories.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose adds the per-page section to the output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the session report.
func (w *SimpleWriter) Write(report *Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeTotals(&sb, report)
	if w.verbose {
		w.writePages(&sb, report)
	}
	w.writeDownloads(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteScrape prints one line per category for scrape:
//
//	Scrape Report from: http://example.com
//	- number of links: 3
func (w *SimpleWriter) WriteScrape(scrape *model.Scrape) (int, error) {
	var sb strings.Builder
	w.writeScrape(&sb, scrape)
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *Report) {
	s := report.Session
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        SPIDEY CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Session:        %s\n", s.Name)
	fmt.Fprintf(sb, "Seed:           %s\n", s.Seed)
	fmt.Fprintf(sb, "Depth:          %d\n", s.Depth)
	fmt.Fprintf(sb, "Stay Internal:  %t\n", s.StayInternal)
	if s.Transport != "" {
		fmt.Fprintf(sb, "Transport:      %s\n", s.Transport)
	}
	fmt.Fprintf(sb, "Started:        %s\n", s.StartedAt.Format(timeLayout))
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:       %s\n", d)
	}
	fmt.Fprintf(sb, "Pages Crawled:  %d\n", report.Pages())
	if report.FailedPages > 0 {
		fmt.Fprintf(sb, "Failed Pages:   %d\n", report.FailedPages)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTotals(sb *strings.Builder, report *Report) {
	writeSection(sb, "TOTALS")

	for _, c := range model.Categories {
		n := report.Totals[c]
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  %-16s %d\n", categoryTitle(c)+":", n)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, report *Report) {
	writeSection(sb, "PAGES")

	for _, scrape := range report.Session.Results() {
		w.writeScrape(sb, scrape)
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeScrape(sb *strings.Builder, scrape *model.Scrape) {
	fmt.Fprintf(sb, "Scrape Report from: %s\n", scrape.Source)
	if scrape.FetchError != "" {
		fmt.Fprintf(sb, "  fetch failed: %s\n", scrape.FetchError)
	}
	for _, c := range model.Categories {
		n := scrape.Set(c).Len()
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "- number of %s: %d\n", c.Description(), n)
	}
}

func (w *SimpleWriter) writeDownloads(sb *strings.Builder, report *Report) {
	if len(report.Downloads) == 0 && len(report.Graphs) == 0 {
		return
	}

	writeSection(sb, "SAVED FILES")

	if len(report.Downloads) > 0 {
		saved, failed := report.DownloadCounts()
		fmt.Fprintf(sb, "  Saved:   %d\n", saved)
		fmt.Fprintf(sb, "  Failed:  %d\n", failed)
		if w.verbose {
			for _, d := range report.Downloads {
				if !d.OK() {
					fmt.Fprintf(sb, "  [x] %s: %s\n", d.URL, d.Error)
				}
			}
		}
	}
	if len(report.Graphs) > 0 {
		fmt.Fprintf(sb, "  Graphs:  %d\n", len(report.Graphs))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by spidey\n")
	sb.WriteString("https://github.com/nao1215/spidey\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
