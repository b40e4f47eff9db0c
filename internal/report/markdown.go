package report

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/spidey/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the session report.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeTotals(md, report)
	w.writePages(md, report)
	w.writeDownloads(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteScrape outputs a single page as a category table.
func (w *MarkdownWriter) WriteScrape(scrape *model.Scrape) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H2("Scrape Report from " + scrape.Source)
	md.PlainText("")
	if scrape.FetchError != "" {
		md.Warningf("Fetch failed: %s", scrape.FetchError)
		md.PlainText("")
	}

	rows := make([][]string, 0, len(model.Categories))
	for _, c := range model.Categories {
		rows = append(rows, []string{categoryTitle(c), strconv.Itoa(scrape.Set(c).Len())})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *Report) {
	s := report.Session
	md.H1("Spidey Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Session", s.Name},
		{"Seed", "`" + s.Seed + "`"},
		{"Depth", strconv.Itoa(s.Depth)},
		{"Stay Internal", strconv.FormatBool(s.StayInternal)},
		{"Started", s.StartedAt.Format(timeLayout)},
		{"Pages Crawled", strconv.Itoa(report.Pages())},
	}
	if s.Transport != "" {
		rows = append(rows, []string{"Transport", s.Transport})
	}
	if d := report.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.String()})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.FailedPages > 0 {
		md.Warningf("%d page(s) could not be fetched and were recorded empty.", report.FailedPages)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeTotals(md *markdown.Markdown, report *Report) {
	md.H2("Totals")
	md.PlainText("")

	rows := make([][]string, 0, len(model.Categories))
	found := false
	for _, c := range model.Categories {
		n := report.Totals[c]
		if n > 0 {
			found = true
		}
		rows = append(rows, []string{categoryTitle(c), "`" + string(c) + "`", strconv.Itoa(n)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Label", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if !found {
		md.Tip("No URLs were classified. Check the seed address and the transport.")
		md.PlainText("")
		return
	}
	w.writePieChart(md, report)
}

// writePieChart adds a mermaid chart of the non-zero totals.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *Report) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Classified URLs"),
		piechart.WithShowData(true),
	)

	added := 0
	for _, c := range model.Categories {
		if n := report.Totals[c]; n > 0 {
			chart.LabelAndIntValue(categoryTitle(c), uint64(n))
			added++
		}
	}
	if added == 0 {
		return
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *Report) {
	md.H2("Pages")
	md.PlainText("")

	scrapes := report.Session.Results()
	if len(scrapes) == 0 {
		md.PlainText("No pages were crawled.")
		md.PlainText("")
		return
	}

	header := []string{"Page"}
	for _, c := range model.Categories {
		header = append(header, string(c))
	}

	rows := make([][]string, 0, len(scrapes))
	for _, s := range scrapes {
		source := truncateString(s.Source, 60)
		if s.FetchError != "" {
			source += " ⚠️"
		}
		row := []string{source}
		for _, c := range model.Categories {
			row = append(row, strconv.Itoa(s.Set(c).Len()))
		}
		rows = append(rows, row)
	}
	md.Table(markdown.TableSet{
		Header: header,
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeDownloads(md *markdown.Markdown, report *Report) {
	if len(report.Downloads) == 0 && len(report.Graphs) == 0 {
		return
	}

	md.H2("Saved Files")
	md.PlainText("")

	if len(report.Downloads) > 0 {
		saved, failed := report.DownloadCounts()
		md.PlainTextf("%d saved, %d failed.", saved, failed)
		md.PlainText("")

		rows := make([][]string, len(report.Downloads))
		for i, d := range report.Downloads {
			status := "✅ " + strconv.FormatInt(d.Size, 10) + " bytes"
			if !d.OK() {
				status = "❌ " + truncateString(d.Error, 50)
			}
			rows[i] = []string{string(d.Category), truncateString(d.URL, 60), status}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Category", "URL", "Status"},
			Rows:   rows,
		})
		md.PlainText("")

		for _, d := range report.Downloads {
			if len(d.Metadata) > 0 {
				md.Details(d.URL, formatMetadata(d.Metadata))
			}
		}
	}

	if len(report.Graphs) > 0 {
		md.PlainText("Link graphs:")
		md.PlainText("")
		md.BulletList(report.Graphs...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [spidey](https://github.com/nao1215/spidey)*")
}

// formatMetadata renders EXIF tags as sorted "name: value" lines.
func formatMetadata(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + ": " + meta[k]
	}
	return strings.Join(lines, "\n")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
