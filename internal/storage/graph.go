package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/spidey/internal/model"
)

// graphDir is the directory under the crawl root that holds link graphs.
const graphDir = "graph"

// GraphFileName is the name of each per-page graph file.
const GraphFileName = "graph.csv"

// WriteGraph writes the outgoing links of scrape to
// <outDir>/<root>/graph/<page>/graph.csv, one row per link:
//
//	page-slug,source-url,link-url
//
// It returns the path written.
func WriteGraph(outDir, root string, scrape *model.Scrape) (string, error) {
	pageSlug := Slugify(scrape.Source)
	dir := filepath.Join(outDir, Slugify(root), graphDir, pageSlug)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create graph directory: %w", err)
	}

	target := filepath.Join(dir, GraphFileName)
	f, err := os.Create(target) //nolint:gosec // target is built from slugified components
	if err != nil {
		return "", fmt.Errorf("create graph file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, link := range scrape.Links.Sorted() {
		if err := w.Write([]string{pageSlug, scrape.Source, link}); err != nil {
			return "", fmt.Errorf("write graph row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush graph: %w", err)
	}
	return target, f.Close()
}
