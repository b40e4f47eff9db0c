// Package storage persists crawl results on disk: downloaded files grouped
// by category and page, and a per-page CSV of outgoing links.
//
// Layout below the output directory:
//
//	<seed-slug>/<category>/<page-slug>/<file>
//	<seed-slug>/graph/<page-slug>/graph.csv
//
// Every download records its size and SHA3-256 digest; JPEG, TIFF and HEIC
// images also get their EXIF tags.
package storage
