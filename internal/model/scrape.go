package model

import (
	"encoding/json"
	"sort"
)

// URLSet is a set of absolute URL strings.
// Insertion order is not tracked; Sorted returns a stable view.
type URLSet map[string]struct{}

// NewURLSet returns an empty set holding the given URLs.
func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Add inserts u into the set. Empty strings are ignored.
func (s URLSet) Add(u string) {
	if u == "" {
		return
	}
	s[u] = struct{}{}
}

// Has reports whether u is in the set.
func (s URLSet) Has(u string) bool {
	_, ok := s[u]
	return ok
}

// Len returns the number of URLs in the set.
func (s URLSet) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order.
func (s URLSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s URLSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of URLs into the set.
func (s *URLSet) UnmarshalJSON(data []byte) error {
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return err
	}
	*s = NewURLSet(urls...)
	return nil
}

// Category identifies one classification bucket of a Scrape.
// The string value doubles as the storage directory label.
type Category string

// Classification buckets.
const (
	// CategoryLinks holds navigable pages (anchors without a file extension).
	CategoryLinks Category = "links"
	// CategoryFiles holds every anchor that carries a file extension.
	CategoryFiles Category = "files"
	// CategoryImages holds img sources, regardless of extension.
	CategoryImages Category = "img"
	// CategoryAudio holds .mp3 references.
	CategoryAudio Category = "mp3"
	// CategoryVideo holds .mp4 references.
	CategoryVideo Category = "mp4"
	// CategoryHTML holds .html documents.
	CategoryHTML Category = "html"
	// CategoryText holds .txt documents.
	CategoryText Category = "txt"
	// CategoryPDF holds .pdf documents.
	CategoryPDF Category = "pdf"
	// CategoryCSV holds .csv datasets.
	CategoryCSV Category = "csv"
	// CategoryXML holds .xml datasets.
	CategoryXML Category = "xml"
)

// Categories lists every bucket in report order.
var Categories = []Category{
	CategoryLinks,
	CategoryFiles,
	CategoryImages,
	CategoryAudio,
	CategoryVideo,
	CategoryHTML,
	CategoryText,
	CategoryPDF,
	CategoryCSV,
	CategoryXML,
}

// DownloadableCategories lists the buckets whose members can be saved to disk.
var DownloadableCategories = []Category{
	CategoryImages,
	CategoryAudio,
	CategoryVideo,
	CategoryHTML,
	CategoryText,
	CategoryPDF,
	CategoryCSV,
	CategoryXML,
}

// ParseCategory converts a label such as "pdf" or "img" into a Category.
func ParseCategory(label string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == label {
			return c, true
		}
	}
	return "", false
}

// Extension returns the file extension that defines a typed bucket,
// or "" for links, files and images.
func (c Category) Extension() string {
	switch c {
	case CategoryAudio, CategoryVideo, CategoryHTML, CategoryText,
		CategoryPDF, CategoryCSV, CategoryXML:
		return "." + string(c)
	default:
		return ""
	}
}

// Description returns a human readable name for the bucket.
func (c Category) Description() string {
	switch c {
	case CategoryLinks:
		return "links"
	case CategoryFiles:
		return "files"
	case CategoryImages:
		return "images"
	case CategoryAudio:
		return "audio files"
	case CategoryVideo:
		return "video files"
	case CategoryHTML:
		return "html documents"
	case CategoryText:
		return "text documents"
	case CategoryPDF:
		return "pdf documents"
	case CategoryCSV:
		return "csv datasets"
	case CategoryXML:
		return "xml datasets"
	default:
		return string(c)
	}
}

// Scrape is the classification record of one fetched page.
// Every URL held by a Scrape is absolute with a scheme and a host.
type Scrape struct {
	// Source is the address the page was fetched from.
	Source string `json:"source"`

	// FetchError is set when the transport failed and the page was
	// classified from empty content.
	FetchError string `json:"fetch_error,omitempty"`

	Links  URLSet `json:"links"`
	Files  URLSet `json:"files"`
	Images URLSet `json:"images"`
	Audio  URLSet `json:"mp3s"`
	Video  URLSet `json:"mp4s"`
	HTML   URLSet `json:"htmls"`
	Text   URLSet `json:"txts"`
	PDF    URLSet `json:"pdfs"`
	CSV    URLSet `json:"csvs"`
	XML    URLSet `json:"xmls"`
}

// NewScrape returns a Scrape for source with fresh, empty sets.
func NewScrape(source string) *Scrape {
	return &Scrape{
		Source: source,
		Links:  NewURLSet(),
		Files:  NewURLSet(),
		Images: NewURLSet(),
		Audio:  NewURLSet(),
		Video:  NewURLSet(),
		HTML:   NewURLSet(),
		Text:   NewURLSet(),
		PDF:    NewURLSet(),
		CSV:    NewURLSet(),
		XML:    NewURLSet(),
	}
}

// Set returns the bucket for c, or nil for an unknown category.
func (s *Scrape) Set(c Category) URLSet {
	switch c {
	case CategoryLinks:
		return s.Links
	case CategoryFiles:
		return s.Files
	case CategoryImages:
		return s.Images
	case CategoryAudio:
		return s.Audio
	case CategoryVideo:
		return s.Video
	case CategoryHTML:
		return s.HTML
	case CategoryText:
		return s.Text
	case CategoryPDF:
		return s.PDF
	case CategoryCSV:
		return s.CSV
	case CategoryXML:
		return s.XML
	default:
		return nil
	}
}

// Counts returns the size of every bucket keyed by category.
func (s *Scrape) Counts() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = s.Set(c).Len()
	}
	return counts
}

// IsEmpty reports whether every bucket is empty.
func (s *Scrape) IsEmpty() bool {
	for _, c := range Categories {
		if s.Set(c).Len() > 0 {
			return false
		}
	}
	return true
}
