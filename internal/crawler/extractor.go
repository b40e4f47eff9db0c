package crawler

import (
	"slices"

	"github.com/nao1215/spidey/internal/classify"
	"github.com/nao1215/spidey/internal/model"
	"github.com/nao1215/spidey/internal/urlnorm"
)

// imageSourceAttrs are tried in order on each <img>; the first present
// attribute wins. Lazy-loading scripts keep the real source in data-*.
var imageSourceAttrs = []string{"src", "data-lazyload", "data-src"}

// Extractor builds a Scrape from a parsed page.
type Extractor struct {
	classifier *classify.Classifier
}

// NewExtractor returns an Extractor that classifies with c.
func NewExtractor(c *classify.Classifier) *Extractor {
	return &Extractor{classifier: c}
}

// Extract classifies every reference of doc found on pageURL.
// A nil or empty document yields a Scrape with all categories empty.
// doc is never modified.
func (e *Extractor) Extract(pageURL string, doc *Document) *model.Scrape {
	scrape := model.NewScrape(pageURL)
	base := urlnorm.BaseOf(pageURL)

	hrefs := attrValues(doc, "a", "href")
	sources := attrValues(doc, "source", "src")
	media := slices.Concat(attrValues(doc, "audio", "src"), sources)
	videos := slices.Concat(attrValues(doc, "video", "src"), sources)

	// Files holds every typed file, including embedded media sources.
	scrape.Links = e.classifier.Classify(base, hrefs, classify.Pages)
	scrape.Files = e.classifier.Classify(base, slices.Concat(hrefs, media, videos), classify.Files)
	scrape.Images = e.classifier.Classify(base, imageSources(doc), classify.All)
	scrape.Audio = e.classifier.Classify(base, slices.Concat(media, hrefs), classify.OfType(model.CategoryAudio.Extension()))
	scrape.Video = e.classifier.Classify(base, slices.Concat(videos, hrefs), classify.OfType(model.CategoryVideo.Extension()))

	for _, c := range []model.Category{
		model.CategoryHTML,
		model.CategoryText,
		model.CategoryPDF,
		model.CategoryCSV,
		model.CategoryXML,
	} {
		set := e.classifier.Classify(base, hrefs, classify.OfType(c.Extension()))
		for u := range set {
			scrape.Set(c).Add(u)
		}
	}

	return scrape
}

// attrValues returns the value of attr on every tag element that has it.
func attrValues(doc *Document, tag, attr string) []string {
	var values []string
	for _, n := range doc.FindAll(tag) {
		if v, ok := n.Attr(attr); ok {
			values = append(values, v)
		}
	}
	return values
}

func imageSources(doc *Document) []string {
	var values []string
	for _, n := range doc.FindAll("img") {
		for _, attr := range imageSourceAttrs {
			if v, ok := n.Attr(attr); ok && v != "" {
				values = append(values, v)
				break
			}
		}
	}
	return values
}
