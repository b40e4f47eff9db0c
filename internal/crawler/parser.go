package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Document is a parsed HTML page. The extractor only ever asks it for all
// elements of a tag and for attributes of those elements, so that is all
// it exposes.
//
// A nil *Document behaves like an empty page.
type Document struct {
	doc *goquery.Document
}

// Node is one element of a Document.
type Node struct {
	sel *goquery.Selection
}

// Parse decodes content using the charset announced in contentType (or
// sniffed from the content itself) and parses it as HTML.
//
// golang.org/x/net/html is lenient: malformed markup still yields a tree,
// so an error here means the bytes could not be decoded at all.
func Parse(content []byte, contentType string) (*Document, error) {
	if len(content) == 0 {
		return &Document{}, nil
	}

	r, err := charset.NewReader(bytes.NewReader(content), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}

	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Document{doc: goquery.NewDocumentFromNode(root)}, nil
}

// FindAll returns every element with the given tag name in document order.
func (d *Document) FindAll(tag string) []Node {
	if d == nil || d.doc == nil {
		return nil
	}
	sel := d.doc.Find(tag)
	nodes := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, Node{sel: s})
	})
	return nodes
}

// Title returns the trimmed text of the first <title> element.
func (d *Document) Title() string {
	if d == nil || d.doc == nil {
		return ""
	}
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Attr returns the value of the named attribute and whether it is present.
// Attribute names are matched in lowercase, as the HTML parser stores them.
func (n Node) Attr(name string) (string, bool) {
	if n.sel == nil {
		return "", false
	}
	return n.sel.Attr(strings.ToLower(name))
}
