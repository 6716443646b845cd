package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Element is a node matched by Query. It is a snapshot of the document at
// query time; it does not track later DOM changes.
type Element struct {
	sel *goquery.Selection
}

// Attr returns an attribute value and whether it was present
func (e Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// Text returns the element's text content with surrounding space trimmed
func (e Element) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

// Find runs a selector relative to this element
func (e Element) Find(selector string) []Element {
	return wrap(e.sel.Find(selector))
}

// QueryHTML runs selector against a serialized document
func QueryHTML(html, selector string) ([]Element, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return wrap(doc.Find(selector)), nil
}

func wrap(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Element{sel: s})
	})
	return out
}
