// Package markup exposes a small typed query layer over parsed HTML so that
// link discovery and interstitial parsing can be tested against fixed
// fixtures.
package markup

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML page with an optional base URL used to resolve
// relative references.
type Document struct {
	doc  *goquery.Document
	base *url.URL
}

// Element is a handle to a single element in a Document.
type Element struct {
	sel  *goquery.Selection
	base *url.URL
}

// Parse reads HTML from r. base may be empty.
func Parse(r io.Reader, base string) (*Document, error) {
	node, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	d := &Document{doc: goquery.NewDocumentFromNode(node)}
	if strings.TrimSpace(base) != "" {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		d.base = u
	}
	return d, nil
}

// ParseString is Parse over an in-memory string.
func ParseString(s string, base string) (*Document, error) {
	return Parse(strings.NewReader(s), base)
}

// Select returns every element matching the CSS selector in document order.
// An invalid selector yields no elements.
func (d *Document) Select(selector string) []Element {
	if d == nil || d.doc == nil {
		return nil
	}
	return wrap(d.findSafe(d.doc.Selection, selector), d.base)
}

// First returns the first match for selector.
func (d *Document) First(selector string) (Element, bool) {
	els := d.Select(selector)
	if len(els) == 0 {
		return Element{}, false
	}
	return els[0], true
}

func (d *Document) findSafe(s *goquery.Selection, selector string) (out *goquery.Selection) {
	// cascadia panics through goquery on malformed selectors
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()
	return s.Find(selector)
}

func wrap(s *goquery.Selection, base *url.URL) []Element {
	if s == nil {
		return nil
	}
	out := make([]Element, 0, s.Length())
	s.Each(func(_ int, one *goquery.Selection) {
		out = append(out, Element{sel: one, base: base})
	})
	return out
}

// Tag returns the lower-case element name.
func (e Element) Tag() string {
	if e.sel == nil {
		return ""
	}
	return strings.ToLower(goquery.NodeName(e.sel))
}

// Attr returns the attribute value and whether it was present.
func (e Element) Attr(name string) (string, bool) {
	if e.sel == nil {
		return "", false
	}
	return e.sel.Attr(name)
}

// Text returns the element's text content with whitespace runs collapsed.
func (e Element) Text() string {
	if e.sel == nil {
		return ""
	}
	return strings.Join(strings.Fields(e.sel.Text()), " ")
}

// URLAttr resolves the named attribute against the document base URL.
func (e Element) URLAttr(name string) (string, bool) {
	raw, ok := e.Attr(name)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if e.base != nil {
		u = e.base.ResolveReference(u)
	}
	return u.String(), true
}

// Parent returns the parent element, if any.
func (e Element) Parent() (Element, bool) {
	if e.sel == nil {
		return Element{}, false
	}
	p := e.sel.Parent()
	if p.Length() == 0 {
		return Element{}, false
	}
	return Element{sel: p, base: e.base}, true
}

// Prev returns the previous sibling element, if any.
func (e Element) Prev() (Element, bool) {
	if e.sel == nil {
		return Element{}, false
	}
	p := e.sel.Prev()
	if p.Length() == 0 {
		return Element{}, false
	}
	return Element{sel: p, base: e.base}, true
}

// Select finds descendants of e matching selector.
func (e Element) Select(selector string) []Element {
	if e.sel == nil {
		return nil
	}
	d := &Document{base: e.base}
	return wrap(d.findSafe(e.sel, selector), e.base)
}

// PrecedingText returns the text of e's earlier siblings, stopping at the
// nearest <br> or <a>. Listings that put several dated entries in one block
// keep each entry's date in this run.
func (e Element) PrecedingText() string { return e.siblingText(true) }

// FollowingText is PrecedingText in the other direction.
func (e Element) FollowingText() string { return e.siblingText(false) }

func (e Element) siblingText(before bool) string {
	if e.sel == nil || e.sel.Length() == 0 {
		return ""
	}
	next := func(n *html.Node) *html.Node {
		if before {
			return n.PrevSibling
		}
		return n.NextSibling
	}
	var parts []string
	for n := next(e.sel.Get(0)); n != nil; n = next(n) {
		if n.Type == html.ElementNode && (n.Data == "br" || n.Data == "a") {
			break
		}
		switch n.Type {
		case html.TextNode:
			parts = append(parts, n.Data)
		case html.ElementNode:
			parts = append(parts, goquery.NewDocumentFromNode(n).Text())
		}
	}
	if before {
		for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
			parts[i], parts[j] = parts[j], parts[i]
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
