package extract

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed document together with the address it was loaded from.
// The address drives identifier extraction, shape dispatch and relative URL
// resolution.
type Page struct {
	URL       string
	Doc       *goquery.Document
	FetchedAt time.Time
}

// NewPage wraps an already parsed document.
func NewPage(address string, doc *goquery.Document) *Page {
	return &Page{URL: address, Doc: doc, FetchedAt: time.Now()}
}

// ParsePage parses HTML from r.
func ParsePage(address string, r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return NewPage(address, doc), nil
}

// ParsePageString is ParsePage over an in-memory string.
func ParsePageString(address, content string) (*Page, error) {
	return ParsePage(address, strings.NewReader(content))
}

func (p *Page) address() string {
	if p == nil {
		return ""
	}
	return p.URL
}

// root returns the document selection, or nil when there is no document.
func (p *Page) root() *goquery.Selection {
	if p == nil || p.Doc == nil {
		return nil
	}
	return p.Doc.Selection
}

// resolve makes ref absolute against the page address. References that do
// not parse are dropped.
func (p *Page) resolve(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	target, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if target.IsAbs() || p.address() == "" {
		return target.String(), true
	}
	base, err := url.Parse(p.address())
	if err != nil {
		return target.String(), true
	}
	return base.ResolveReference(target).String(), true
}

func isDocument(node *goquery.Selection) bool {
	return node.Length() > 0 && node.Nodes[0].Type == html.DocumentNode
}
