package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/shelfwatch/product"
	"github.com/sirupsen/logrus"
)

// Shape is the kind of page a batch runs over.
type Shape string

const (
	ShapeListing  Shape = "listing"
	ShapeDetail   Shape = "detail"
	ShapeFallback Shape = "identifier-attr"
)

// hiddenAttr marks item nodes that FilterNodes hid.
const hiddenAttr = "data-shelfwatch-hidden"

// Shape classifies page with a fixed priority: listing, then detail, then
// the identifier-attribute fallback.
func (e *Extractor) Shape(page *Page) Shape {
	shapes := e.catalog.Shapes
	root := page.root()

	if containsAny(page.address(), shapes.ListingURLPatterns) {
		return ShapeListing
	}
	if root != nil && shapes.ListingItem != "" && root.Find(shapes.ListingItem).Length() > 0 {
		return ShapeListing
	}
	if containsAny(page.address(), shapes.DetailURLPatterns) {
		return ShapeDetail
	}
	if root != nil && shapes.DetailMarker != "" && root.Find(shapes.DetailMarker).Length() > 0 {
		return ShapeDetail
	}
	return ShapeFallback
}

// ItemNodes enumerates the candidate item nodes of page in document order,
// hidden ones included. The selection is nil when there is nothing to
// enumerate.
func (e *Extractor) ItemNodes(page *Page) (Shape, *goquery.Selection) {
	shape := e.Shape(page)
	root := page.root()
	if root == nil {
		return shape, nil
	}

	switch shape {
	case ShapeListing:
		if e.catalog.Shapes.ListingItem == "" {
			return shape, nil
		}
		return shape, root.Find(e.catalog.Shapes.ListingItem)
	case ShapeDetail:
		return shape, root
	default:
		attr := e.catalog.Shapes.IdentifierAttr
		return shape, root.Find("[" + attr + "]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.TrimSpace(s.AttrOr(attr, "")) != ""
		})
	}
}

// ExtractBatch extracts every visible item of page, sequentially and in
// document order. progress, when non-nil, is called after each item with the
// completed fraction; 1.0 is reported exactly once, including for a page
// with no items.
func (e *Extractor) ExtractBatch(page *Page, progress func(float64)) []product.Record {
	report := func(fraction float64) {
		if progress != nil {
			progress(fraction)
		}
	}

	shape, nodes := e.ItemNodes(page)
	visible := visibleNodes(nodes)

	e.log.WithFields(logrus.Fields{
		"url":   page.address(),
		"shape": shape,
		"items": len(visible),
	}).Debug("extracting batch")

	if len(visible) == 0 {
		report(1.0)
		return []product.Record{}
	}

	records := make([]product.Record, 0, len(visible))
	for i, node := range visible {
		records = append(records, e.Extract(page, node))
		report(float64(i+1) / float64(len(visible)))
	}

	return records
}

func visibleNodes(nodes *goquery.Selection) []*goquery.Selection {
	if nodes == nil {
		return nil
	}
	var out []*goquery.Selection
	nodes.Each(func(_ int, s *goquery.Selection) {
		if _, hidden := s.Attr(hiddenAttr); !hidden {
			out = append(out, s)
		}
	})
	return out
}

func containsAny(s string, patterns []string) bool {
	if s == "" {
		return false
	}
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// ExtractItem extracts the record for identifier id from page, whatever its
// shape. The second result is false when no visible item carries id.
func (e *Extractor) ExtractItem(page *Page, id string) (product.Record, bool) {
	for _, rec := range e.ExtractBatch(page, nil) {
		if rec.ID() == id {
			return rec, true
		}
	}
	return product.Empty(page.address(), e.now()), false
}
