package extract

import (
	"errors"
	"fmt"
	"sort"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/shelfwatch/product"
	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey names an ordering for item nodes.
type SortKey string

const (
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortRating    SortKey = "rating"
	SortReviews   SortKey = "reviews"
	SortTitle     SortKey = "title"
)

// ErrUnknownSortKey is returned by SortNodes for an unrecognised key.
var ErrUnknownSortKey = errors.New("unknown sort key")

// SortKeys lists the accepted sort keys.
func SortKeys() []SortKey {
	return []SortKey{SortPriceLow, SortPriceHigh, SortRating, SortReviews, SortTitle}
}

// Filter bounds which items stay visible. A nil bound is not applied, and an
// item whose value is absent is never hidden by that bound.
type Filter struct {
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	MinRating *float64
}

type item struct {
	node   *goquery.Selection
	record product.Record
}

func (e *Extractor) items(page *Page) []item {
	_, nodes := e.ItemNodes(page)
	if nodes == nil {
		return nil
	}
	var out []item
	nodes.Each(func(_ int, s *goquery.Selection) {
		out = append(out, item{node: s, record: e.Extract(page, s)})
	})
	return out
}

// SortNodes reorders the item nodes of page inside their parent elements so
// that a later ExtractBatch yields them in the new order. Absent numeric
// values sort as zero and absent titles as the empty string. Ties keep
// document order.
func (e *Extractor) SortNodes(page *Page, key SortKey) error {
	less, err := lessFunc(key)
	if err != nil {
		return err
	}

	items := e.items(page)
	if len(items) < 2 || isDocument(items[0].node) {
		return nil
	}

	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i].record, items[j].record)
	})

	// Re-appending each node in sorted order moves it to the end of its
	// parent, leaving the parent's children in sorted order.
	for _, it := range items {
		n := it.node.Nodes[0]
		parent := n.Parent
		if parent == nil {
			continue
		}
		parent.RemoveChild(n)
		parent.AppendChild(n)
	}

	return nil
}

func lessFunc(key SortKey) (func(a, b product.Record) bool, error) {
	switch key {
	case SortPriceLow:
		return func(a, b product.Record) bool {
			return priceOrZero(a.Price).LessThan(priceOrZero(b.Price))
		}, nil
	case SortPriceHigh:
		return func(a, b product.Record) bool {
			return priceOrZero(a.Price).GreaterThan(priceOrZero(b.Price))
		}, nil
	case SortRating:
		return func(a, b product.Record) bool {
			return floatOrZero(a.Rating) > floatOrZero(b.Rating)
		}, nil
	case SortReviews:
		return func(a, b product.Record) bool {
			return intOrZero(a.ReviewCount) > intOrZero(b.ReviewCount)
		}, nil
	case SortTitle:
		c := collate.New(language.English, collate.IgnoreCase)
		return func(a, b product.Record) bool {
			return c.CompareString(stringOrEmpty(a.Title), stringOrEmpty(b.Title)) < 0
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSortKey, key)
	}
}

// FilterNodes marks item nodes failing f as hidden and clears the mark on
// nodes that pass. It returns how many items are shown and hidden.
func (e *Extractor) FilterNodes(page *Page, f Filter) (shown, hidden int) {
	for _, it := range e.items(page) {
		if isDocument(it.node) {
			shown++
			continue
		}
		if f.allows(it.record) {
			it.node.RemoveAttr(hiddenAttr)
			shown++
		} else {
			it.node.SetAttr(hiddenAttr, "true")
			hidden++
		}
	}
	return shown, hidden
}

func (f Filter) allows(rec product.Record) bool {
	if rec.Price != nil {
		if f.MinPrice != nil && rec.Price.LessThan(*f.MinPrice) {
			return false
		}
		if f.MaxPrice != nil && rec.Price.GreaterThan(*f.MaxPrice) {
			return false
		}
	}
	if rec.Rating != nil && f.MinRating != nil && *rec.Rating < *f.MinRating {
		return false
	}
	return true
}

// Sellers rolls up the distinct sellers of records by name, keeping the first
// occurrence of each. Sellers without a name are skipped.
func Sellers(records []product.Record) []product.SellerInfo {
	seen := map[string]bool{}
	out := []product.SellerInfo{}
	for _, rec := range records {
		if rec.Seller == nil || rec.Seller.Name == nil {
			continue
		}
		name := *rec.Seller.Name
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, *rec.Seller)
	}
	return out
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
