// Package extract turns document nodes into product records. Every field is
// resolved through an ordered locator chain and normalized; a field that
// cannot be resolved is left absent rather than failing the record.
package extract

import (
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/shelfwatch/locator"
	"github.com/pevans/shelfwatch/normalize"
	"github.com/pevans/shelfwatch/product"
	"github.com/pevans/shelfwatch/scraper"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Diagnostic describes a structural fault recovered during extraction.
type Diagnostic struct {
	SourceURL string
	Err       error
	At        time.Time
}

// fieldLocators is the compiled form of a scraper.Catalog.
type fieldLocators struct {
	title          []locator.Locator
	price          []locator.Locator
	rating         []locator.Locator
	reviewCount    []locator.Locator
	image          []locator.Locator
	productURL     []locator.Locator
	availability   []locator.Locator
	sellerName     []locator.Locator
	sellerRating   []locator.Locator
	sellerFeedback []locator.Locator
	sellerProfile  []locator.Locator
	sellerContact  []locator.Locator
}

// Extractor extracts product records using a locator catalog. It holds no
// per-call state and is safe for concurrent use.
type Extractor struct {
	catalog *scraper.Catalog
	fields  fieldLocators
	log     logrus.FieldLogger
	now     func() time.Time
	diag    func(Diagnostic)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for diagnostics.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Extractor) { e.log = log }
}

// WithClock overrides the extraction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithDiagnostics registers a hook called for every recovered fault.
func WithDiagnostics(fn func(Diagnostic)) Option {
	return func(e *Extractor) { e.diag = fn }
}

// New creates an Extractor. A nil catalog means scraper.DefaultCatalog().
func New(catalog *scraper.Catalog, opts ...Option) *Extractor {
	if catalog == nil {
		catalog = scraper.DefaultCatalog()
	}

	e := &Extractor{
		catalog: catalog,
		fields: fieldLocators{
			title:          scraper.Locators(catalog.Title),
			price:          scraper.Locators(catalog.Price),
			rating:         scraper.Locators(catalog.Rating),
			reviewCount:    scraper.Locators(catalog.ReviewCount),
			image:          scraper.Locators(catalog.Image),
			productURL:     scraper.Locators(catalog.ProductURL),
			availability:   scraper.Locators(catalog.Availability),
			sellerName:     scraper.Locators(catalog.Seller.Name),
			sellerRating:   scraper.Locators(catalog.Seller.Rating),
			sellerFeedback: scraper.Locators(catalog.Seller.FeedbackCount),
			sellerProfile:  scraper.Locators(catalog.Seller.ProfileURL),
			sellerContact:  scraper.Locators(catalog.Seller.Contact),
		},
		log: logrus.StandardLogger(),
		now: time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Catalog returns the catalog the extractor was built from.
func (e *Extractor) Catalog() *scraper.Catalog {
	return e.catalog
}

// Extract builds one record from node. It always returns a record: a panic
// while traversing a malformed node yields an all-absent record and a
// diagnostic. The document is not modified.
func (e *Extractor) Extract(page *Page, node *goquery.Selection) (rec product.Record) {
	at := e.now()
	source := page.address()

	defer func() {
		if r := recover(); r != nil {
			rec = product.Empty(source, at)
			e.diagnose(Diagnostic{
				SourceURL: source,
				Err:       fmt.Errorf("extraction fault: %v", r),
				At:        at,
			})
		}
	}()

	rec = product.Empty(source, at)
	if node == nil || node.Length() == 0 {
		return rec
	}

	if id, ok := e.identifier(page, node); ok {
		rec.Identifier = &id
	}
	if title, ok := locator.ResolveValid(node, e.fields.title, normalize.Text); ok {
		rec.Title = &title
	}
	if price, ok := locator.ResolveValid(node, e.fields.price, normalize.Currency); ok {
		rec.Price = &price
	}
	if rating, ok := locator.ResolveValid(node, e.fields.rating, normalize.Rating); ok {
		rec.Rating = &rating
	}
	if count, ok := locator.ResolveValid(node, e.fields.reviewCount, normalize.Count); ok {
		rec.ReviewCount = &count
	}
	if image, ok := locator.ResolveValid(node, e.fields.image, page.resolve); ok {
		rec.ImageURL = &image
	}
	if link, ok := locator.ResolveValid(node, e.fields.productURL, page.resolve); ok {
		rec.ProductURL = &link
	} else if isDocument(node) && source != "" {
		rec.ProductURL = &source
	}
	if status, ok := locator.ResolveValid(node, e.fields.availability, normalize.Text); ok {
		rec.Availability = status
	}
	if seller := e.seller(page, node); !seller.IsEmpty() {
		rec.Seller = seller
	}
	if e.catalog.Breadcrumb != "" {
		if parts, ok := normalize.Breadcrumb(node.Find(e.catalog.Breadcrumb)); ok {
			rec.Category = parts
		}
	}

	return rec
}

// identifier applies the fixed precedence: page address, then the identifier
// attribute on the node itself or its descendants, then outbound links.
func (e *Extractor) identifier(page *Page, node *goquery.Selection) (string, bool) {
	if id, ok := normalize.IdentifierFromURL(page.address()); ok {
		return id, true
	}

	attr := e.catalog.Shapes.IdentifierAttr
	if value, exists := node.First().Attr(attr); exists {
		if id, ok := normalize.Identifier(value); ok {
			return id, true
		}
	}

	var found string
	node.Find("[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if id, ok := normalize.Identifier(s.AttrOr(attr, "")); ok {
			found = id
			return false
		}
		return true
	})
	if found != "" {
		return found, true
	}

	if e.catalog.IdentifierLinks == "" {
		return "", false
	}
	node.Find(e.catalog.IdentifierLinks).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := page.resolve(s.AttrOr("href", ""))
		if id, ok := normalize.IdentifierFromURL(href); ok {
			found = id
			return false
		}
		return true
	})
	return found, found != ""
}

func (e *Extractor) seller(page *Page, node *goquery.Selection) *product.SellerInfo {
	seller := &product.SellerInfo{}

	if name, ok := locator.ResolveValid(node, e.fields.sellerName, normalize.Text); ok {
		seller.Name = &name
	}
	if rating, ok := locator.ResolveValid(node, e.fields.sellerRating, normalize.Rating); ok {
		seller.Rating = &rating
	}
	if count, ok := locator.ResolveValid(node, e.fields.sellerFeedback, normalize.Count); ok {
		seller.FeedbackCount = &count
	}
	if profile, ok := locator.ResolveValid(node, e.fields.sellerProfile, page.resolve); ok {
		seller.ProfileURL = &profile
	}
	if contact, ok := locator.ResolveValid(node, e.fields.sellerContact, normalize.Text); ok {
		seller.ContactInfo = &contact
	}

	if sel := e.catalog.Seller.SocialLinks; sel != "" {
		seen := map[string]bool{}
		node.Find(sel).Each(func(_ int, s *goquery.Selection) {
			link, ok := page.resolve(s.AttrOr("href", ""))
			if !ok || seen[link] {
				return
			}
			seen[link] = true
			seller.SocialLinks = append(seller.SocialLinks, product.SocialLink{
				Platform: product.PlatformForURL(link),
				URL:      link,
			})
		})
	}

	return seller
}

func (e *Extractor) diagnose(d Diagnostic) {
	e.log.WithFields(logrus.Fields{
		"url":   d.SourceURL,
		"error": d.Err,
	}).Warn("recovered from malformed node during extraction")

	if e.diag != nil {
		e.diag(d)
	}
}

// priceOrZero is the sort key for an optional price.
func priceOrZero(p *decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return *p
}
