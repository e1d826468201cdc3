package scraper

import (
	"errors"
	"fmt"
	"os"

	"github.com/andybalholm/cascadia"
	"github.com/pevans/shelfwatch/locator"
	"gopkg.in/yaml.v3"
)

// Mode selects how a LocatorSpec reads its value.
type Mode string

const (
	ModeText       Mode = "text"
	ModeAttr       Mode = "attr"
	ModeTextOrAttr Mode = "text_or_attr"
	ModeSelf       Mode = "self"
)

// ErrInvalidCatalog is returned when a catalog fails validation.
var ErrInvalidCatalog = errors.New("invalid locator catalog")

// LocatorSpec is the data form of one candidate locator. An empty Mode means
// ModeText.
type LocatorSpec struct {
	Selector string   `yaml:"selector,omitempty" json:"selector,omitempty"`
	Mode     Mode     `yaml:"mode,omitempty" json:"mode,omitempty"`
	Attrs    []string `yaml:"attrs,omitempty" json:"attrs,omitempty"`
}

// ShapeConfig describes how to recognise the three page shapes a batch can
// run over.
type ShapeConfig struct {
	ListingURLPatterns []string `yaml:"listing_url_patterns" json:"listing_url_patterns"`
	ListingItem        string   `yaml:"listing_item" json:"listing_item"`
	DetailURLPatterns  []string `yaml:"detail_url_patterns" json:"detail_url_patterns"`
	DetailMarker       string   `yaml:"detail_marker" json:"detail_marker"`
	IdentifierAttr     string   `yaml:"identifier_attr" json:"identifier_attr"`
}

// SellerConfig holds the candidate lists for merchant details.
type SellerConfig struct {
	Name          []LocatorSpec `yaml:"name" json:"name"`
	Rating        []LocatorSpec `yaml:"rating" json:"rating"`
	FeedbackCount []LocatorSpec `yaml:"feedback_count" json:"feedback_count"`
	ProfileURL    []LocatorSpec `yaml:"profile_url" json:"profile_url"`
	Contact       []LocatorSpec `yaml:"contact" json:"contact"`
	SocialLinks   string        `yaml:"social_links" json:"social_links"`
}

// Catalog is the full set of per-field candidate lists. Candidates are tried
// in order, so the most specific template variant goes first.
type Catalog struct {
	Shapes          ShapeConfig   `yaml:"shapes" json:"shapes"`
	Title           []LocatorSpec `yaml:"title" json:"title"`
	Price           []LocatorSpec `yaml:"price" json:"price"`
	Rating          []LocatorSpec `yaml:"rating" json:"rating"`
	ReviewCount     []LocatorSpec `yaml:"review_count" json:"review_count"`
	Image           []LocatorSpec `yaml:"image" json:"image"`
	ProductURL      []LocatorSpec `yaml:"product_url" json:"product_url"`
	Availability    []LocatorSpec `yaml:"availability" json:"availability"`
	IdentifierLinks string        `yaml:"identifier_links" json:"identifier_links"`
	Breadcrumb      string        `yaml:"breadcrumb" json:"breadcrumb"`
	Seller          SellerConfig  `yaml:"seller" json:"seller"`
}

func text(selector string) LocatorSpec {
	return LocatorSpec{Selector: selector, Mode: ModeText}
}

func attr(selector string, attrs ...string) LocatorSpec {
	return LocatorSpec{Selector: selector, Mode: ModeAttr, Attrs: attrs}
}

func label(selector, name string) LocatorSpec {
	return LocatorSpec{Selector: selector, Mode: ModeTextOrAttr, Attrs: []string{name}}
}

// DefaultCatalog returns the marketplace templates known at build time.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Shapes: ShapeConfig{
			ListingURLPatterns: []string{"/s?", "/s/"},
			ListingItem:        `[data-component-type="s-search-result"]`,
			DetailURLPatterns:  []string{"/dp/", "/gp/product/"},
			DetailMarker:       "#productTitle, #dp-container",
			IdentifierAttr:     "data-asin",
		},
		Title: []LocatorSpec{
			text("#productTitle"),
			text("h1.a-size-large"),
			text(".a-size-large.product-title"),
			text(`[data-automation-id="product-title"]`),
			text("h2 a span"),
			text(".s-size-mini .s-color-base"),
			text(".a-size-base-plus.a-color-base.a-text-normal"),
		},
		Price: []LocatorSpec{
			text(".a-price .a-offscreen"),
			text(".a-price-whole"),
			text(".a-price-range"),
			text("#priceblock_dealprice"),
			text("#priceblock_ourprice"),
			text(".a-price.a-text-price.a-size-medium.apexPriceToPay"),
			text(".a-price.a-text-price.a-size-base.apexPriceToPay"),
		},
		Rating: []LocatorSpec{
			label(".a-icon-star-small .a-icon-alt", "aria-label"),
			label(".a-icon-alt", "aria-label"),
			label(`[data-automation-id="star-rating"]`, "aria-label"),
			label(".a-icon.a-icon-star-small", "aria-label"),
		},
		ReviewCount: []LocatorSpec{
			text("#acrCustomerReviewText"),
			text(`[data-automation-id="review-count"]`),
			text(".s-underline-text"),
			text(".a-size-base.a-color-secondary"),
			text(".a-link-normal .a-size-base"),
		},
		Image: []LocatorSpec{
			attr("#landingImage", "src", "data-old-hires", "data-src"),
			attr(".a-dynamic-image", "src", "data-src"),
			attr(`[data-automation-id="product-image"]`, "src", "data-src"),
			attr(".s-image", "src", "data-src"),
		},
		ProductURL: []LocatorSpec{
			attr(`a.a-link-normal[href*="/dp/"]`, "href"),
			attr(`a[href*="/dp/"]`, "href"),
			attr(`a[href*="/gp/product/"]`, "href"),
		},
		Availability: []LocatorSpec{
			text("#availability span"),
			text(".a-size-medium.a-color-success"),
			text(".a-size-medium.a-color-price"),
			text(".a-size-medium.a-color-state"),
		},
		IdentifierLinks: `a[href*="/dp/"], a[href*="/gp/product/"]`,
		Breadcrumb:      "#wayfinding-breadcrumbs_feature_div",
		Seller: SellerConfig{
			Name: []LocatorSpec{
				text("#sellerProfileTriggerId"),
				text(`[data-automation-id="seller-name"]`),
				text(`.a-link-normal[href*="/stores/"]`),
				text("#merchant-info"),
			},
			Rating: []LocatorSpec{
				label(".seller-rating", "aria-label"),
				label(`.a-icon-alt[aria-label*="stars"]`, "aria-label"),
			},
			FeedbackCount: []LocatorSpec{
				text(".seller-feedback-count"),
				text(`a[href*="/feedback/"]`),
			},
			ProfileURL: []LocatorSpec{
				attr(`a[href*="/stores/"]`, "href"),
				attr(`a[href*="/seller/"]`, "href"),
				attr(`a[href*="/feedback/"]`, "href"),
			},
			Contact: []LocatorSpec{
				text(`[data-automation-id="seller-contact"]`),
				text(".seller-contact-info"),
				text(".merchant-contact"),
			},
			SocialLinks: `a[href*="facebook"], a[href*="twitter"], a[href*="instagram"], a[href*="linkedin"], a[href*="youtube"]`,
		},
	}
}

// LoadCatalog reads a YAML catalog from path and overlays it on the default
// catalog. Any list present in the file replaces the default list for that
// field; fields the file does not mention keep their defaults.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locator catalog: %w", err)
	}

	catalog := DefaultCatalog()
	if err := yaml.Unmarshal(data, catalog); err != nil {
		return nil, fmt.Errorf("failed to parse locator catalog: %w", err)
	}

	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	return catalog, nil
}

// Validate checks every selector compiles and every spec is well-formed.
func (c *Catalog) Validate() error {
	if c.Shapes.IdentifierAttr == "" {
		return fmt.Errorf("%w: shapes.identifier_attr is required", ErrInvalidCatalog)
	}

	selectors := map[string]string{
		"shapes.listing_item":  c.Shapes.ListingItem,
		"shapes.detail_marker": c.Shapes.DetailMarker,
		"identifier_links":     c.IdentifierLinks,
		"breadcrumb":           c.Breadcrumb,
		"seller.social_links":  c.Seller.SocialLinks,
	}
	for field, sel := range selectors {
		if sel == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, field, err)
		}
	}

	lists := map[string][]LocatorSpec{
		"title":                 c.Title,
		"price":                 c.Price,
		"rating":                c.Rating,
		"review_count":          c.ReviewCount,
		"image":                 c.Image,
		"product_url":           c.ProductURL,
		"availability":          c.Availability,
		"seller.name":           c.Seller.Name,
		"seller.rating":         c.Seller.Rating,
		"seller.feedback_count": c.Seller.FeedbackCount,
		"seller.profile_url":    c.Seller.ProfileURL,
		"seller.contact":        c.Seller.Contact,
	}
	for field, specs := range lists {
		for i, spec := range specs {
			if err := spec.validate(); err != nil {
				return fmt.Errorf("%w: %s[%d]: %v", ErrInvalidCatalog, field, i, err)
			}
		}
	}

	return nil
}

func (s LocatorSpec) validate() error {
	switch s.Mode {
	case "", ModeText:
	case ModeAttr, ModeTextOrAttr, ModeSelf:
		if len(s.Attrs) == 0 {
			return fmt.Errorf("mode %q needs at least one attribute", s.Mode)
		}
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}

	if s.Mode == ModeSelf {
		return nil
	}
	if s.Selector == "" {
		return errors.New("selector is required")
	}
	if _, err := cascadia.Compile(s.Selector); err != nil {
		return err
	}
	return nil
}

// Locator converts the spec to its runtime form.
func (s LocatorSpec) Locator() locator.Locator {
	switch s.Mode {
	case ModeAttr:
		return locator.Attr{Selector: s.Selector, Attrs: s.Attrs}
	case ModeTextOrAttr:
		name := "aria-label"
		if len(s.Attrs) > 0 {
			name = s.Attrs[0]
		}
		return locator.TextOrAttr{Selector: s.Selector, Attr: name}
	case ModeSelf:
		return locator.Self{Attrs: s.Attrs}
	default:
		return locator.Text{Selector: s.Selector}
	}
}

// Locators converts an ordered spec list, preserving order.
func Locators(specs []LocatorSpec) []locator.Locator {
	out := make([]locator.Locator, 0, len(specs))
	for _, spec := range specs {
		out = append(out, spec.Locator())
	}
	return out
}
