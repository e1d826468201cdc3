package product

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AvailabilityUnknown is the availability of a record whose status could not
// be resolved. Availability is never empty.
const AvailabilityUnknown = "Unknown"

// CategorySeparator joins breadcrumb segments into a category path.
const CategorySeparator = " > "

// Record is the structured result of extracting one item from one document
// node. Every field except Availability, ExtractedAt and SourceURL is
// independently optional; nil means the field could not be resolved.
type Record struct {
	Identifier   *string          `json:"identifier"`
	Title        *string          `json:"title"`
	Price        *decimal.Decimal `json:"price"`
	Rating       *float64         `json:"rating"`
	ReviewCount  *int             `json:"review_count"`
	ImageURL     *string          `json:"image_url"`
	ProductURL   *string          `json:"product_url"`
	Availability string           `json:"availability"`
	Seller       *SellerInfo      `json:"seller"`
	Category     []string         `json:"category"`
	ExtractedAt  time.Time        `json:"extracted_at"`
	SourceURL    string           `json:"source_url"`
}

// Platform names a social network a seller links to.
type Platform string

const (
	PlatformFacebook  Platform = "Facebook"
	PlatformTwitter   Platform = "Twitter"
	PlatformInstagram Platform = "Instagram"
	PlatformLinkedIn  Platform = "LinkedIn"
	PlatformYouTube   Platform = "YouTube"
	PlatformOther     Platform = "Other"
)

// PlatformForURL classifies a social link by its address.
func PlatformForURL(link string) Platform {
	lower := strings.ToLower(link)
	switch {
	case strings.Contains(lower, "facebook"):
		return PlatformFacebook
	case strings.Contains(lower, "twitter"), strings.Contains(lower, "x.com/"):
		return PlatformTwitter
	case strings.Contains(lower, "instagram"):
		return PlatformInstagram
	case strings.Contains(lower, "linkedin"):
		return PlatformLinkedIn
	case strings.Contains(lower, "youtube"):
		return PlatformYouTube
	default:
		return PlatformOther
	}
}

// SocialLink is one entry of a seller's social profile set.
type SocialLink struct {
	Platform Platform `json:"platform"`
	URL      string   `json:"url"`
}

// SellerInfo describes the merchant offering an item.
type SellerInfo struct {
	Name          *string      `json:"name"`
	Rating        *float64     `json:"rating"`
	FeedbackCount *int         `json:"feedback_count"`
	ProfileURL    *string      `json:"profile_url"`
	ContactInfo   *string      `json:"contact_info"`
	SocialLinks   []SocialLink `json:"social_links"`
}

// IsEmpty reports whether no seller attribute was resolved.
func (s *SellerInfo) IsEmpty() bool {
	return s == nil || (s.Name == nil && s.Rating == nil && s.FeedbackCount == nil &&
		s.ProfileURL == nil && s.ContactInfo == nil && len(s.SocialLinks) == 0)
}

// Empty returns an all-absent record stamped with the extraction time and
// source address.
func Empty(sourceURL string, at time.Time) Record {
	return Record{
		Availability: AvailabilityUnknown,
		ExtractedAt:  at,
		SourceURL:    sourceURL,
	}
}

// ID returns the identifier or "" when absent.
func (r Record) ID() string {
	if r.Identifier == nil {
		return ""
	}
	return *r.Identifier
}

// DisplayTitle returns the title, or the identifier when the title is absent.
func (r Record) DisplayTitle() string {
	if r.Title != nil {
		return *r.Title
	}
	if r.Identifier != nil {
		return *r.Identifier
	}
	return "(No title)"
}

// CategoryPath returns the breadcrumb joined with CategorySeparator.
func (r Record) CategoryPath() string {
	return strings.Join(r.Category, CategorySeparator)
}

// Merge overlays the present fields of next onto prev. Absent fields in next
// never erase a value known in prev.
func Merge(prev, next Record) Record {
	out := prev
	if next.Identifier != nil {
		out.Identifier = next.Identifier
	}
	if next.Title != nil {
		out.Title = next.Title
	}
	if next.Price != nil {
		out.Price = next.Price
	}
	if next.Rating != nil {
		out.Rating = next.Rating
	}
	if next.ReviewCount != nil {
		out.ReviewCount = next.ReviewCount
	}
	if next.ImageURL != nil {
		out.ImageURL = next.ImageURL
	}
	if next.ProductURL != nil {
		out.ProductURL = next.ProductURL
	}
	if next.Availability != "" && next.Availability != AvailabilityUnknown {
		out.Availability = next.Availability
	}
	if !next.Seller.IsEmpty() {
		out.Seller = next.Seller
	}
	if len(next.Category) > 0 {
		out.Category = next.Category
	}
	if !next.ExtractedAt.IsZero() {
		out.ExtractedAt = next.ExtractedAt
	}
	if next.SourceURL != "" {
		out.SourceURL = next.SourceURL
	}
	return out
}

// PriceEqual compares two optional prices numerically. Two absent prices are
// equal; an absent and a present price are not.
func PriceEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
