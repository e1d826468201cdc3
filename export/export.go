// Package export serializes product records to tabular and document forms.
// Absent fields always render as empty cells or JSON null.
package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pevans/shelfwatch/normalize"
	"github.com/pevans/shelfwatch/product"
	"github.com/shopspring/decimal"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	// FormatExcel is kept for compatibility and produces CSV.
	FormatExcel Format = "excel"
)

// ErrUnknownFormat is returned for an unrecognised format name.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatCSV, FormatJSON, FormatXLSX, FormatExcel:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatXLSX:
		return ".xlsx"
	default:
		return ".csv"
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// Filename returns the default download name for an export taken at t.
func Filename(f Format, t time.Time) string {
	return "shelfwatch-data-" + t.Format("2006-01-02") + f.Extension()
}

// Write encodes records in format f.
func Write(w io.Writer, f Format, records []product.Record) error {
	switch f {
	case FormatCSV, FormatExcel:
		return WriteCSV(w, records, CSVOptions{})
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatXLSX:
		return WriteXLSX(w, records)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// Columns is the tabular layout shared by CSV and XLSX.
var Columns = []string{
	"identifier",
	"title",
	"price",
	"rating",
	"review_count",
	"image_url",
	"product_url",
	"availability",
	"seller_name",
	"seller_rating",
	"seller_feedback_count",
	"seller_profile_url",
	"seller_contact",
	"seller_social_links",
	"category",
	"extracted_at",
	"source_url",
}

// cells renders rec as one tabular row. Absent values are empty strings.
func cells(rec product.Record) []string {
	seller := rec.Seller
	if seller == nil {
		seller = &product.SellerInfo{}
	}

	social := make([]string, 0, len(seller.SocialLinks))
	for _, link := range seller.SocialLinks {
		social = append(social, link.URL)
	}

	return []string{
		str(rec.Identifier),
		str(rec.Title),
		price(rec.Price),
		float(rec.Rating),
		integer(rec.ReviewCount),
		str(rec.ImageURL),
		str(rec.ProductURL),
		rec.Availability,
		str(seller.Name),
		float(seller.Rating),
		integer(seller.FeedbackCount),
		str(seller.ProfileURL),
		str(seller.ContactInfo),
		strings.Join(social, " "),
		normalize.JoinBreadcrumb(rec.Category),
		timestamp(rec.ExtractedAt),
		rec.SourceURL,
	}
}

// record parses a row keyed by column name back into a record.
func record(row map[string]string) (product.Record, error) {
	rec := product.Record{
		Identifier:   optString(row["identifier"]),
		Title:        optString(row["title"]),
		ImageURL:     optString(row["image_url"]),
		ProductURL:   optString(row["product_url"]),
		Availability: row["availability"],
		Category:     normalize.SplitBreadcrumb(row["category"]),
		SourceURL:    row["source_url"],
	}
	if rec.Availability == "" {
		rec.Availability = product.AvailabilityUnknown
	}

	var err error
	if rec.Price, err = optDecimal(row["price"]); err != nil {
		return rec, fmt.Errorf("invalid price: %w", err)
	}
	if rec.Rating, err = optFloat(row["rating"]); err != nil {
		return rec, fmt.Errorf("invalid rating: %w", err)
	}
	if rec.ReviewCount, err = optInt(row["review_count"]); err != nil {
		return rec, fmt.Errorf("invalid review_count: %w", err)
	}
	if v := row["extracted_at"]; v != "" {
		if rec.ExtractedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return rec, fmt.Errorf("invalid extracted_at: %w", err)
		}
	}

	seller := &product.SellerInfo{
		Name:        optString(row["seller_name"]),
		ProfileURL:  optString(row["seller_profile_url"]),
		ContactInfo: optString(row["seller_contact"]),
	}
	if seller.Rating, err = optFloat(row["seller_rating"]); err != nil {
		return rec, fmt.Errorf("invalid seller_rating: %w", err)
	}
	if seller.FeedbackCount, err = optInt(row["seller_feedback_count"]); err != nil {
		return rec, fmt.Errorf("invalid seller_feedback_count: %w", err)
	}
	for _, link := range strings.Fields(row["seller_social_links"]) {
		seller.SocialLinks = append(seller.SocialLinks, product.SocialLink{
			Platform: product.PlatformForURL(link),
			URL:      link,
		})
	}
	if !seller.IsEmpty() {
		rec.Seller = seller
	}

	return rec, nil
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func price(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func float(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func integer(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func optInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
