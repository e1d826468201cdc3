// Package normalize turns raw located strings into typed field values. Every
// function here is pure and total: malformed input yields an absent result,
// never a panic or an error.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// RatingScale is the upper bound of a star rating.
const RatingScale = 5.0

var (
	// numberToken matches the first price-like run. Space-grouped thousands
	// ("1 234,56") are only accepted in strict groups of three so that two
	// adjacent prices are not glued together.
	numberToken = regexp.MustCompile(`\d{1,3}(?:[ \x{00a0}\x{202f}]\d{3})+(?:[.,]\d+)?|\d[\d.,']*`)

	decimalToken = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

	countToken = regexp.MustCompile(`\d{1,3}(?:[,.\x{00a0}]\d{3})+|\d+`)

	identifierPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

	identifierInURL = regexp.MustCompile(`/(?:dp|gp/product|gp/aw/d|product)/([A-Z0-9]{10})(?:[^A-Za-z0-9]|$)`)
)

// Currency parses a price string such as "$1,234.56", "1.234,56 €" or
// "EUR 12,99" into a decimal. Currency symbols are dropped.
func Currency(raw string) (decimal.Decimal, bool) {
	token := numberToken.FindString(raw)
	if token == "" {
		return decimal.Decimal{}, false
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			return r
		default:
			return -1
		}
	}, token)
	cleaned = strings.TrimRight(cleaned, ".,")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}

	value, err := decimal.NewFromString(collapseSeparators(cleaned))
	if err != nil || value.IsNegative() {
		return decimal.Decimal{}, false
	}
	return value, true
}

// collapseSeparators rewrites a digits-and-separators string into a plain
// "1234.56" form by deciding which separator, if any, is the decimal mark.
func collapseSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Whichever comes last is the decimal mark.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")

	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			if frac := len(s) - lastComma - 1; frac == 1 || frac == 2 {
				return strings.Replace(s, ",", ".", 1)
			}
		}
		return strings.ReplaceAll(s, ",", "")

	case lastDot >= 0 && strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// Rating extracts the first decimal-looking number from text or an
// accessible label ("4.5 out of 5 stars"). Values outside 0-5 are rejected.
func Rating(raw string) (float64, bool) {
	token := decimalToken.FindString(raw)
	if token == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.Replace(token, ",", ".", 1), 64)
	if err != nil || value < 0 || value > RatingScale {
		return 0, false
	}
	return value, true
}

// Count extracts the first run of digits as a non-negative integer. Grouped
// thousands inside the run ("1,234") are read as one number.
func Count(raw string) (int, bool) {
	token := countToken.FindString(raw)
	if token == "" {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, token)
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsIdentifier reports whether s is a well-formed item identifier: ten
// uppercase letters or digits.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Identifier validates a raw identifier candidate.
func Identifier(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !IsIdentifier(raw) {
		return "", false
	}
	return raw, true
}

// IdentifierFromURL finds an identifier in a product address such as
// https://www.example.com/Some-Name/dp/B0ABCDEF12/ref=sr_1_1.
func IdentifierFromURL(address string) (string, bool) {
	m := identifierInURL.FindStringSubmatch(address)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Breadcrumb returns the text of every link inside container in document
// order. It is absent only when the container itself does not exist.
func Breadcrumb(container *goquery.Selection) ([]string, bool) {
	if container == nil || container.Length() == 0 {
		return nil, false
	}
	parts := []string{}
	container.First().Find("a").Each(func(_ int, link *goquery.Selection) {
		if text, ok := Text(link.Text()); ok {
			parts = append(parts, text)
		}
	})
	return parts, true
}

const breadcrumbSeparator = " > "

var breadcrumbEscaper = strings.NewReplacer(`\`, `\\`, `>`, `\>`)

// JoinBreadcrumb joins breadcrumb segments with " > ". A backslash or ">"
// inside a segment is escaped with a backslash so SplitBreadcrumb can undo
// the join.
func JoinBreadcrumb(parts []string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = breadcrumbEscaper.Replace(p)
	}
	return strings.Join(escaped, breadcrumbSeparator)
}

// SplitBreadcrumb reverses JoinBreadcrumb. An empty path has no segments.
func SplitBreadcrumb(path string) []string {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	var parts []string
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		switch {
		case path[i] == '\\' && i+1 < len(path):
			i++
			b.WriteByte(path[i])
		case strings.HasPrefix(path[i:], breadcrumbSeparator):
			parts = append(parts, b.String())
			b.Reset()
			i += len(breadcrumbSeparator) - 1
		default:
			b.WriteByte(path[i])
		}
	}
	return append(parts, b.String())
}

// Text applies NFKC normalization (folding non-breaking spaces and
// compatibility characters) and collapses whitespace.
func Text(raw string) (string, bool) {
	text := strings.Join(strings.Fields(norm.NFKC.String(raw)), " ")
	if text == "" {
		return "", false
	}
	return text, true
}
