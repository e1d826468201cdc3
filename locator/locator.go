// Package locator resolves one field value from a document node by trying an
// ordered list of candidate locators. Earlier candidates describe the most
// specific template variant currently seen; later ones are fallbacks for
// older or regional variants.
package locator

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Locator finds at most one raw value for a field within root.
type Locator interface {
	Locate(root *goquery.Selection) (string, bool)
}

// Func adapts a plain function to the Locator interface.
type Func func(root *goquery.Selection) (string, bool)

// Locate calls f(root).
func (f Func) Locate(root *goquery.Selection) (string, bool) {
	return f(root)
}

// Text yields the whitespace-collapsed text of the first element matching
// Selector.
type Text struct {
	Selector string
}

func (l Text) Locate(root *goquery.Selection) (string, bool) {
	sel := root.Find(l.Selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return collapse(sel.Text()), true
}

// Attr yields the first non-empty attribute among Attrs on the first element
// matching Selector.
type Attr struct {
	Selector string
	Attrs    []string
}

func (l Attr) Locate(root *goquery.Selection) (string, bool) {
	sel := root.Find(l.Selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return firstAttr(sel, l.Attrs)
}

// TextOrAttr yields the text of the first element matching Selector, or the
// named attribute when the text is empty. Star ratings often carry their
// value only in an accessible label.
type TextOrAttr struct {
	Selector string
	Attr     string
}

func (l TextOrAttr) Locate(root *goquery.Selection) (string, bool) {
	sel := root.Find(l.Selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	if text := collapse(sel.Text()); text != "" {
		return text, true
	}
	return firstAttr(sel, []string{l.Attr})
}

// Self yields an attribute of the root node itself.
type Self struct {
	Attrs []string
}

func (l Self) Locate(root *goquery.Selection) (string, bool) {
	if root.Length() == 0 {
		return "", false
	}
	return firstAttr(root.First(), l.Attrs)
}

// Resolve evaluates candidates strictly in order and returns the first value
// that is non-empty after trimming. Candidates after the winner are not
// evaluated. A false result means the field is absent, which is not an
// error.
func Resolve(root *goquery.Selection, candidates []Locator) (string, bool) {
	if root == nil {
		return "", false
	}
	for _, candidate := range candidates {
		value, ok := candidate.Locate(root)
		if !ok {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, true
		}
	}
	return "", false
}

// ResolveValid is Resolve with validation: a candidate whose raw value
// normalizes to absent is skipped and the next one is tried.
func ResolveValid[T any](root *goquery.Selection, candidates []Locator, normalize func(string) (T, bool)) (T, bool) {
	var zero T
	if root == nil {
		return zero, false
	}
	for _, candidate := range candidates {
		value, ok := candidate.Locate(root)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if typed, ok := normalize(value); ok {
			return typed, true
		}
	}
	return zero, false
}

func firstAttr(sel *goquery.Selection, attrs []string) (string, bool) {
	for _, name := range attrs {
		if value, exists := sel.Attr(name); exists && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
