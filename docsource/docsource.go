// Package docsource acquires parsed documents for tracked items. The core
// only sees the Provider interface; HTTP and on-disk implementations live
// here.
package docsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/pevans/shelfwatch/extract"
)

// DefaultURLTemplate builds a detail page address from an identifier.
const DefaultURLTemplate = "https://www.amazon.com/dp/{id}"

// Target names the document to acquire. URL wins when set; otherwise the
// provider derives an address from Identifier.
type Target struct {
	Identifier string
	URL        string
}

func (t Target) String() string {
	if t.URL != "" {
		return t.URL
	}
	return t.Identifier
}

// Provider returns a parsed document for a target. Every failure is an
// *UnavailableError.
type Provider interface {
	Fetch(ctx context.Context, target Target) (*extract.Page, error)
}

// UnavailableError reports that a document could not be acquired.
type UnavailableError struct {
	Target Target
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document unavailable for %s: %s: %v", e.Target, e.Reason, e.Err)
	}
	return fmt.Sprintf("document unavailable for %s: %s", e.Target, e.Reason)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func unavailable(target Target, reason string, err error) *UnavailableError {
	return &UnavailableError{Target: target, Reason: reason, Err: err}
}

// ExpandTemplate substitutes id into a URL template containing "{id}".
func ExpandTemplate(template, id string) string {
	if template == "" || id == "" {
		return ""
	}
	return strings.ReplaceAll(template, "{id}", id)
}
