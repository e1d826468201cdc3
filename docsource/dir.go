package docsource

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/pevans/shelfwatch/extract"
)

// DirProvider serves saved pages from a directory, one <identifier>.html
// file per item. It is used for offline re-sampling and tests.
type DirProvider struct {
	Dir string
	// URLTemplate gives each page its original address so identifier and
	// relative URL resolution behave as they would online.
	URLTemplate string
}

// NewDirProvider creates a provider over dir.
func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{Dir: dir, URLTemplate: DefaultURLTemplate}
}

// Fetch reads and parses the saved page for target.Identifier.
func (p *DirProvider) Fetch(ctx context.Context, target Target) (*extract.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(target, "cancelled", err)
	}
	if target.Identifier == "" || filepath.Base(target.Identifier) != target.Identifier {
		return nil, unavailable(target, "invalid identifier", nil)
	}

	path := filepath.Join(p.Dir, target.Identifier+".html")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, unavailable(target, "no saved page", err)
	}
	if err != nil {
		return nil, unavailable(target, "failed to open saved page", err)
	}
	defer f.Close()

	address := target.URL
	if address == "" {
		address = ExpandTemplate(p.URLTemplate, target.Identifier)
	}

	page, err := extract.ParsePage(address, f)
	if err != nil {
		return nil, unavailable(target, "failed to parse saved page", err)
	}
	return page, nil
}
