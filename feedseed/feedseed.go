// Package feedseed turns RSS and Atom feeds (deal feeds, wish-list feeds,
// store announcement feeds) into items to track.
package feedseed

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/shelfwatch/normalize"
	"github.com/pevans/shelfwatch/product"
)

// Candidate is a feed entry that links to a trackable item.
type Candidate struct {
	Identifier string `json:"identifier"`
	Link       string `json:"link"`
	Title      string `json:"title"`
}

// Record returns a record seeded from the candidate, for Track.
func (c Candidate) Record(at time.Time) product.Record {
	rec := product.Empty(c.Link, at)
	rec.Identifier = product.Ptr(c.Identifier)
	rec.ProductURL = product.Ptr(c.Link)
	if c.Title != "" {
		rec.Title = product.Ptr(c.Title)
	}
	return rec
}

// Fetch fetches and parses the feed at url. The gofeed library detects RSS
// and Atom automatically.
func Fetch(ctx context.Context, url string) ([]Candidate, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return Candidates(feed), nil
}

// Parse parses a feed document from r.
func Parse(r io.Reader) ([]Candidate, error) {
	fp := gofeed.NewParser()
	feed, err := fp.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return Candidates(feed), nil
}

// Candidates extracts one candidate per distinct identifier, in feed order.
// Entries whose links carry no identifier are skipped.
func Candidates(feed *gofeed.Feed) []Candidate {
	seen := map[string]bool{}
	out := make([]Candidate, 0, len(feed.Items))

	for _, item := range feed.Items {
		link, id := itemLink(item)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		title, _ := normalize.Text(item.Title)
		out = append(out, Candidate{
			Identifier: id,
			Link:       link,
			Title:      title,
		})
	}
	return out
}

// itemLink returns the first entry link that carries an identifier. Atom
// entries may list several links; GUIDs are often the permalink too.
func itemLink(item *gofeed.Item) (string, string) {
	links := append([]string{item.Link}, item.Links...)
	links = append(links, item.GUID)
	for _, link := range links {
		link = strings.TrimSpace(link)
		if id, ok := normalize.IdentifierFromURL(link); ok {
			return link, id
		}
	}
	return "", ""
}
