package feedseed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dealsRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
  <title>Kitchen deals</title>
  <item>
    <title>Kettle One  at 20% off</title>
    <link>https://www.amazon.com/Kettle-One/dp/B0000000A1?tag=deals</link>
  </item>
  <item>
    <title>Newsletter</title>
    <link>https://deals.example.com/newsletter</link>
  </item>
  <item>
    <title>Kettle One again</title>
    <link>https://www.amazon.com/dp/B0000000A1</link>
  </item>
  <item>
    <title>Toaster</title>
    <link>https://deals.example.com/t/123</link>
    <guid>https://www.amazon.com/gp/product/B0000000B2</guid>
  </item>
</channel></rss>`

const wishlistAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Wish list</title>
  <id>urn:wishlist</id>
  <updated>2024-05-01T00:00:00Z</updated>
  <entry>
    <title>Grinder</title>
    <id>urn:entry:1</id>
    <updated>2024-05-01T00:00:00Z</updated>
    <link rel="alternate" href="https://www.amazon.com/Grinder/dp/B0000000C3"/>
  </entry>
</feed>`

// TestParse_RSS verifies identifiers are collected once each, in feed order
func TestParse_RSS(t *testing.T) {
	candidates, err := Parse(strings.NewReader(dealsRSS))
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, Candidate{
		Identifier: "B0000000A1",
		Link:       "https://www.amazon.com/Kettle-One/dp/B0000000A1?tag=deals",
		Title:      "Kettle One at 20% off",
	}, candidates[0])
	assert.Equal(t, "B0000000B2", candidates[1].Identifier)
	assert.Equal(t, "https://www.amazon.com/gp/product/B0000000B2", candidates[1].Link)
}

// TestParse_Atom verifies Atom entry links are recognized
func TestParse_Atom(t *testing.T) {
	candidates, err := Parse(strings.NewReader(wishlistAtom))
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "B0000000C3", candidates[0].Identifier)
	assert.Equal(t, "Grinder", candidates[0].Title)
}

// TestParse_Invalid verifies non-feed input is an error
func TestParse_Invalid(t *testing.T) {
	_, err := Parse(strings.NewReader("not a feed"))
	assert.Error(t, err)
}

// TestCandidates_Empty verifies a feed without items yields nothing
func TestCandidates_Empty(t *testing.T) {
	assert.Empty(t, Candidates(&gofeed.Feed{}))
}

// TestFetch verifies feeds are fetched over HTTP
func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(dealsRSS))
	}))
	defer server.Close()

	candidates, err := Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

// TestCandidate_Record verifies the seeded record carries link and title
func TestCandidate_Record(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := Candidate{Identifier: "B0000000A1", Link: "https://www.amazon.com/dp/B0000000A1", Title: "Kettle"}.Record(at)

	assert.Equal(t, "B0000000A1", rec.ID())
	assert.Equal(t, "Kettle", *rec.Title)
	assert.Equal(t, "https://www.amazon.com/dp/B0000000A1", *rec.ProductURL)
	assert.Nil(t, rec.Price)
	assert.Equal(t, at, rec.ExtractedAt)
}
