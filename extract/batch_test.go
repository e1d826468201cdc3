package extract

import (
	"testing"

	"github.com/pevans/shelfwatch/product"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body><div class="s-main-slot">
<div data-component-type="s-search-result" data-asin="B0000000A1">
  <h2><a class="a-link-normal" href="/Kettle-One/dp/B0000000A1/ref=sr_1_1"><span>Kettle One</span></a></h2>
  <img class="s-image" src="https://img.example.com/a1.jpg">
  <span class="a-price"><span class="a-offscreen">$29.99</span></span>
  <i class="a-icon a-icon-star-small"><span class="a-icon-alt">4.5 out of 5 stars</span></i>
  <span class="s-underline-text">1,234</span>
  <span class="a-size-medium a-color-success">In Stock</span>
  <span data-automation-id="seller-name">Acme Kitchen</span>
</div>
<div data-component-type="s-search-result" data-asin="B0000000B2">
  <h2><a class="a-link-normal" href="/Kettle-Two/dp/B0000000B2/ref=sr_1_2"><span>Kettle Two</span></a></h2>
  <img class="s-image" data-src="https://img.example.com/b2.jpg">
  <span class="a-price"><span class="a-offscreen">$19.50</span></span>
  <i class="a-icon a-icon-star-small"><span class="a-icon-alt">3.9 out of 5 stars</span></i>
  <span class="s-underline-text">87</span>
  <span class="a-size-medium a-color-success">Only 3 left in stock</span>
  <span data-automation-id="seller-name">Boil Co</span>
</div>
<div data-component-type="s-search-result" data-asin="B0000000C3">
  <h2><a class="a-link-normal" href="/Kettle-Three/dp/B0000000C3/ref=sr_1_3"><span>Kettle Three</span></a></h2>
  <img class="s-image" src="https://img.example.com/c3.jpg">
  <i class="a-icon a-icon-star-small"><span class="a-icon-alt">4.9 out of 5 stars</span></i>
  <span class="s-underline-text">12</span>
  <span class="a-size-medium a-color-success">In Stock</span>
  <span data-automation-id="seller-name">Acme Kitchen</span>
</div>
</div></body></html>`

const listingURL = "https://www.example.com/s?k=kettle"

func titles(records []product.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.DisplayTitle())
	}
	return out
}

// TestExtractBatch_Listing verifies a three-item listing yields three records
// in document order with the third price absent
func TestExtractBatch_Listing(t *testing.T) {
	e := createTestExtractor(t)
	page := createTestPage(t, listingURL, listingPage)

	var progress []float64
	records := e.ExtractBatch(page, func(p float64) { progress = append(progress, p) })

	require.Len(t, records, 3)
	assert.Equal(t, []string{"Kettle One", "Kettle Two", "Kettle Three"}, titles(records))

	for i, rec := range records {
		require.NotNil(t, rec.Identifier, "record %d", i)
		require.NotNil(t, rec.Title, "record %d", i)
		require.NotNil(t, rec.Rating, "record %d", i)
		require.NotNil(t, rec.ReviewCount, "record %d", i)
		require.NotNil(t, rec.ImageURL, "record %d", i)
		require.NotNil(t, rec.ProductURL, "record %d", i)
		require.NotNil(t, rec.Seller, "record %d", i)
		assert.NotEqual(t, product.AvailabilityUnknown, rec.Availability, "record %d", i)
	}

	assert.Equal(t, "B0000000A1", *records[0].Identifier)
	assert.Equal(t, "29.99", records[0].Price.String())
	assert.Equal(t, 1234, *records[0].ReviewCount)
	assert.Equal(t, "https://www.example.com/Kettle-One/dp/B0000000A1/ref=sr_1_1", *records[0].ProductURL)
	assert.Equal(t, "19.5", records[1].Price.String())
	assert.Equal(t, "https://img.example.com/b2.jpg", *records[1].ImageURL)
	assert.Nil(t, records[2].Price)

	require.Len(t, progress, 3)
	assert.InDelta(t, 1.0/3.0, progress[0], 1e-9)
	assert.InDelta(t, 2.0/3.0, progress[1], 1e-9)
	assert.Equal(t, 1.0, progress[2])
	ones := 0
	for _, p := range progress {
		if p == 1.0 {
			ones++
		}
	}
	assert.Equal(t, 1, ones, "completion is reported exactly once")
}

func TestExtractBatch_NoItemsStillCompletes(t *testing.T) {
	e := createTestExtractor(t)
	page := createTestPage(t, listingURL, `<html><body><p>No results</p></body></html>`)

	var progress []float64
	records := e.ExtractBatch(page, func(p float64) { progress = append(progress, p) })

	assert.Empty(t, records)
	assert.Equal(t, []float64{1.0}, progress)
}

func TestExtractBatch_NilProgress(t *testing.T) {
	e := createTestExtractor(t)
	page := createTestPage(t, listingURL, listingPage)

	assert.Len(t, e.ExtractBatch(page, nil), 3)
}

func TestExtractBatch_NilPage(t *testing.T) {
	e := createTestExtractor(t)

	var progress []float64
	records := e.ExtractBatch(nil, func(p float64) { progress = append(progress, p) })

	assert.Empty(t, records)
	assert.Equal(t, []float64{1.0}, progress)
}

func TestShape(t *testing.T) {
	e := createTestExtractor(t)

	tests := []struct {
		name     string
		address  string
		content  string
		expected Shape
	}{
		{"listing by address", listingURL, `<p></p>`, ShapeListing},
		{"listing by marker", "https://www.example.com/deals", listingPage, ShapeListing},
		{"detail by address", "https://www.example.com/dp/B0ADDRESS1", `<p></p>`, ShapeDetail},
		{"detail by marker", "https://www.example.com/item", detailPage, ShapeDetail},
		{"fallback", "https://www.example.com/b?node=1", `<div data-asin="B0000000A1"></div>`, ShapeFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Shape(createTestPage(t, tt.address, tt.content)))
		})
	}
}

// TestExtractBatch_DetailIsOneItem verifies a detail page is treated as a
// single item
func TestExtractBatch_DetailIsOneItem(t *testing.T) {
	e := createTestExtractor(t)
	page := createTestPage(t, "https://www.example.com/Kettle/dp/B0ADDRESS1", detailPage)

	records := e.ExtractBatch(page, nil)

	require.Len(t, records, 1)
	assert.Equal(t, "B0ADDRESS1", *records[0].Identifier)
}

// TestExtractBatch_Fallback verifies nodes carrying a non-empty identifier
// attribute are enumerated
func TestExtractBatch_Fallback(t *testing.T) {
	e := createTestExtractor(t)
	page := createTestPage(t, "https://www.example.com/b?node=1", `<ul>
		<li data-asin="B0000000A1"><span class="a-size-base-plus a-color-base a-text-normal">First</span></li>
		<li data-asin=""><span>Ad slot</span></li>
		<li data-asin="B0000000B2"><span class="a-size-base-plus a-color-base a-text-normal">Second</span></li>
	</ul>`)

	records := e.ExtractBatch(page, nil)

	require.Len(t, records, 2)
	assert.Equal(t, "B0000000A1", *records[0].Identifier)
	assert.Equal(t, "B0000000B2", *records[1].Identifier)
	assert.Equal(t, []string{"First", "Second"}, titles(records))
}

func TestSortNodes(t *testing.T) {
	tests := []struct {
		key      SortKey
		expected []string
	}{
		{SortPriceLow, []string{"Kettle Three", "Kettle Two", "Kettle One"}},
		{SortPriceHigh, []string{"Kettle One", "Kettle Two", "Kettle Three"}},
		{SortRating, []string{"Kettle Three", "Kettle One", "Kettle Two"}},
		{SortReviews, []string{"Kettle One", "Kettle Two", "Kettle Three"}},
		{SortTitle, []string{"Kettle One", "Kettle Three", "Kettle Two"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			e := createTestExtractor(t)
			page := createTestPage(t, listingURL, listingPage)

			require.NoError(t, e.SortNodes(page, tt.key))

			assert.Equal(t, tt.expected, titles(e.ExtractBatch(page, nil)))
			assert.Equal(t, 3, page.Doc.Find(".s-main-slot > div").Length(), "nodes stay in their container")
		})
	}
}

func TestSortNodes_UnknownKey(t *testing.T) {
	e := createTestExtractor(t)
	page := createTestPage(t, listingURL, listingPage)

	err := e.SortNodes(page, "cheapest")

	assert.ErrorIs(t, err, ErrUnknownSortKey)
}

// TestFilterNodes verifies hidden nodes are skipped by the next batch and
// that absent prices are never filtered out
func TestFilterNodes(t *testing.T) {
	e := createTestExtractor(t)
	page := createTestPage(t, listingURL, listingPage)
	minPrice := decimal.RequireFromString("20")

	shown, hidden := e.FilterNodes(page, Filter{MinPrice: &minPrice})

	assert.Equal(t, 2, shown)
	assert.Equal(t, 1, hidden)
	assert.Equal(t, []string{"Kettle One", "Kettle Three"}, titles(e.ExtractBatch(page, nil)))

	// Relaxing the filter shows everything again.
	shown, hidden = e.FilterNodes(page, Filter{})
	assert.Equal(t, 3, shown)
	assert.Equal(t, 0, hidden)
	assert.Len(t, e.ExtractBatch(page, nil), 3)
}

func TestFilterNodes_MinRatingAndMaxPrice(t *testing.T) {
	e := createTestExtractor(t)
	page := createTestPage(t, listingURL, listingPage)
	maxPrice := decimal.RequireFromString("25")
	minRating := 4.0

	e.FilterNodes(page, Filter{MaxPrice: &maxPrice, MinRating: &minRating})

	assert.Equal(t, []string{"Kettle Three"}, titles(e.ExtractBatch(page, nil)))
}

func TestSellers(t *testing.T) {
	e := createTestExtractor(t)
	page := createTestPage(t, listingURL, listingPage)

	sellers := Sellers(e.ExtractBatch(page, nil))

	require.Len(t, sellers, 2)
	assert.Equal(t, "Acme Kitchen", *sellers[0].Name)
	assert.Equal(t, "Boil Co", *sellers[1].Name)
}

// TestExtractItem verifies the record for one identifier is picked from a
// listing
func TestExtractItem(t *testing.T) {
	e := createTestExtractor(t)
	page := createTestPage(t, listingURL, listingPage)

	rec, ok := e.ExtractItem(page, "B0000000B2")
	require.True(t, ok)
	assert.Equal(t, "Kettle Two", *rec.Title)

	_, ok = e.ExtractItem(page, "B0000000Z9")
	assert.False(t, ok)
}
