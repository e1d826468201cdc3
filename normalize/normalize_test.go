package normalize

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"dollar", "$29.99", "29.99", true},
		{"us thousands", "$1,234.56", "1234.56", true},
		{"european", "1.234,56 €", "1234.56", true},
		{"comma decimal", "EUR 12,99", "12.99", true},
		{"space grouped", "1 234,56 €", "1234.56", true},
		{"nbsp grouped", "1 234,56 €", "1234.56", true},
		{"apostrophe grouped", "CHF 1'234.50", "1234.5", true},
		{"comma thousands", "1,234", "1234", true},
		{"repeated dots", "1.234.567", "1234567", true},
		{"trailing separator", "$29.", "29", true},
		{"range takes first", "$29.99 - $39.99", "29.99", true},
		{"two prices", "$10.99 $15.99", "10.99", true},
		{"whole", "£5", "5", true},
		{"free", "Free", "", false},
		{"empty", "", "", false},
		{"dash", "$-", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok := Currency(tt.input)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, value.String())
			}
		})
	}
}

func TestRating(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"4.5 out of 5 stars", 4.5, true},
		{"4,7 von 5 Sternen", 4.7, true},
		{"5", 5, true},
		{"0.0 out of 5", 0, true},
		{"7.2", 0, false},
		{"no rating", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			value, ok := Rating(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, value, 1e-9)
		})
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		ok       bool
	}{
		{"1,234 ratings", 1234, true},
		{"(87)", 87, true},
		{"12.345 Bewertungen", 12345, true},
		{"4.5 out of 5", 4, true},
		{"1,234,567", 1234567, true},
		{"none yet", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			value, ok := Count(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestIdentifier(t *testing.T) {
	id, ok := Identifier("  B0ABCDEF12 ")
	require.True(t, ok)
	assert.Equal(t, "B0ABCDEF12", id)

	for _, bad := range []string{"", "b0abcdef12", "B0ABCDEF1", "B0ABCDEF123", "B0ABC-EF12"} {
		_, ok := Identifier(bad)
		assert.False(t, ok, bad)
	}
}

func TestIdentifierFromURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
		ok       bool
	}{
		{"https://www.example.com/Kettle/dp/B0ABCDEF12/ref=sr_1_1", "B0ABCDEF12", true},
		{"https://www.example.com/dp/B0ABCDEF12", "B0ABCDEF12", true},
		{"https://www.example.com/dp/B0ABCDEF12?th=1", "B0ABCDEF12", true},
		{"https://www.example.com/gp/product/B0ABCDEF12/", "B0ABCDEF12", true},
		{"https://www.example.com/dp/b0abcdef12", "", false},
		{"https://www.example.com/dp/B0ABCDEF123", "", false},
		{"https://www.example.com/s?k=kettle", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			id, ok := IdentifierFromURL(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestBreadcrumb(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div id="wayfinding-breadcrumbs_feature_div">
			<ul>
				<li><a href="/home">  Home &amp; Kitchen </a></li>
				<li>›</li>
				<li><a href="/kitchen">Kitchen</a></li>
				<li><a href="/kettles">Electric Kettles</a></li>
			</ul>
		</div>`))
	require.NoError(t, err)

	parts, ok := Breadcrumb(doc.Find("#wayfinding-breadcrumbs_feature_div"))

	require.True(t, ok)
	assert.Equal(t, []string{"Home & Kitchen", "Kitchen", "Electric Kettles"}, parts)
	assert.Equal(t, "Home & Kitchen > Kitchen > Electric Kettles", JoinBreadcrumb(parts))
}

// TestBreadcrumb_MissingContainer verifies a missing container is absent but
// an empty one is not
func TestBreadcrumb_MissingContainer(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div id="crumbs"></div>`))
	require.NoError(t, err)

	_, ok := Breadcrumb(doc.Find("#wayfinding-breadcrumbs_feature_div"))
	assert.False(t, ok)

	parts, ok := Breadcrumb(doc.Find("#crumbs"))
	assert.True(t, ok)
	assert.Empty(t, parts)

	_, ok = Breadcrumb(nil)
	assert.False(t, ok)
}

func TestSplitBreadcrumb(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, SplitBreadcrumb("A > B"))
	assert.Nil(t, SplitBreadcrumb(""))
}

// TestBreadcrumb_SeparatorInSegment verifies a segment containing the
// separator survives a join and split
func TestBreadcrumb_SeparatorInSegment(t *testing.T) {
	tests := [][]string{
		{"Tools > Parts", "Bolts"},
		{`C:\Drivers`, "Kettles>1L"},
		{"Café", "Électroménager"},
	}
	for _, parts := range tests {
		joined := JoinBreadcrumb(parts)
		assert.Equal(t, parts, SplitBreadcrumb(joined), joined)
	}

	assert.Equal(t, `Tools \> Parts > Bolts`, JoinBreadcrumb([]string{"Tools > Parts", "Bolts"}))
}

func TestText(t *testing.T) {
	text, ok := Text("  Café   Kettle\n")
	require.True(t, ok)
	assert.Equal(t, "Café Kettle", text)

	text, ok = Text("ＡＢＣ")
	require.True(t, ok)
	assert.Equal(t, "ABC", text)

	_, ok = Text(" \t\n ")
	assert.False(t, ok)
}
