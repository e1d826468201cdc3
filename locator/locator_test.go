package locator

import (
	"strconv"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Selection
}

// spy counts how many times it was asked to locate.
type spy struct {
	value string
	ok    bool
	calls int
}

func (s *spy) Locate(*goquery.Selection) (string, bool) {
	s.calls++
	return s.value, s.ok
}

// TestResolve_ShortCircuits verifies later candidates are never evaluated
// once one resolves
func TestResolve_ShortCircuits(t *testing.T) {
	first := &spy{value: "Kettle", ok: true}
	second := &spy{value: "Other", ok: true}
	third := &spy{value: "Third", ok: true}

	value, ok := Resolve(parse(t, "<html></html>"), []Locator{first, second, third})

	require.True(t, ok)
	assert.Equal(t, "Kettle", value)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "second candidate must not be evaluated")
	assert.Equal(t, 0, third.calls, "third candidate must not be evaluated")
}

// TestResolve_SkipsEmptyValues verifies matches with blank values fall
// through
func TestResolve_SkipsEmptyValues(t *testing.T) {
	blank := &spy{value: "   ", ok: true}
	missing := &spy{ok: false}
	winner := &spy{value: "  padded  ", ok: true}

	value, ok := Resolve(parse(t, "<html></html>"), []Locator{blank, missing, winner})

	require.True(t, ok)
	assert.Equal(t, "padded", value)
	assert.Equal(t, 1, blank.calls)
	assert.Equal(t, 1, missing.calls)
}

// TestResolve_NoMatchIsAbsent verifies no candidate matching is not an error
func TestResolve_NoMatchIsAbsent(t *testing.T) {
	root := parse(t, `<div><span class="a">x</span></div>`)

	value, ok := Resolve(root, []Locator{Text{"#missing"}, Attr{"img", []string{"src"}}})

	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestResolve_NilRoot(t *testing.T) {
	_, ok := Resolve(nil, []Locator{Text{"h1"}})
	assert.False(t, ok)
}

func TestResolve_EmptyCandidates(t *testing.T) {
	_, ok := Resolve(parse(t, "<h1>x</h1>"), nil)
	assert.False(t, ok)
}

func TestText_CollapsesWhitespace(t *testing.T) {
	root := parse(t, "<h1 id=\"productTitle\">\n   Stainless   Steel\n Kettle  </h1>")

	value, ok := Text{"#productTitle"}.Locate(root)

	require.True(t, ok)
	assert.Equal(t, "Stainless Steel Kettle", value)
}

func TestAttr_FallsBackAcrossAttributeNames(t *testing.T) {
	root := parse(t, `<img class="s-image" data-src="https://img.example/lazy.jpg">`)

	value, ok := Attr{".s-image", []string{"src", "data-src"}}.Locate(root)

	require.True(t, ok)
	assert.Equal(t, "https://img.example/lazy.jpg", value)
}

func TestAttr_MissingAttribute(t *testing.T) {
	root := parse(t, `<img class="s-image">`)

	_, ok := Attr{".s-image", []string{"src"}}.Locate(root)

	assert.False(t, ok)
}

func TestTextOrAttr_UsesLabelWhenTextEmpty(t *testing.T) {
	root := parse(t, `<i class="a-icon-star" aria-label="4.5 out of 5 stars"></i>`)

	value, ok := TextOrAttr{".a-icon-star", "aria-label"}.Locate(root)

	require.True(t, ok)
	assert.Equal(t, "4.5 out of 5 stars", value)
}

func TestSelf_ReadsRootAttribute(t *testing.T) {
	doc := parse(t, `<div data-asin="B0ABCDEF12"><span>x</span></div>`)
	node := doc.Find("div").First()

	value, ok := Self{[]string{"data-asin"}}.Locate(node)

	require.True(t, ok)
	assert.Equal(t, "B0ABCDEF12", value)
}

// TestResolveValid_SkipsUnparseableCandidate verifies validation falls
// through to the next candidate
func TestResolveValid_SkipsUnparseableCandidate(t *testing.T) {
	root := parse(t, `<div><span id="deal">Currently unavailable</span><span id="our">42</span></div>`)
	atoi := func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil
	}

	value, ok := ResolveValid(root, []Locator{Text{"#deal"}, Text{"#our"}}, atoi)

	require.True(t, ok)
	assert.Equal(t, 42, value)
}

func TestResolveValid_NothingValid(t *testing.T) {
	root := parse(t, `<span id="deal">n/a</span>`)
	atoi := func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil
	}

	value, ok := ResolveValid(root, []Locator{Text{"#deal"}}, atoi)

	assert.False(t, ok)
	assert.Zero(t, value)
}

func TestFunc_Adapter(t *testing.T) {
	loc := Func(func(*goquery.Selection) (string, bool) { return "v", true })

	value, ok := Resolve(parse(t, "<p></p>"), []Locator{loc})

	require.True(t, ok)
	assert.Equal(t, "v", value)
}
