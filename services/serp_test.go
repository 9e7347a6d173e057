package services

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const longSnippet = "This is a long snippet text that describes the page in well over forty characters."

func organicResult(dest, title, snippet string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="g"><a href="/url?q=%s&amp;sa=U&amp;ved=2ah">`, dest)
	if title != "" {
		fmt.Fprintf(&b, `<h3 class="r">%s</h3>`, title)
	}
	b.WriteString(`</a><span>short</span>`)
	if snippet != "" {
		fmt.Fprintf(&b, `<div><span class="st">%s</span></div>`, snippet)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func resultsPage(results ...string) string {
	return `<html><body><div id="search">` + strings.Join(results, "\n") + `</div></body></html>`
}

func TestParseResults_Organic(t *testing.T) {
	page := resultsPage(
		organicResult("https://go.dev/doc/", "Documentation - The Go Programming Language", longSnippet),
		organicResult("https://maps.google.com/maps%3Fq%3Dgo", "Maps", longSnippet),
		organicResult("https://www.googleadservices.com/pagead/aclk", "Ad", longSnippet),
		organicResult("https://go.dev/doc/", "Duplicate", longSnippet),
		organicResult("ftp://files.example.com/go.tar.gz", "FTP", longSnippet),
		organicResult("https://en.wikipedia.org/wiki/Go_(programming_language)", "Go &amp; <b>Wikipedia</b>", ""),
	)

	results := GoogleEngine.ParseResults(page, 5)

	require.Len(t, results, 2)
	assert.Equal(t, "https://go.dev/doc/", results[0].ResultURL)
	assert.Equal(t, "Documentation - The Go Programming Language", results[0].Title)
	assert.Equal(t, longSnippet, results[0].Snippet)

	assert.Equal(t, "https://en.wikipedia.org/wiki/Go_(programming_language)", results[1].ResultURL)
	assert.Equal(t, "Go & Wikipedia", results[1].Title)
	assert.Empty(t, results[1].Snippet)
}

func TestParseResults_DecodesDestination(t *testing.T) {
	page := resultsPage(organicResult("https://example.com/search%3Fq%3Dgo%2Blang", "Encoded", ""))

	results := GoogleEngine.ParseResults(page, 5)

	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/search?q=go+lang", results[0].ResultURL)
}

func TestParseResults_TitleFallsBackToHost(t *testing.T) {
	page := resultsPage(organicResult("https://www.example.org/about", "", longSnippet))

	results := GoogleEngine.ParseResults(page, 5)

	require.Len(t, results, 1)
	assert.Equal(t, "example.org", results[0].Title)
}

func TestParseResults_Overfetch(t *testing.T) {
	var entries []string
	for i := 0; i < 10; i++ {
		entries = append(entries, organicResult(fmt.Sprintf("https://site%d.example.com/", i), fmt.Sprintf("Site %d", i), longSnippet))
	}

	results := GoogleEngine.ParseResults(resultsPage(entries...), 2)

	require.Len(t, results, 4)
	assert.Equal(t, "https://site0.example.com/", results[0].ResultURL)
	assert.Equal(t, "https://site3.example.com/", results[3].ResultURL)
}

func TestParseResults_SnippetBounds(t *testing.T) {
	huge := strings.Repeat("lorem ipsum ", 60)
	page := resultsPage(
		organicResult("https://a.example.com/", "A", huge),
		organicResult("https://b.example.com/", "B", "exactly short text"),
	)

	results := GoogleEngine.ParseResults(page, 5)

	require.Len(t, results, 2)
	assert.LessOrEqual(t, utf8.RuneCountInString(results[0].Snippet), 300)
	assert.True(t, strings.HasPrefix(results[0].Snippet, "lorem ipsum"))
	assert.Empty(t, results[1].Snippet)
}

func TestParseResults_FallbackScan(t *testing.T) {
	page := `<html><body>
<a href="https://www.google.com/preferences">Settings</a>
<a href="https://fonts.gstatic.com/s/roboto.woff2">font</a>
<link href="https://www.w3.org/1999/xhtml">
<a href="https://alpha.example.com/one">one</a>
<a href="https://alpha.example.com/two">two</a>
<a href="https://beta.example.com/">beta</a>
<a href="http://gamma.example.com/?a=1&amp;b=2">gamma</a>
<a href="https://delta.example.com/">delta</a>
<a href="https://epsilon.example.com/">epsilon</a>
<a href="https://zeta.example.com/">zeta</a>
</body></html>`

	results := GoogleEngine.ParseResults(page, 10)

	require.Len(t, results, 5)
	assert.Equal(t, "https://alpha.example.com/one", results[0].ResultURL)
	assert.Equal(t, "alpha.example.com", results[0].Title)
	assert.Equal(t, "http://gamma.example.com/?a=1&b=2", results[2].ResultURL)
	for _, r := range results {
		assert.Empty(t, r.Snippet)
		assert.NotContains(t, r.ResultURL, "google.com")
	}
}

func TestParseResults_Empty(t *testing.T) {
	assert.Empty(t, GoogleEngine.ParseResults("", 5))
	assert.Empty(t, GoogleEngine.ParseResults("<html><body>No results</body></html>", 5))
}

func TestParseResults_DropsCountryDomains(t *testing.T) {
	page := resultsPage(
		organicResult("https://www.google.co.uk/maps", "Maps UK", longSnippet),
		organicResult("https://www.google.de/search%3Fq%3Dgo", "Suche", longSnippet),
		organicResult("https://go.dev/", "Go", longSnippet),
	)

	results := GoogleEngine.ParseResults(page, 5)

	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev/", results[0].ResultURL)
}

func TestResultsURL(t *testing.T) {
	assert.Equal(t, "https://www.google.com/search?hl=en&q=go+generics&num=7", GoogleEngine.ResultsURL("go generics", 5))

	engine := SearchEngine{SearchURL: "http://localhost/search?q="}
	assert.Equal(t, "http://localhost/search?q=a%26b", engine.ResultsURL("a&b", 5))
}

func TestAllowedHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"example.com", true},
		{"www.example.com", true},
		{"google.com", false},
		{"www.google.com", false},
		{"news.google.com", false},
		{"ad.doubleclick.net", false},
		{"notgoogle.com", true},
		{"google.co.uk", false},
		{"www.google.de", false},
		{"maps.google.com.au", false},
		{"google.example.com", true},
		{"google.dev.example.org", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, GoogleEngine.allowedHost(tt.host))
		})
	}
}
