package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryrouter/models"
)

const articleHTML = `<html><head><title>Fast Page</title></head><body>
<nav>Menu Login Signup</nav>
<article><h1>Fast page</h1><p>%s</p></article>
<footer>footer links</footer>
</body></html>`

func articleBody(text string) string {
	return fmt.Sprintf(articleHTML, strings.Repeat(text+" ", 12))
}

// newSearchServer serves a results page listing the given destinations, each
// with a distinct snippet.
func newSearchServer(t *testing.T, dests ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var entries []string
		for i, dest := range dests {
			entries = append(entries, organicResult(url.QueryEscape(dest), fmt.Sprintf("Result %d", i), fmt.Sprintf("Snippet number %d for this result that is clearly longer than forty characters.", i)))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, resultsPage(entries...))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRetrieval(searchURL string, pageTimeout time.Duration) *RetrievalService {
	engine := GoogleEngine
	engine.SearchURL = searchURL + "/search?q="
	return NewRetrievalService(NewPageFetcher("", ""), RetrievalConfig{
		Engine:        engine,
		PageTimeout:   pageTimeout,
		SearchTimeout: 2 * time.Second,
	}, zerolog.Nop())
}

func sourceByURL(sources []models.RetrievedSource, u string) (models.RetrievedSource, bool) {
	for _, s := range sources {
		if s.SourceURL == u {
			return s, true
		}
	}
	return models.RetrievedSource{}, false
}

func TestSearchAndFetch_PartialFailure(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articleBody("The quick brown fox jumps over the lazy dog."))
	}))
	defer fast.Close()

	slowURL, brokenURL, fastURL := slow.URL+"/slow", broken.URL+"/broken", fast.URL+"/fast"
	search := newSearchServer(t, slowURL, brokenURL, fastURL)
	svc := newTestRetrieval(search.URL, 300*time.Millisecond)

	start := time.Now()
	sources, err := svc.SearchAndFetch(context.Background(), "fox facts", 3)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Less(t, elapsed, 2*time.Second)

	timedOut, ok := sourceByURL(sources, slowURL)
	require.True(t, ok)
	assert.Equal(t, timedOut.Snippet, timedOut.Content)
	assert.Contains(t, timedOut.Content, "Snippet number 0")

	failed, ok := sourceByURL(sources, brokenURL)
	require.True(t, ok)
	assert.Contains(t, failed.Content, "Snippet number 1")

	good, ok := sourceByURL(sources, fastURL)
	require.True(t, ok)
	assert.Equal(t, "Result 2", good.Title)
	assert.Contains(t, good.Content, "quick brown fox")
	assert.NotContains(t, good.Content, "Menu Login")
	assert.NotContains(t, good.Content, "footer links")
}

func TestSearchAndFetch_OmitsUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/gone"
	dead.Close()

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleBody("Reachable page content."))
	}))
	defer fast.Close()

	search := newSearchServer(t, deadURL, fast.URL+"/ok")
	svc := newTestRetrieval(search.URL, time.Second)

	sources, err := svc.SearchAndFetch(context.Background(), "anything", 5)

	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, fast.URL+"/ok", sources[0].SourceURL)
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x01\x00\xff\xfe\xfd binarydata \x80\x81\x82")

func TestSearchAndFetch_BinaryPageDegradesToSnippet(t *testing.T) {
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	}))
	defer images.Close()

	search := newSearchServer(t, images.URL+"/logo.png")
	svc := newTestRetrieval(search.URL, time.Second)

	sources, err := svc.SearchAndFetch(context.Background(), "gopher logo", 5)

	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, sources[0].Snippet, sources[0].Content)
	assert.NotContains(t, sources[0].Content, "PNG")
}

func TestPageFetcher_RejectsBinaryContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.7")
	}))
	defer srv.Close()

	_, err := NewPageFetcher("", "").Get(context.Background(), srv.URL, time.Second)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, fetchErr.Reachable())
	assert.ErrorIs(t, err, errUnsupportedContent)
	assert.Contains(t, err.Error(), "application/pdf")
}

func TestIsTextual(t *testing.T) {
	for _, ct := range []string{"", "text/html", "text/plain", "application/xhtml+xml", "application/rss+xml", "application/json", "application/ld+json"} {
		assert.True(t, isTextual(ct), ct)
	}
	for _, ct := range []string{"image/png", "application/pdf", "application/zip", "application/octet-stream", "video/mp4"} {
		assert.False(t, isTextual(ct), ct)
	}
}

func TestSearchAndFetch_ContentBounded(t *testing.T) {
	big := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><article>"+strings.Repeat("Lots of words on this page. ", 500)+"</article></body></html>")
	}))
	defer big.Close()

	search := newSearchServer(t, big.URL+"/big")
	svc := newTestRetrieval(search.URL, time.Second)

	sources, err := svc.SearchAndFetch(context.Background(), "big page", 1)

	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.LessOrEqual(t, utf8.RuneCountInString(sources[0].Content), models.MaxContentChars)
	assert.NotEmpty(t, sources[0].Content)
}

func TestSearchAndFetch_LimitsFetches(t *testing.T) {
	var dests []string
	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleBody("Page at "+r.URL.Path))
	}))
	defer pages.Close()
	for i := 0; i < 6; i++ {
		dests = append(dests, fmt.Sprintf("%s/p%d", pages.URL, i))
	}
	search := newSearchServer(t, dests...)
	svc := newTestRetrieval(search.URL, time.Second)

	sources, err := svc.SearchAndFetch(context.Background(), "many", 2)

	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestSearchAndFetch_NoResults(t *testing.T) {
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Your search did not match any documents.</body></html>")
	}))
	defer search.Close()
	svc := newTestRetrieval(search.URL, time.Second)

	sources, err := svc.SearchAndFetch(context.Background(), "zzqxj", 5)

	assert.Nil(t, sources)
	assert.True(t, IsCode(err, ErrNoResults))
}

func TestSearchAndFetch_EmptyQuery(t *testing.T) {
	svc := newTestRetrieval("http://127.0.0.1:1", time.Second)

	_, err := svc.SearchAndFetch(context.Background(), "   ", 5)

	assert.True(t, IsCode(err, ErrNoResults))
}

func TestSearchAndFetch_ResultsPageFailure(t *testing.T) {
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer search.Close()
	svc := newTestRetrieval(search.URL, time.Second)

	_, err := svc.SearchAndFetch(context.Background(), "rate limited", 5)

	require.Error(t, err)
	assert.True(t, IsCode(err, ErrFetchFailed))

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusTooManyRequests, fetchErr.Status)
}

func TestSearchAndFetch_SendsHeaders(t *testing.T) {
	var gotUA, gotLang, gotQuery string
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, "<html></html>")
	}))
	defer search.Close()
	svc := newTestRetrieval(search.URL, time.Second)

	_, _ = svc.SearchAndFetch(context.Background(), "go & rust", 3)

	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, DefaultAcceptLanguage, gotLang)
	assert.Equal(t, "go & rust", gotQuery)
}

func TestFetchSingleURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, articleBody("Single page body text."))
		case "/og":
			fmt.Fprint(w, `<html><head><meta property="og:title" content="Open Graph Title"></head><body><p>hi</p></body></html>`)
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "  line one  \n\n line two ")
		case "/png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngBytes)
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"name": "gopher"}`)
		case "/latin1":
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			w.Write([]byte("<html><head><title>Caf\xe9</title></head><body><p>cr\xe8me br\xfbl\xe9e</p></body></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	svc := newTestRetrieval(srv.URL, time.Second)
	ctx := context.Background()

	t.Run("html page", func(t *testing.T) {
		source := svc.FetchSingleURL(ctx, srv.URL+"/article")
		require.NotNil(t, source)
		assert.Equal(t, "Fast Page", source.Title)
		assert.Equal(t, srv.URL+"/article", source.SourceURL)
		assert.Contains(t, source.Content, "Single page body text.")
	})

	t.Run("og title", func(t *testing.T) {
		source := svc.FetchSingleURL(ctx, srv.URL+"/og")
		require.NotNil(t, source)
		assert.Equal(t, "Open Graph Title", source.Title)
	})

	t.Run("plain text titled by host", func(t *testing.T) {
		source := svc.FetchSingleURL(ctx, srv.URL+"/plain")
		require.NotNil(t, source)
		assert.Equal(t, "127.0.0.1", source.Title)
		assert.Equal(t, "line one\nline two", source.Content)
	})

	t.Run("charset decoding", func(t *testing.T) {
		source := svc.FetchSingleURL(ctx, srv.URL+"/latin1")
		require.NotNil(t, source)
		assert.Equal(t, "Café", source.Title)
		assert.Equal(t, "crème brûlée", source.Content)
	})

	t.Run("not found", func(t *testing.T) {
		assert.Nil(t, svc.FetchSingleURL(ctx, srv.URL+"/missing"))
	})

	t.Run("binary body", func(t *testing.T) {
		assert.Nil(t, svc.FetchSingleURL(ctx, srv.URL+"/png"))
	})

	t.Run("json body", func(t *testing.T) {
		source := svc.FetchSingleURL(ctx, srv.URL+"/json")
		require.NotNil(t, source)
		assert.Equal(t, `{"name": "gopher"}`, source.Content)
	})

	t.Run("invalid url", func(t *testing.T) {
		assert.Nil(t, svc.FetchSingleURL(ctx, "not a url"))
		assert.Nil(t, svc.FetchSingleURL(ctx, "ftp://example.com/file"))
	})
}

func TestFetchSingleURL_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer slow.Close()
	svc := newTestRetrieval(slow.URL, 100*time.Millisecond)

	assert.Nil(t, svc.FetchSingleURL(context.Background(), slow.URL))
}

func TestFetchURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, articleBody("Body of "+r.URL.Path))
	}))
	defer srv.Close()
	svc := newTestRetrieval(srv.URL, time.Second)

	sources := svc.FetchURLs(context.Background(), []string{srv.URL + "/a", srv.URL + "/bad", srv.URL + "/b"})

	assert.Len(t, sources, 2)
}

func TestFormatSourcesAsContext(t *testing.T) {
	assert.Equal(t, "", FormatSourcesAsContext(nil))

	block := FormatSourcesAsContext([]models.RetrievedSource{
		{Title: "Go", SourceURL: "https://go.dev", Content: "Go is a language."},
		{Title: "Rust", SourceURL: "https://rust-lang.org", Content: "Rust is too."},
	})

	want := contextHeader +
		"\n\n[Source 1: Go](https://go.dev)\nGo is a language." +
		"\n\n[Source 2: Rust](https://rust-lang.org)\nRust is too."
	assert.Equal(t, want, block)
}

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "explain goroutines", nil},
		{"trailing punctuation", "summarize https://go.dev/blog/intro.", []string{"https://go.dev/blog/intro"}},
		{"dedupe", "compare https://a.com and https://a.com", []string{"https://a.com"}},
		{"capped", "http://a.com http://b.com http://c.com http://d.com", []string{"http://a.com", "http://b.com", "http://c.com"}},
		{"parenthesized", "(see https://example.com/x)", []string{"https://example.com/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractURLs(tt.text))
		})
	}
}
