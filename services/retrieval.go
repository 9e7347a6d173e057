package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"queryrouter/models"
)

// Retrieval defaults
const (
	DefaultMaxResults    = 5
	MaxSearchResults     = 10
	DefaultPageTimeout   = 4 * time.Second
	DefaultSearchTimeout = 5 * time.Second
	maxExplicitURLs      = 3
)

// contextHeader opens every formatted context block.
const contextHeader = "The following web sources were retrieved as context for the user's request:"

// RetrievalConfig controls the search engine profile and request budgets.
type RetrievalConfig struct {
	Engine        SearchEngine
	PageTimeout   time.Duration
	SearchTimeout time.Duration
}

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	if c.Engine.SearchURL == "" {
		c.Engine = GoogleEngine
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = DefaultPageTimeout
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
	return c
}

// RetrievalService searches the web and turns result pages into prompt-ready
// sources. Every call is independent; the service keeps no per-call state.
type RetrievalService struct {
	fetcher *PageFetcher
	cfg     RetrievalConfig
	logger  zerolog.Logger
}

// NewRetrievalService creates a retrieval service over the given fetcher.
func NewRetrievalService(fetcher *PageFetcher, cfg RetrievalConfig, logger zerolog.Logger) *RetrievalService {
	if fetcher == nil {
		fetcher = NewPageFetcher("", "")
	}
	return &RetrievalService{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		logger:  logger.With().Str("component", "retrieval").Logger(),
	}
}

// SearchAndFetch searches for query and fetches up to maxResults result pages
// concurrently. Sources come back in completion order. The only errors are
// NO_RESULTS and FETCH_FAILED; individual page failures degrade to the listing
// snippet, and pages whose host never answered are left out.
func (r *RetrievalService) SearchAndFetch(ctx context.Context, query string, maxResults int) ([]models.RetrievedSource, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, NewNoResults(query)
	}
	maxResults = clampResults(maxResults)

	results, err := r.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	start := time.Now()
	sources := r.fetchAll(ctx, results)
	r.logger.Debug().
		Str("query", query).
		Int("candidates", len(results)).
		Int("sources", len(sources)).
		Dur("took", time.Since(start)).
		Msg("search batch settled")
	return sources, nil
}

// Search fetches and parses the results page without visiting any result.
func (r *RetrievalService) Search(ctx context.Context, query string, maxResults int) ([]models.RawSearchResult, error) {
	page, err := r.fetcher.Get(ctx, r.cfg.Engine.ResultsURL(query, maxResults), r.cfg.SearchTimeout)
	if err != nil {
		return nil, NewFetchFailed(fmt.Sprintf("%s results page could not be retrieved", r.cfg.Engine.Name), err)
	}
	results := r.cfg.Engine.ParseResults(page.Body, maxResults)
	if len(results) == 0 {
		return nil, NewNoResults(query)
	}
	return results, nil
}

// fetchAll fans out one fetch per result and waits for all of them to settle.
// A failing fetch never cancels its siblings.
func (r *RetrievalService) fetchAll(ctx context.Context, results []models.RawSearchResult) []models.RetrievedSource {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		sources = make([]models.RetrievedSource, 0, len(results))
	)
	for _, result := range results {
		g.Go(func() error {
			source, ok := r.fetchResult(ctx, result)
			if !ok {
				return nil
			}
			mu.Lock()
			sources = append(sources, source)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return sources
}

// fetchResult fetches one result page. ok is false when the source is omitted.
func (r *RetrievalService) fetchResult(ctx context.Context, result models.RawSearchResult) (models.RetrievedSource, bool) {
	source := models.RetrievedSource{
		Title:     result.Title,
		SourceURL: result.ResultURL,
		Snippet:   result.Snippet,
	}
	if source.Title == "" {
		source.Title = hostOf(result.ResultURL)
	}

	page, err := r.fetcher.Get(ctx, result.ResultURL, r.cfg.PageTimeout)
	if err != nil {
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) || !fetchErr.Reachable() {
			r.logger.Debug().Err(err).Str("url", result.ResultURL).Msg("page unreachable, omitting source")
			return source, false
		}
		if result.Snippet == "" {
			r.logger.Debug().Err(err).Str("url", result.ResultURL).Msg("page failed without snippet, omitting source")
			return source, false
		}
		r.logger.Debug().Err(err).Str("url", result.ResultURL).Str("reason", fetchErr.Kind.String()).Msg("degrading to snippet")
		source.Content = TruncateContent(result.Snippet)
		return source, true
	}

	source.Content = TruncateContent(pageText(page))
	if source.Content == "" {
		source.Content = TruncateContent(result.Snippet)
	}
	return source, true
}

// FetchSingleURL fetches a URL the user supplied directly. It returns nil only
// when nothing usable came back: invalid URL, unreachable host, timeout, a
// non-2xx status or a body that is not text (images, archives, PDFs).
func (r *RetrievalService) FetchSingleURL(ctx context.Context, rawURL string) *models.RetrievedSource {
	rawURL = strings.TrimSpace(rawURL)
	if !isFetchableURL(rawURL) {
		r.logger.Debug().Str("url", rawURL).Msg("rejecting non-http url")
		return nil
	}
	page, err := r.fetcher.Get(ctx, rawURL, r.cfg.PageTimeout)
	if err != nil {
		r.logger.Debug().Err(err).Str("url", rawURL).Msg("single fetch failed")
		return nil
	}

	title := ""
	if page.isHTML() {
		title = PageTitle(page.Body)
	}
	if title == "" {
		title = hostOf(rawURL)
	}
	return &models.RetrievedSource{
		Title:     title,
		SourceURL: rawURL,
		Content:   TruncateContent(pageText(page)),
	}
}

// FetchURLs fetches several explicit URLs concurrently and drops total failures.
func (r *RetrievalService) FetchURLs(ctx context.Context, urls []string) []models.RetrievedSource {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		sources = make([]models.RetrievedSource, 0, len(urls))
	)
	for _, u := range urls {
		g.Go(func() error {
			if source := r.FetchSingleURL(ctx, u); source != nil {
				mu.Lock()
				sources = append(sources, *source)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return sources
}

func pageText(page *Page) string {
	if page.isHTML() {
		return ExtractContent(page.Body)
	}
	return NormalizeWhitespace(page.Body)
}

// FormatSourcesAsContext renders sources as a model-readable block: a header
// line, then "[Source N: title](url)" and the content for each, separated by
// blank lines. No sources yield an empty string.
func FormatSourcesAsContext(sources []models.RetrievedSource) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(contextHeader)
	for i, source := range sources {
		fmt.Fprintf(&b, "\n\n[Source %d: %s](%s)\n%s", i+1, source.Title, source.SourceURL, source.Content)
	}
	return b.String()
}

var explicitURLPattern = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `]+`)

// ExtractURLs returns the distinct http(s) URLs written in text, in order of
// appearance, at most three.
func ExtractURLs(text string) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, match := range explicitURLPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:!?)]}")
		if seen[match] || !isFetchableURL(match) {
			continue
		}
		seen[match] = true
		urls = append(urls, match)
		if len(urls) == maxExplicitURLs {
			break
		}
	}
	return urls
}

func isFetchableURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return displayHost(parsed)
}

func clampResults(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	if n > MaxSearchResults {
		return MaxSearchResults
	}
	return n
}
