package services

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"queryrouter/models"
)

// Result-page parsing limits
const (
	minSnippetChars      = 40
	maxSnippetChars      = 300
	fallbackResultsLimit = 5
	overfetchMargin      = 2
)

// SearchEngine describes the results page of one HTML search engine. Every
// markup-specific detail lives here so a markup change is a data change.
type SearchEngine struct {
	Name string
	// SearchURL is the results page address; the query is appended escaped.
	SearchURL string
	// CountParam, when set, carries the requested result count.
	CountParam string
	// OutboundMarker precedes the percent-encoded destination of each organic link.
	OutboundMarker string
	// OwnDomains are the engine's own hosts; results pointing there are dropped.
	OwnDomains []string
	// OwnBrands are registrable labels the engine uses under every country
	// suffix (google.de, google.co.uk); those hosts are dropped too.
	OwnBrands []string
	// ExcludedHosts are ad/tracking redirect and asset hosts, dropped from both strategies.
	ExcludedHosts []string
}

// GoogleEngine is the default results-page profile.
var GoogleEngine = SearchEngine{
	Name:           "google",
	SearchURL:      "https://www.google.com/search?hl=en&q=",
	CountParam:     "num",
	OutboundMarker: `href="/url?q=`,
	OwnDomains:     []string{"google.com"},
	OwnBrands:      []string{"google"},
	ExcludedHosts: []string{
		"googleadservices.com",
		"doubleclick.net",
		"googlesyndication.com",
		"google-analytics.com",
		"googletagmanager.com",
		"gstatic.com",
		"googleapis.com",
		"googleusercontent.com",
		"schema.org",
		"w3.org",
	},
}

var (
	headingPattern  = regexp.MustCompile(`(?is)<h3\b[^>]*>(.*?)</h3\s*>`)
	spanPattern     = regexp.MustCompile(`(?is)<span\b[^>]*>(.*?)</span\s*>`)
	absoluteHrefPat = regexp.MustCompile(`(?i)href="(https?://[^"]+)"`)
)

// ResultsURL builds the results-page address for a query.
func (e SearchEngine) ResultsURL(query string, count int) string {
	u := e.SearchURL + url.QueryEscape(query)
	if e.CountParam != "" && count > 0 {
		u += "&" + e.CountParam + "=" + strconv.Itoa(count+overfetchMargin)
	}
	return u
}

// allowedHost reports whether a result host is neither the engine itself nor
// a known ad or asset host.
func (e SearchEngine) allowedHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if host == "" {
		return false
	}
	for _, domain := range e.OwnDomains {
		if hostMatches(host, domain) {
			return false
		}
	}
	for _, brand := range e.OwnBrands {
		if brandHost(host, brand) {
			return false
		}
	}
	for _, domain := range e.ExcludedHosts {
		if hostMatches(host, domain) {
			return false
		}
	}
	return true
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// brandHost reports whether host is brand under a public suffix of one or two
// short labels, at any subdomain depth (maps.google.com.au).
func brandHost(host, brand string) bool {
	labels := strings.Split(host, ".")
	for i, label := range labels {
		if label != brand {
			continue
		}
		suffix := labels[i+1:]
		if len(suffix) == 0 || len(suffix) > 2 {
			return false
		}
		for _, l := range suffix {
			if l == "" || len(l) > 3 {
				return false
			}
		}
		return true
	}
	return false
}

// ParseResults extracts organic results from a results page. The primary
// strategy follows the engine's outbound-link marker; when it finds nothing the
// coarse href scan takes over. The list holds at most maxResults plus the
// overfetch margin and may be empty.
func (e SearchEngine) ParseResults(page string, maxResults int) []models.RawSearchResult {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	results := e.parseOutboundLinks(page, maxResults+overfetchMargin)
	if len(results) > 0 {
		return results
	}
	return e.parseAbsoluteLinks(page)
}

func (e SearchEngine) parseOutboundLinks(page string, limit int) []models.RawSearchResult {
	if e.OutboundMarker == "" {
		return nil
	}
	chunks := strings.Split(page, e.OutboundMarker)
	results := make([]models.RawSearchResult, 0, limit)
	seen := make(map[string]bool)

	for _, chunk := range chunks[1:] {
		if len(results) >= limit {
			break
		}
		dest, ok := decodeDestination(chunk)
		if !ok {
			continue
		}
		parsed, err := url.Parse(dest)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			continue
		}
		if !e.allowedHost(parsed.Hostname()) || seen[dest] {
			continue
		}
		seen[dest] = true

		title := ""
		if m := headingPattern.FindStringSubmatch(chunk); m != nil {
			title = InlineText(m[1])
		}
		if title == "" {
			title = displayHost(parsed)
		}

		results = append(results, models.RawSearchResult{
			Title:     title,
			ResultURL: dest,
			Snippet:   longestSpanText(chunk),
		})
	}
	return results
}

// decodeDestination reads the percent-encoded target that follows the marker,
// stopping at the first parameter separator or the end of the attribute.
func decodeDestination(chunk string) (string, bool) {
	end := strings.IndexAny(chunk, `&"`)
	if end <= 0 {
		return "", false
	}
	dest, err := url.QueryUnescape(chunk[:end])
	if err != nil {
		return "", false
	}
	return dest, true
}

// longestSpanText picks the longest span text over minSnippetChars; listing
// snippets are usually the longest inline block near the link.
func longestSpanText(chunk string) string {
	best := ""
	bestLen := 0
	for _, m := range spanPattern.FindAllStringSubmatch(chunk, -1) {
		text := InlineText(m[1])
		n := utf8.RuneCountInString(text)
		if n > minSnippetChars && n > bestLen {
			best, bestLen = text, n
		}
	}
	return TruncateRunes(best, maxSnippetChars)
}

// parseAbsoluteLinks is the markup-agnostic fallback: any absolute href,
// one per host, titled by host, without snippet.
func (e SearchEngine) parseAbsoluteLinks(page string) []models.RawSearchResult {
	var results []models.RawSearchResult
	seenHosts := make(map[string]bool)
	for _, m := range absoluteHrefPat.FindAllStringSubmatch(page, -1) {
		if len(results) >= fallbackResultsLimit {
			break
		}
		raw := DecodeEntities(m[1])
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			continue
		}
		host := strings.ToLower(parsed.Hostname())
		if !e.allowedHost(host) || seenHosts[host] {
			continue
		}
		seenHosts[host] = true
		results = append(results, models.RawSearchResult{
			Title:     displayHost(parsed),
			ResultURL: raw,
		})
	}
	return results
}

func displayHost(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
