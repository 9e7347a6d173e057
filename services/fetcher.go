package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Fetch defaults
const (
	DefaultUserAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
	defaultMaxBodyBytes   = 2 << 20
	maxRedirects          = 5
)

// failureKind classifies why a page fetch produced no usable body.
type failureKind int

const (
	// failureUnreachable: no response at all (DNS, refused, cancelled).
	failureUnreachable failureKind = iota
	// failureTimeout: the per-request deadline expired.
	failureTimeout
	// failureStatus: the server answered with a non-2xx status.
	failureStatus
	// failureBody: the body could not be read or decoded.
	failureBody
)

func (k failureKind) String() string {
	switch k {
	case failureTimeout:
		return "timeout"
	case failureStatus:
		return "status"
	case failureBody:
		return "body"
	default:
		return "unreachable"
	}
}

// FetchError describes a failed page fetch.
type FetchError struct {
	URL    string
	Kind   failureKind
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Kind == failureStatus {
		return fmt.Sprintf("fetch %s: http %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Reachable reports whether the server could be contacted at all. Only
// unreachable pages are omitted from a batch; the rest degrade to snippets.
func (e *FetchError) Reachable() bool {
	return e.Kind != failureUnreachable
}

// Page is a fetched, charset-decoded document.
type Page struct {
	URL         string
	FinalURL    string
	Status      int
	ContentType string
	Body        string
}

// PageFetcher issues GET requests over a shared keep-alive client. It holds no
// per-request state and is safe for concurrent use.
type PageFetcher struct {
	client         *http.Client
	userAgent      string
	acceptLanguage string
	maxBodyBytes   int64
}

// NewPageFetcher creates a fetcher with its own connection pool. Empty header
// values fall back to defaults.
func NewPageFetcher(userAgent, acceptLanguage string) *PageFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if acceptLanguage == "" {
		acceptLanguage = DefaultAcceptLanguage
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4

	return &PageFetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent:      userAgent,
		acceptLanguage: acceptLanguage,
		maxBodyBytes:   defaultMaxBodyBytes,
	}
}

// Get fetches rawURL within timeout, independent of any sibling request's
// budget. Non-2xx responses are returned as a *FetchError of kind status.
func (f *PageFetcher) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: failureUnreachable, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", f.acceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: transportFailure(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{URL: rawURL, Kind: failureStatus, Status: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if ct := normalizeContentType(contentType); !isTextual(ct) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{URL: rawURL, Kind: failureBody, Status: resp.StatusCode, Err: fmt.Errorf("%w: %s", errUnsupportedContent, ct)}
	}
	reader, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBodyBytes), contentType)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: failureBody, Status: resp.StatusCode, Err: err}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		kind := failureBody
		if transportFailure(err) == failureTimeout {
			kind = failureTimeout
		}
		return nil, &FetchError{URL: rawURL, Kind: kind, Status: resp.StatusCode, Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Page{
		URL:         rawURL,
		FinalURL:    finalURL,
		Status:      resp.StatusCode,
		ContentType: normalizeContentType(contentType),
		Body:        string(body),
	}, nil
}

// transportFailure separates deadline expiry from a host that never answered.
func transportFailure(err error) failureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failureTimeout
	}
	return failureUnreachable
}

var errUnsupportedContent = errors.New("unsupported content type")

func normalizeContentType(value string) string {
	parts := strings.Split(value, ";")
	return strings.ToLower(strings.TrimSpace(parts[0]))
}

// isTextual reports whether a content type can become prompt text. A missing
// header counts as HTML.
func isTextual(ct string) bool {
	switch {
	case ct == "", strings.HasPrefix(ct, "text/"):
		return true
	case strings.Contains(ct, "html"), strings.Contains(ct, "xml"):
		return true
	case ct == "application/json", strings.HasSuffix(ct, "+json"):
		return true
	}
	return false
}

// isHTML reports whether a page should go through the HTML extractor.
// Servers that omit the header are assumed to send HTML.
func (p *Page) isHTML() bool {
	ct := p.ContentType
	return ct == "" || strings.Contains(ct, "html") || strings.Contains(ct, "xml")
}

// PageTitle returns the document's <title>, falling back to og:title.
func PageTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " "); title != "" {
		return title
	}
	og, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	return strings.Join(strings.Fields(og), " ")
}
