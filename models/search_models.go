package models

// RetrievedSource is one web page pulled into context.
//
// Content is the cleaned body text, never longer than MaxContentChars. When
// extraction produced nothing it holds the search-listing snippet instead.
type RetrievedSource struct {
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
	Snippet   string `json:"snippet,omitempty"`
	Content   string `json:"content"`
}

// RawSearchResult is an entry parsed out of a search-results page, before its
// page is fetched.
type RawSearchResult struct {
	Title     string `json:"title"`
	ResultURL string `json:"result_url"`
	Snippet   string `json:"snippet,omitempty"`
}

// MaxContentChars caps RetrievedSource.Content.
const MaxContentChars = 2500

// SearchRequest represents a request to search the web and fetch result pages
type SearchRequest struct {
	BaseRequest
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

// SearchResponse represents retrieved sources plus their prompt-ready context block
type SearchResponse struct {
	BaseResponse
	Query    string            `json:"query"`
	Sources  []RetrievedSource `json:"sources"`
	Count    int               `json:"count"`
	Context  string            `json:"context"`
	Duration string            `json:"duration"`
}

// FetchRequest represents a request to fetch a single explicit URL
type FetchRequest struct {
	BaseRequest
	URL string `json:"url"`
}

// FetchResponse represents the result of a single-URL fetch
type FetchResponse struct {
	BaseResponse
	Source   *RetrievedSource `json:"source,omitempty"`
	Duration string           `json:"duration"`
}
