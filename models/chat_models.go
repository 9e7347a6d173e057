package models

// AskRequest represents a free-text query routed through the assistant
type AskRequest struct {
	BaseRequest
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
	// Ground asks for web grounding on the conversational path even when the
	// query carries no explicit URLs.
	Ground bool `json:"ground,omitempty"`
}

// AskResponse represents the assistant's routing decision and its output
type AskResponse struct {
	BaseResponse
	Query    string            `json:"query"`
	Intent   QueryIntent       `json:"intent"`
	Sources  []RetrievedSource `json:"sources,omitempty"`
	Context  string            `json:"context,omitempty"`
	Answer   string            `json:"answer,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
	Duration string            `json:"duration"`
}
