package models

// QueryIntent is the inferred purpose of a query.
type QueryIntent string

const (
	IntentSearch    QueryIntent = "search"
	IntentAIChat    QueryIntent = "ai_chat"
	IntentAmbiguous QueryIntent = "ambiguous"
)

// Valid reports whether i is one of the three known intents.
func (i QueryIntent) Valid() bool {
	switch i {
	case IntentSearch, IntentAIChat, IntentAmbiguous:
		return true
	}
	return false
}

// ModelConfig points at a generation endpoint. A nil or incomplete config
// means heuristic-only classification.
type ModelConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
}

// Usable reports whether both the endpoint and the model name are set.
func (c *ModelConfig) Usable() bool {
	return c != nil && c.BaseURL != "" && c.Model != ""
}

// Classification sources
const (
	ClassifiedByHeuristic = "heuristic"
	ClassifiedByModel     = "model"
)

// ClassifyRequest represents an intent classification request
type ClassifyRequest struct {
	BaseRequest
	Query string       `json:"query"`
	Model *ModelConfig `json:"model,omitempty"`
}

// ClassifyResponse represents the classifier's decision
type ClassifyResponse struct {
	BaseResponse
	Query    string      `json:"query"`
	Intent   QueryIntent `json:"intent"`
	Source   string      `json:"source"`
	Duration string      `json:"duration"`
}
