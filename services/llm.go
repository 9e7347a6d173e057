package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"queryrouter/models"
)

// LLMService talks to Ollama-compatible generation endpoints. The endpoint and
// model are passed per call, so one service serves every configuration.
type LLMService struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// OllamaRequest represents a request to the generate API
type OllamaRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// OllamaResponse represents a response from the generate API
type OllamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// GenerateRequest is one non-streaming generation.
type GenerateRequest struct {
	System  string
	Prompt  string
	Options map[string]any
}

// NewLLMService creates a new LLM service instance. Deadlines come from the
// caller's context, not from the client.
func NewLLMService(logger zerolog.Logger) *LLMService {
	return &LLMService{
		httpClient: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		logger:     logger.With().Str("component", "llm").Logger(),
	}
}

// Generate issues a single non-streaming generation request.
func (l *LLMService) Generate(ctx context.Context, cfg models.ModelConfig, req GenerateRequest) (string, error) {
	if !cfg.Usable() {
		return "", fmt.Errorf("model endpoint not configured")
	}

	jsonData, err := json.Marshal(OllamaRequest{
		Model:   cfg.Model,
		System:  req.System,
		Prompt:  req.Prompt,
		Stream:  false,
		Options: req.Options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(cfg.BaseURL, "/api/generate"), bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request to LLM: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("LLM API returned status %d: %s", resp.StatusCode, string(body))
	}

	var ollamaResp OllamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if ollamaResp.Error != "" {
		return "", fmt.Errorf("LLM returned error: %s", ollamaResp.Error)
	}
	return ollamaResp.Response, nil
}

// IsAvailable checks if the endpoint answers its model listing.
func (l *LLMService) IsAvailable(ctx context.Context, cfg models.ModelConfig) bool {
	_, err := l.ListModels(ctx, cfg)
	return err == nil
}

// ListModels returns the models the endpoint reports.
func (l *LLMService) ListModels(ctx context.Context, cfg models.ModelConfig) ([]string, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("model endpoint not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(cfg.BaseURL, "/api/tags"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// BuildAnswerPrompt places the context block ahead of the user's request.
func BuildAnswerPrompt(query, contextBlock string) string {
	var prompt strings.Builder
	if contextBlock != "" {
		prompt.WriteString(contextBlock)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("Human: ")
	prompt.WriteString(query)
	prompt.WriteString("\nAssistant: ")
	return prompt.String()
}

func endpoint(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}
