package controllers

import (
	"net/http"
	"strings"
	"time"

	"queryrouter/models"
	"queryrouter/services"
)

// SearchHandler searches the web and returns the fetched sources with their
// context block.
func (c *Controller) SearchHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.SearchRequest
	if err := decodeRequest(w, r, &req, &req.BaseRequest); err != nil {
		writeError(w, http.StatusBadRequest, req.RequestID, codeInvalidRequest, err.Error())
		return
	}
	if err := validateSearch(&req); err != nil {
		writeError(w, http.StatusBadRequest, req.RequestID, codeInvalidRequest, err.Error())
		return
	}

	query := strings.TrimSpace(req.Query)
	sources, err := c.assistant.Retrieval().SearchAndFetch(r.Context(), query, req.MaxResults)
	if err != nil {
		c.logger.Info().Err(err).Str("query", query).Msg("search failed")
		writeServiceError(w, req.RequestID, err)
		return
	}

	writeJSON(w, http.StatusOK, models.SearchResponse{
		BaseResponse: models.NewBaseResponse(req.RequestID),
		Query:        query,
		Sources:      sources,
		Count:        len(sources),
		Context:      services.FormatSourcesAsContext(sources),
		Duration:     time.Since(start).String(),
	})
}

// FetchHandler fetches one explicit URL
func (c *Controller) FetchHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.FetchRequest
	if err := decodeRequest(w, r, &req, &req.BaseRequest); err != nil {
		writeError(w, http.StatusBadRequest, req.RequestID, codeInvalidRequest, err.Error())
		return
	}
	if err := validateFetch(&req); err != nil {
		writeError(w, http.StatusBadRequest, req.RequestID, codeInvalidRequest, err.Error())
		return
	}

	source := c.assistant.Retrieval().FetchSingleURL(r.Context(), req.URL)
	if source == nil {
		writeError(w, http.StatusBadGateway, req.RequestID, string(services.ErrFetchFailed), "page could not be fetched")
		return
	}

	writeJSON(w, http.StatusOK, models.FetchResponse{
		BaseResponse: models.NewBaseResponse(req.RequestID),
		Source:       source,
		Duration:     time.Since(start).String(),
	})
}

// HealthHandler provides a health check endpoint
func (c *Controller) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"uptime":    time.Since(c.startTime).String(),
		"endpoints": []string{"/api/classify", "/api/search", "/api/fetch", "/api/ask", "/health"},
		"assistant": c.assistant.Status(r.Context()),
	}
	if c.discordService != nil {
		health["discord"] = c.discordService.GetStatus()
	}
	writeJSON(w, http.StatusOK, health)
}
