package controllers

import (
	"net/http"
	"strings"
	"time"

	"queryrouter/models"
)

// ClassifyHandler returns the intent of a query. When overrides are allowed,
// a model in the request replaces the configured one for this call only.
func (c *Controller) ClassifyHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.ClassifyRequest
	if err := decodeRequest(w, r, &req, &req.BaseRequest); err != nil {
		writeError(w, http.StatusBadRequest, req.RequestID, codeInvalidRequest, err.Error())
		return
	}
	if req.Model != nil && !c.allowModelOverride {
		writeError(w, http.StatusBadRequest, req.RequestID, codeInvalidRequest, "model override is disabled")
		return
	}
	if err := validateClassify(&req); err != nil {
		writeError(w, http.StatusBadRequest, req.RequestID, codeInvalidRequest, err.Error())
		return
	}

	model := req.Model
	if model == nil {
		model = c.assistant.Model()
	}
	intent, source := c.assistant.Classifier().ClassifyWithSource(r.Context(), req.Query, model)

	writeJSON(w, http.StatusOK, models.ClassifyResponse{
		BaseResponse: models.NewBaseResponse(req.RequestID),
		Query:        strings.TrimSpace(req.Query),
		Intent:       intent,
		Source:       source,
		Duration:     time.Since(start).String(),
	})
}

// AskHandler routes a query through the assistant
func (c *Controller) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := decodeRequest(w, r, &req, &req.BaseRequest); err != nil {
		writeError(w, http.StatusBadRequest, req.RequestID, codeInvalidRequest, err.Error())
		return
	}
	if err := validateAsk(&req); err != nil {
		writeError(w, http.StatusBadRequest, req.RequestID, codeInvalidRequest, err.Error())
		return
	}

	resp, err := c.assistant.Ask(r.Context(), req)
	if err != nil {
		writeServiceError(w, req.RequestID, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
