package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"queryrouter/models"
	"queryrouter/services"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestBytes = 64 << 10

	codeInvalidRequest = "INVALID_REQUEST"
	codeInternal       = "INTERNAL"
)

// decodeRequest reads a JSON body into dst and assigns the request ID.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}, base *models.BaseRequest) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON format: %w", err)
	}
	if base.RequestID == "" {
		base.RequestID = r.Header.Get(requestIDHeader)
	}
	if base.RequestID == "" {
		base.RequestID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, base.RequestID)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, requestID, code, message string) {
	resp := models.NewBaseResponse(requestID)
	resp.Status = models.StatusError
	resp.Code = code
	resp.Error = message
	writeJSON(w, status, resp)
}

// writeServiceError maps retrieval errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	var retrievalErr *services.RetrievalError
	if errors.As(err, &retrievalErr) {
		status := http.StatusBadGateway
		if retrievalErr.Code == services.ErrNoResults {
			status = http.StatusNotFound
		}
		writeError(w, status, requestID, string(retrievalErr.Code), retrievalErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, requestID, codeInternal, err.Error())
}

var notBlank = validation.By(func(value interface{}) error {
	if s, _ := value.(string); strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

var maxResultsRule = validation.Max(services.MaxSearchResults)

func validateSearch(req *models.SearchRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Query, notBlank),
		validation.Field(&req.MaxResults, validation.Min(0), maxResultsRule),
	)
}

func validateFetch(req *models.FetchRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.URL, validation.Required, is.URL, httpScheme),
	)
}

var httpScheme = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an http or https URL")
	}
	return nil
})

func validateAsk(req *models.AskRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Query, notBlank),
		validation.Field(&req.MaxResults, validation.Min(0), maxResultsRule),
	)
}

func validateClassify(req *models.ClassifyRequest) error {
	if req.Model == nil {
		return nil
	}
	return validation.ValidateStruct(req.Model,
		validation.Field(&req.Model.BaseURL, is.URL),
	)
}
