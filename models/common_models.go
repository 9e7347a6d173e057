package models

import "time"

// Response status constants
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BaseRequest represents common request fields
type BaseRequest struct {
	RequestID string `json:"request_id,omitempty"`
}

// BaseResponse represents common response fields
type BaseResponse struct {
	RequestID string    `json:"request_id,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseResponse returns a success envelope stamped with the current time.
func NewBaseResponse(requestID string) BaseResponse {
	return BaseResponse{
		RequestID: requestID,
		Status:    StatusSuccess,
		Timestamp: time.Now(),
	}
}
