package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

const (
	CategoryInvalidInput        = "invalid_input"
	CategoryUnsatisfiableRange  = "unsatisfiable_range"
	CategoryUpstreamUnavailable = "upstream_unavailable"
	CategoryEmptyResponse       = "empty_response"
	CategoryInvalidDocument     = "invalid_document"
	CategoryTimeout             = "timeout"
	CategoryInternal            = "internal"
)

type ProxyErrorBody struct {
	Status        int    `json:"status"`
	RequestID     string `json:"request_id"`
	ErrorCategory string `json:"error_category"`
	Message       string `json:"message"`
}

func WriteProxyError(w http.ResponseWriter, requestID string, status int, category string, message string) {
	if recorder, ok := w.(errorCategoryWriter); ok {
		recorder.SetErrorCategory(category)
	}
	w.Header().Set(RequestIDHeader, requestID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProxyErrorBody{
		Status:        status,
		RequestID:     requestID,
		ErrorCategory: category,
		Message:       message,
	})
}

func NewRequestID() string {
	return uuid.NewString()
}
