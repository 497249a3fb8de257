// Package common provides shared HTTP response helpers for API handlers.
package common

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the JSON envelope for all error responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

// WriteJSONResponse writes v as JSON with the given status code.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteErrorResponse writes a JSON error envelope with the given status code.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message, errorCode string) {
	WriteJSONResponse(w, statusCode, ErrorResponse{
		Error:     message,
		ErrorCode: errorCode,
	})
}
