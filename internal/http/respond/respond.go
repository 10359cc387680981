// Package respond writes the JSON bodies shared by every HTTP handler.
package respond

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the structured error payload returned for 4xx/5xx responses.
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// JSON writes payload with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes {"error": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}

// Invalid writes a 400 with per-field details.
func Invalid(w http.ResponseWriter, msg string, details []string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: msg, Details: details})
}

// Internal hides the underlying error from the caller.
func Internal(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "internal server error")
}
