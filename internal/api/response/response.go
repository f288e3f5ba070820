// Package response provides utilities for sending consistent HTTP responses.
// It includes helpers for JSON responses and the job-result envelope.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/investoscope/investoscope-backend/internal/logging"
)

// ErrorEnvelope is the failure shape of every job and admin endpoint:
// `{ok: false, error: "..."}`.
type ErrorEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// RespondJSON sends a JSON response with the given status code.
// Sets the Content-Type header to application/json and writes the status code.
// If data is nil, only the status code is sent (useful for 204 No Content).
// Logs encoding errors but does not fail the response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logging.Error("failed to encode JSON response", logging.Fields{"error": err.Error()})
		}
	}
}

// RespondError sends the `{ok: false, error}` envelope with the given status
// code. The message should be a user-friendly error description.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorEnvelope{OK: false, Error: message})
}
