// Package common holds helpers shared by the OAuth endpoint handlers.
package common

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorResponse is the OAuth error body per RFC 6749 section 5.2 and
// RFC 8628 section 3.5.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// SetJSONHeaders sets the headers required on all token and device
// authorization responses.
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// WriteError sends an OAuth error response with the given status code.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	SetJSONHeaders(w)
	w.WriteHeader(status)

	response := ErrorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		WriteJSONError(w)
	}
}

// WriteJSONError handles JSON encoding failures with a fixed response
// body, since encoding the structured one just failed.
func WriteJSONError(w http.ResponseWriter) {
	SetJSONHeaders(w)
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"server_error","error_description":"Failed to encode response"}`))
}

// RejectDuplicateParams enforces RFC 8628 sections 3.1/3.4: request
// parameters must not be included more than once. Returns false and writes
// the error response if a duplicate is found.
func RejectDuplicateParams(w http.ResponseWriter, form map[string][]string, errorCode string) bool {
	for key, values := range form {
		if len(values) > 1 {
			WriteError(w, http.StatusBadRequest, errorCode,
				"Parameters MUST NOT be included more than once: "+key)
			return false
		}
	}
	return true
}
