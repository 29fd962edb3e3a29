// Package health implements the health check endpoint.
package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// Checker reports whether a component is healthy.
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// Handler processes health check requests.
type Handler struct {
	checkers map[string]Checker
	version  string
}

// Response is the health check body.
type Response struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// New creates a health handler over named component checkers.
func New(version string, checkers map[string]Checker) *Handler {
	return &Handler{checkers: checkers, version: version}
}

// ServeHTTP handles health check requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	response := Response{
		Status:  "healthy",
		Version: h.version,
		Details: make(map[string]any),
	}

	for name, checker := range h.checkers {
		if err := checker.CheckHealth(r.Context()); err != nil {
			response.Status = "unhealthy"
			response.Details[name] = map[string]any{
				"status":  "unhealthy",
				"message": err.Error(),
			}
		} else {
			response.Details[name] = map[string]any{"status": "healthy"}
		}
	}

	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"error":"server_error","error_description":"Error encoding response"}`,
			http.StatusInternalServerError)
	}
}
