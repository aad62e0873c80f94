package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mithoo/internal/agent"
	"mithoo/internal/convo"
	"mithoo/internal/humanize"
	"mithoo/internal/llm"
	"mithoo/internal/persistence"
	"mithoo/internal/research"
	"mithoo/internal/training"
	"mithoo/internal/writer"
)

// Health check response
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Status response
type StatusResponse struct {
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database bool   `json:"database"`
}

var serverStartTime = time.Now()

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	// Check database connection
	if err := s.db.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}

	checks["database"] = "ok"

	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Checks: checks,
	})
}

// handleStatus handles the /api/status endpoint
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, StatusResponse{
		Version:  "v1.0.0",
		Uptime:   time.Since(serverStartTime).String(),
		Database: s.db.Ping(r.Context()) == nil,
	})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error with the status mapped from the error.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "status", status, "error", err)
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

// statusForError maps domain errors onto HTTP status codes: caller
// mistakes are 4xx, a down datastore is 503, a failing model or
// humanizer upstream is 502 (or its own status when it reported one).
func statusForError(err error) int {
	switch {
	case errors.Is(err, convo.ErrNoUserTurn),
		errors.Is(err, agent.ErrEmptyPrompt),
		errors.Is(err, research.ErrEmptyTopic),
		errors.Is(err, training.ErrEmptySample),
		errors.Is(err, writer.ErrUnknownAction),
		errors.Is(err, writer.ErrNothingToImprove),
		errors.Is(err, humanize.ErrEmptyText),
		errors.Is(err, humanize.ErrInvalidMode):
		return http.StatusBadRequest
	}

	var unavailable *persistence.StoreUnavailableError
	if errors.As(err, &unavailable) {
		return http.StatusServiceUnavailable
	}

	var upstream *llm.UpstreamError
	if errors.As(err, &upstream) {
		return http.StatusBadGateway
	}

	var humanizerErr *humanize.UpstreamError
	if errors.As(err, &humanizerErr) {
		if humanizerErr.StatusCode >= 400 {
			return humanizerErr.StatusCode
		}
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}
