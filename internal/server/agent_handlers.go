package server

import (
	"encoding/json"
	"net/http"

	"mithoo/internal/agent"
)

// handleAgent handles POST /api/agent.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}

	result, err := s.agent.Run(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}
