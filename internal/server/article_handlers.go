package server

import (
	"encoding/json"
	"net/http"

	"mithoo/internal/humanize"
	"mithoo/internal/research"
	"mithoo/internal/writer"
)

// handleResearch handles POST /api/research.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req research.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}

	data, err := s.research.Run(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, data)
}

// handleGenerateArticle handles POST /api/articles/generate.
func (s *Server) handleGenerateArticle(w http.ResponseWriter, r *http.Request) {
	var req writer.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" || req.ArticleID == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "userId and articleId are required"})
		return
	}

	result, err := s.writer.Run(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// humanizeRequest is the wire shape of POST /api/humanize.
type humanizeRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

// handleHumanize handles POST /api/humanize.
func (s *Server) handleHumanize(w http.ResponseWriter, r *http.Request) {
	var req humanizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	mode, err := humanize.ParseMode(req.Mode)
	if err != nil {
		s.respondError(w, err)
		return
	}

	out, err := s.humanizer.Humanize(r.Context(), req.Text, mode)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"humanizedText": out, "mode": string(mode)})
}

// trainingRequest is the wire shape of POST /api/training.
type trainingRequest struct {
	UserID       string `json:"userId"`
	TrainingText string `json:"trainingText"`
}

// handleTraining handles POST /api/training.
func (s *Server) handleTraining(w http.ResponseWriter, r *http.Request) {
	var req trainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}

	record, err := s.training.Train(r.Context(), req.UserID, req.TrainingText)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, record)
}
