package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mithoo/internal/pipeline"
)

// chatRequest is the wire shape of POST /api/chat.
type chatRequest struct {
	pipeline.ChatRequest
	Stream bool `json:"stream"`
}

// handleChat handles POST /api/chat. With stream:true the response is
// SSE: chunk events as the model produces text, then one final result
// event carrying the classified reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}

	if req.Stream {
		s.streamChat(w, r, req.ChatRequest)
		return
	}

	result, err := s.pipeline.Chat(r.Context(), req.ChatRequest)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// streamChat runs the turn over SSE. Errors after the stream opens are
// delivered as an error event since the status line is already gone.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req pipeline.ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	result, err := s.pipeline.ChatStream(r.Context(), req, func(chunk string) {
		writeEvent("chunk", map[string]string{"text": chunk})
	})
	if err != nil {
		writeEvent("error", map[string]any{
			"error":  err.Error(),
			"status": statusForError(err),
		})
		return
	}

	writeEvent("result", result)
}

// saveMessageRequest is the wire shape of POST /api/messages.
type saveMessageRequest struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	ArticleID      string `json:"articleId"`
	Message        string `json:"message"`
	Response       string `json:"response"`
}

// handleSaveMessage handles POST /api/messages: persist a user turn and
// the assistant reply the client already streamed.
func (s *Server) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	var req saveMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" || req.Message == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "userId and message are required"})
		return
	}

	id, err := s.pipeline.SaveExchange(r.Context(), pipeline.ChatRequest{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		ArticleID:      req.ArticleID,
		Message:        req.Message,
	}, req.Response)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"conversationId": id})
}

// handleGetMessages handles GET /api/conversations/{id}/messages.
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	messages, err := s.pipeline.History(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if messages == nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"conversationId": id,
		"messages":       messages,
	})
}
