package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/galeops/windfleet/internal/assistant"
	"github.com/galeops/windfleet/internal/metrics"
)

type chatSendRequest struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
}

// handleChatSend is the stateless chat endpoint: one request, one reply,
// conversation continuity carried by the client-supplied conversation_id.
func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	reply, err := s.responder.Send(r.Context(), req.Content, req.ConversationID)
	if err != nil {
		metrics.ChatSendsTotal.WithLabelValues("error").Inc()
		http.Error(w, "assistant request failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	metrics.ChatSendsTotal.WithLabelValues("ok").Inc()

	if reply.Timestamp.IsZero() {
		reply.Timestamp = time.Now().UTC()
	}
	writeJSON(w, reply)
}

func (s *Server) handleChatHealth(w http.ResponseWriter, r *http.Request) {
	if s.chatHealth == nil {
		writeJSON(w, assistant.Health{Status: "not_configured"})
		return
	}
	writeJSON(w, s.chatHealth())
}
