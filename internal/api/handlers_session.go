package api

import (
	"encoding/json"
	"net/http"

	"github.com/galeops/windfleet/internal/dashboard"
	"github.com/galeops/windfleet/internal/metrics"
	"github.com/galeops/windfleet/internal/models"
)

type mapState struct {
	View       dashboard.MapView                `json:"view"`
	Markers    map[string]dashboard.MarkerStyle `json:"markers"`
	SelectedID string                           `json:"selected_id"`
	Farms      []models.WindFarm                `json:"farms"`
}

type chatState struct {
	Messages       []dashboard.Message `json:"messages"`
	Pending        bool                `json:"pending"`
	LastError      string              `json:"last_error,omitempty"`
	ConversationID string              `json:"conversation_id,omitempty"`
	RevealedIDs    []string            `json:"revealed_ids"`
}

func buildMapState(sel *dashboard.Selection) mapState {
	return mapState{
		View:       sel.View(),
		Markers:    sel.MarkerStyles(),
		SelectedID: sel.SelectedID(),
		Farms:      sel.Farms(),
	}
}

func buildChatState(conv *dashboard.Conversation) chatState {
	messages := conv.Messages()
	revealed := []string{}
	for _, m := range messages {
		if conv.QueryVisible(m.ID) {
			revealed = append(revealed, m.ID)
		}
	}
	return chatState{
		Messages:       messages,
		Pending:        conv.Pending(),
		LastError:      conv.LastError(),
		ConversationID: conv.ConversationID(),
		RevealedIDs:    revealed,
	}
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create(s.farms, s.responder, defaultGreeting)
	writeJSON(w, map[string]any{
		"session_id": sess.ID,
		"map":        buildMapState(sess.Selection),
		"chat":       buildChatState(sess.Conversation),
	})
}

// session resolves the path session id, writing a 404 when it is unknown
// or expired.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *dashboard.Session {
	sess := s.sessions.Get(r.PathValue("id"))
	if sess == nil {
		http.Error(w, "session not found", http.StatusNotFound)
	}
	return sess
}

func (s *Server) handleSessionMap(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, buildMapState(sess.Selection))
}

func (s *Server) handleSessionSelect(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	changed := sess.Selection.Toggle(req.ID)
	writeJSON(w, map[string]any{
		"changed": changed,
		"map":     buildMapState(sess.Selection),
	})
}

func (s *Server) handleSessionChat(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, buildChatState(sess.Conversation))
}

func (s *Server) handleSessionChatSend(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	accepted := sess.Conversation.Send(r.Context(), req.Content)
	result := "rejected"
	if accepted {
		if sess.Conversation.LastError() != "" {
			result = "error"
		} else {
			result = "ok"
		}
	}
	metrics.ChatSendsTotal.WithLabelValues(result).Inc()

	writeJSON(w, map[string]any{
		"accepted": accepted,
		"chat":     buildChatState(sess.Conversation),
	})
}

func (s *Server) handleSessionReveal(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess.Conversation.ToggleQueryVisibility(req.MessageID)
	writeJSON(w, map[string]any{
		"message_id": req.MessageID,
		"revealed":   sess.Conversation.QueryVisible(req.MessageID),
	})
}
