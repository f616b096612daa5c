package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/galeops/windfleet/internal/assistant"
	"github.com/galeops/windfleet/internal/dashboard"
	"github.com/galeops/windfleet/internal/models"
	"github.com/galeops/windfleet/internal/store"
)

const (
	sessionTTL    = 30 * time.Minute
	sweepInterval = 5 * time.Minute
	staleAfter    = 15 * time.Minute

	defaultGreeting = "Hi! I can answer questions about your wind farm fleet. Ask me about production, maintenance, or turbine status."
)

type Server struct {
	store        *store.Store
	port         string
	farms        []models.WindFarm
	farmsByID    map[string]models.WindFarm
	sessions     *dashboard.Registry
	responder    dashboard.Responder
	summary      *assistant.SummaryGenerator
	chatHealth   func() assistant.Health
	upgrader     websocket.Upgrader
	liveInterval time.Duration
	simSeed      int64
}

func NewServer(st *store.Store, port string, farms []models.WindFarm, responder dashboard.Responder) *Server {
	byID := make(map[string]models.WindFarm, len(farms))
	for _, f := range farms {
		byID[f.FarmID] = f
	}
	return &Server{
		store:     st,
		port:      port,
		farms:     farms,
		farmsByID: byID,
		sessions:  dashboard.NewRegistry(sessionTTL),
		responder: responder,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		liveInterval: 10 * time.Second,
		simSeed:      time.Now().Unix(),
	}
}

// SetSummaryGenerator enables LLM-generated assistant summaries. Without it
// the static fallback summary is served.
func (s *Server) SetSummaryGenerator(gen *assistant.SummaryGenerator) {
	s.summary = gen
}

// SetChatHealth wires the assistant configuration check into /api/chat/health.
func (s *Server) SetChatHealth(fn func() assistant.Health) {
	s.chatHealth = fn
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/fleet/kpis", s.handleKPIs)
	mux.HandleFunc("GET /api/fleet/turbines", s.handleTurbines)
	mux.HandleFunc("GET /api/fleet/turbines/{id}", s.handleTurbine)
	mux.HandleFunc("POST /api/fleet/turbines/{id}/maintenance", s.handleScheduleMaintenance)
	mux.HandleFunc("GET /api/fleet/energy-output", s.handleEnergyOutput)
	mux.HandleFunc("GET /api/fleet/clusters", s.handleClusters)
	mux.HandleFunc("GET /api/assistant-summary", s.handleAssistantSummary)

	mux.HandleFunc("POST /api/chat/send-message", s.handleChatSend)
	mux.HandleFunc("GET /api/chat/health", s.handleChatHealth)

	mux.HandleFunc("POST /api/session", s.handleSessionCreate)
	mux.HandleFunc("GET /api/session/{id}/map", s.handleSessionMap)
	mux.HandleFunc("POST /api/session/{id}/map/select", s.handleSessionSelect)
	mux.HandleFunc("GET /api/session/{id}/chat", s.handleSessionChat)
	mux.HandleFunc("POST /api/session/{id}/chat", s.handleSessionChatSend)
	mux.HandleFunc("POST /api/session/{id}/chat/reveal", s.handleSessionReveal)

	mux.HandleFunc("GET /api/live", s.handleLive)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go s.sweepSessions(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Sweep(); n > 0 {
				log.Printf("api: expired %d idle sessions", n)
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	age, ok, err := s.store.LatestReadingAge(time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok || age > staleAfter {
		status = "degraded"
	}

	writeJSON(w, map[string]any{
		"status":   status,
		"farms":    len(s.farms),
		"sessions": s.sessions.Len(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
