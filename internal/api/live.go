package api

import (
	"log"
	"net/http"
	"time"

	"github.com/galeops/windfleet/internal/metrics"
)

// handleLive streams KPI snapshots to a dashboard over a websocket. The
// client never writes; a failed write means it went away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	metrics.LiveClients.Inc()
	defer metrics.LiveClients.Dec()

	send := func() error {
		kpis, err := s.currentKPIs()
		if err != nil {
			log.Printf("api: live kpis: %v", err)
			return nil
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(map[string]any{
			"type":      "kpis",
			"timestamp": time.Now().UTC(),
			"data":      kpis,
		})
	}

	if err := send(); err != nil {
		return
	}

	ticker := time.NewTicker(s.liveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := send(); err != nil {
				return
			}
		}
	}
}
