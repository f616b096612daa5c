package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/galeops/windfleet/internal/assistant"
	"github.com/galeops/windfleet/internal/fleet"
	"github.com/galeops/windfleet/internal/models"
)

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := s.currentKPIs()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, kpis)
}

func (s *Server) currentKPIs() (models.FleetKPIs, error) {
	turbines, err := s.store.GetTurbines("", 0, 0)
	if err != nil {
		return models.FleetKPIs{}, err
	}
	latest, err := s.store.GetLatestReadings()
	if err != nil {
		return models.FleetKPIs{}, err
	}
	return fleet.ComputeKPIs(turbines, latest), nil
}

func (s *Server) handleTurbines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status models.FarmStatus
	if raw := q.Get("status"); raw != "" {
		status = models.FarmStatus(raw)
		if !models.ValidStatus(status) {
			http.Error(w, "unknown status: "+raw, http.StatusBadRequest)
			return
		}
	}

	limit := intParam(q.Get("limit"), 100)
	offset := intParam(q.Get("offset"), 0)

	turbines, err := s.store.GetTurbines(status, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if turbines == nil {
		turbines = []models.Turbine{}
	}
	writeJSON(w, turbines)
}

func (s *Server) handleTurbine(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	turbine, err := s.store.GetTurbine(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if turbine == nil {
		http.Error(w, "turbine "+id+" not found", http.StatusNotFound)
		return
	}
	writeJSON(w, turbine)
}

func (s *Server) handleScheduleMaintenance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	turbine, err := s.store.GetTurbine(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if turbine == nil {
		http.Error(w, "turbine "+id+" not found", http.StatusNotFound)
		return
	}

	var req struct {
		ScheduledDate time.Time `json:"scheduled_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ScheduledDate.IsZero() {
		http.Error(w, "scheduled_date is required", http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{
		"success":        true,
		"turbine_id":     id,
		"scheduled_date": req.ScheduledDate,
		"message":        "Maintenance scheduled for turbine " + id,
	})
}

func (s *Server) handleEnergyOutput(w http.ResponseWriter, r *http.Request) {
	hours := intParam(r.URL.Query().Get("hours"), 24)
	if hours <= 0 || hours > 24*30 {
		http.Error(w, "hours out of range", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	points, err := s.store.GetHourlyEnergy(now.Add(-time.Duration(hours)*time.Hour), now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Fresh databases have no readings yet; serve the simulated diurnal
	// curve so the dashboard chart is never empty.
	if len(points) == 0 {
		points = fleet.SimulatedHistory(now, hours, s.simSeed)
	}
	writeJSON(w, points)
}

// clusterMarker is the per-turbine map marker shape.
type clusterMarker struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Status       string  `json:"status"`
	EnergyOutput float64 `json:"energy_output"`
	WindSpeed    float64 `json:"wind_speed"`
	FarmName     string  `json:"farm_name"`
	Region       string  `json:"region"`
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	turbines, err := s.store.GetTurbines("", 0, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	latest, err := s.store.GetLatestReadings()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	markers := make([]clusterMarker, 0, len(turbines))
	for _, t := range turbines {
		m := clusterMarker{
			ID:     t.TurbineID,
			Name:   t.Name,
			Lat:    t.Latitude,
			Lng:    t.Longitude,
			Status: string(t.Status),
		}
		if farm, ok := s.farmsByID[t.FarmID]; ok {
			m.FarmName = farm.Name
			m.Region = farm.Region
		}
		if reading, ok := latest[t.TurbineID]; ok {
			if reading.PowerMW.Valid {
				m.EnergyOutput = reading.PowerMW.Float64
			}
			if reading.WindSpeed.Valid {
				m.WindSpeed = reading.WindSpeed.Float64
			}
		}
		markers = append(markers, m)
	}
	writeJSON(w, markers)
}

func (s *Server) handleAssistantSummary(w http.ResponseWriter, r *http.Request) {
	kpis, err := s.currentKPIs()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.summary != nil {
		summary, err := s.summary.Generate(r.Context(), kpis)
		if err == nil {
			writeJSON(w, summary)
			return
		}
		// Fall through to the static summary rather than failing the page.
	}
	writeJSON(w, assistant.StaticSummary(kpis))
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
