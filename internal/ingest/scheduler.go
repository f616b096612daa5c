package ingest

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/galeops/windfleet/internal/fleet"
	"github.com/galeops/windfleet/internal/metrics"
	"github.com/galeops/windfleet/internal/models"
	"github.com/galeops/windfleet/internal/store"
)

// Scheduler drives telemetry collection: simulated readings on a ticker,
// an optional MQTT source feeding the same store, and a daily energy
// rollup after midnight UTC.
type Scheduler struct {
	store    *store.Store
	sim      *fleet.Simulator
	turbines []models.Turbine
	interval time.Duration
	mqtt     *MQTTSource
	cronSpec string
}

func NewScheduler(st *store.Store, sim *fleet.Simulator, turbines []models.Turbine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		store:    st,
		sim:      sim,
		turbines: turbines,
		interval: interval,
		cronSpec: "10 0 * * *",
	}
}

// SetMQTTSource configures a live telemetry source. Simulated readings
// still run alongside it unless the simulator is nil.
func (s *Scheduler) SetMQTTSource(src *MQTTSource) {
	s.mqtt = src
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.mqtt != nil {
		if err := s.mqtt.Start(ctx); err != nil {
			log.Printf("scheduler: mqtt source: %v", err)
		}
	}

	s.ingestReadings()

	c := cron.New()
	_, err := c.AddFunc(s.cronSpec, func() {
		s.rollupYesterday()
	})
	if err != nil {
		log.Printf("scheduler: cron: %v", err)
	} else {
		c.Start()
		defer c.Stop()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			if s.mqtt != nil {
				s.mqtt.Stop()
			}
			return
		case <-ticker.C:
			s.ingestReadings()
		}
	}
}

// IngestOnce collects a single round of readings and runs the rollup for
// yesterday. Used by the --once CLI mode.
func (s *Scheduler) IngestOnce() error {
	s.ingestReadings()
	s.rollupYesterday()
	return nil
}

func (s *Scheduler) ingestReadings() {
	if s.sim == nil {
		return
	}

	now := time.Now().UTC().Truncate(time.Minute)
	readings := s.sim.Readings(s.turbines, now)

	inserted := 0
	for _, r := range readings {
		if err := s.store.InsertReading(r); err != nil {
			log.Printf("scheduler: insert reading %s: %v", r.TurbineID, err)
			continue
		}
		inserted++
	}
	metrics.ReadingsIngested.WithLabelValues("sim").Add(float64(inserted))
	log.Printf("scheduler: ingested %d simulated readings", inserted)
}

func (s *Scheduler) rollupYesterday() {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	day := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.UTC)
	if err := s.store.ComputeDailyEnergy(day); err != nil {
		log.Printf("scheduler: daily energy rollup %s: %v", day.Format("2006-01-02"), err)
		return
	}
	log.Printf("scheduler: daily energy rollup complete for %s", day.Format("2006-01-02"))
}
