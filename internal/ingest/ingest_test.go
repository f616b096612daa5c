package ingest

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/galeops/windfleet/internal/config"
	"github.com/galeops/windfleet/internal/fleet"
	"github.com/galeops/windfleet/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func TestScheduler_IngestOnce(t *testing.T) {
	st := setupTestStore(t)

	farms := config.Default().WindFarms()
	sim := fleet.NewSimulator(farms[:1], 42)
	turbines := sim.Turbines()

	for _, f := range farms[:1] {
		if err := st.UpsertFarm(f); err != nil {
			t.Fatalf("UpsertFarm: %v", err)
		}
	}
	for _, tb := range turbines {
		if err := st.UpsertTurbine(tb); err != nil {
			t.Fatalf("UpsertTurbine: %v", err)
		}
	}

	sched := NewScheduler(st, sim, turbines, time.Minute)
	if err := sched.IngestOnce(); err != nil {
		t.Fatalf("IngestOnce: %v", err)
	}

	latest, err := st.GetLatestReadings()
	if err != nil {
		t.Fatalf("GetLatestReadings: %v", err)
	}
	if len(latest) != len(turbines) {
		t.Errorf("len(latest) = %d, want %d", len(latest), len(turbines))
	}
}

func TestDecodeTelemetry(t *testing.T) {
	reading, ok := decodeTelemetry([]byte(`{"turbine_id":"TX-001","ts":1756000000,"power_mw":2.4,"wind_speed":16.1}`))
	if !ok {
		t.Fatal("decode failed")
	}
	if reading.TurbineID != "TX-001" {
		t.Errorf("TurbineID = %q", reading.TurbineID)
	}
	if !reading.PowerMW.Valid || reading.PowerMW.Float64 != 2.4 {
		t.Errorf("PowerMW = %+v, want 2.4", reading.PowerMW)
	}
	if reading.RotorRPM.Valid {
		t.Error("RotorRPM should be null when absent")
	}
	if got := reading.ObservedAt.Unix(); got != 1756000000 {
		t.Errorf("ObservedAt = %d, want 1756000000", got)
	}
}

func TestDecodeTelemetry_Invalid(t *testing.T) {
	cases := []string{
		`not json`,
		`{"ts":1756000000}`,
		`{}`,
	}
	for _, c := range cases {
		if _, ok := decodeTelemetry([]byte(c)); ok {
			t.Errorf("decodeTelemetry(%q) succeeded, want failure", c)
		}
	}
}

func TestDecodeTelemetry_MissingTimestamp(t *testing.T) {
	before := time.Now().UTC()
	reading, ok := decodeTelemetry([]byte(`{"turbine_id":"IA-003"}`))
	if !ok {
		t.Fatal("decode failed")
	}
	if reading.ObservedAt.Before(before.Add(-time.Second)) {
		t.Errorf("ObservedAt = %v, expected near now", reading.ObservedAt)
	}
}
