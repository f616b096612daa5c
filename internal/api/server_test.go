package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/galeops/windfleet/internal/config"
	"github.com/galeops/windfleet/internal/models"
	"github.com/galeops/windfleet/internal/store"
)

type stubResponder struct {
	reply *models.ChatReply
	err   error
	calls int
}

func (r *stubResponder) Send(ctx context.Context, content, conversationID string) (*models.ChatReply, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.reply, nil
}

func setupTestServer(t *testing.T, responder *stubResponder) (*Server, *store.Store) {
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

	farms := config.Default().WindFarms()
	for _, f := range farms {
		if err := st.UpsertFarm(f); err != nil {
			t.Fatalf("UpsertFarm: %v", err)
		}
	}

	if responder == nil {
		responder = &stubResponder{reply: &models.ChatReply{ConversationID: "c1", Content: "hi"}}
	}
	return NewServer(st, "0", farms, responder), st
}

func seedTurbines(t *testing.T, st *store.Store) {
	t.Helper()
	turbines := []models.Turbine{
		{TurbineID: "TX-001", FarmID: "tx-panhandle", Name: "TX-001", Latitude: 35.2, Longitude: -101.8, Status: models.StatusOptimal, CapacityMW: 3, HealthScore: 90},
		{TurbineID: "TX-002", FarmID: "tx-panhandle", Name: "TX-002", Latitude: 35.3, Longitude: -101.7, Status: models.StatusModerate, CapacityMW: 3, HealthScore: 60},
		{TurbineID: "IA-001", FarmID: "ia-corn-belt", Name: "IA-001", Latitude: 42.0, Longitude: -93.5, Status: models.StatusMaintenance, CapacityMW: 3, HealthScore: 30},
	}
	for _, tb := range turbines {
		if err := st.UpsertTurbine(tb); err != nil {
			t.Fatalf("UpsertTurbine: %v", err)
		}
	}
	now := time.Now().UTC().Truncate(time.Minute)
	st.InsertReading(models.TurbineReading{TurbineID: "TX-001", ObservedAt: now, PowerMW: sql.NullFloat64{Float64: 2.5, Valid: true}, WindSpeed: sql.NullFloat64{Float64: 16, Valid: true}})
	st.InsertReading(models.TurbineReading{TurbineID: "TX-002", ObservedAt: now, PowerMW: sql.NullFloat64{Float64: 1.2, Valid: true}})
}

func getJSON(t *testing.T, handler http.Handler, method, path, body string, out any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s: %v\nbody: %s", method, path, err, rec.Body.String())
		}
	}
	return rec
}

func TestHandleKPIs(t *testing.T) {
	srv, st := setupTestServer(t, nil)
	seedTurbines(t, st)

	var kpis models.FleetKPIs
	rec := getJSON(t, srv.Handler(), "GET", "/api/fleet/kpis", "", &kpis)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if kpis.TotalTurbines != 3 {
		t.Errorf("TotalTurbines = %d, want 3", kpis.TotalTurbines)
	}
	if kpis.MaintenanceTurbines != 1 || kpis.NeedingMaintenance != 1 {
		t.Errorf("maintenance = %d/%d, want 1/1", kpis.MaintenanceTurbines, kpis.NeedingMaintenance)
	}
	if kpis.FleetHealthPct != 60.0 {
		t.Errorf("FleetHealthPct = %.1f, want 60.0", kpis.FleetHealthPct)
	}
}

func TestHandleTurbines_Filter(t *testing.T) {
	srv, st := setupTestServer(t, nil)
	seedTurbines(t, st)
	h := srv.Handler()

	var all []models.Turbine
	getJSON(t, h, "GET", "/api/fleet/turbines", "", &all)
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}

	var optimal []models.Turbine
	getJSON(t, h, "GET", "/api/fleet/turbines?status=optimal", "", &optimal)
	if len(optimal) != 1 || optimal[0].TurbineID != "TX-001" {
		t.Errorf("optimal = %+v", optimal)
	}

	var paged []models.Turbine
	getJSON(t, h, "GET", "/api/fleet/turbines?limit=1&offset=1", "", &paged)
	if len(paged) != 1 {
		t.Errorf("len(paged) = %d, want 1", len(paged))
	}

	rec := getJSON(t, h, "GET", "/api/fleet/turbines?status=bogus", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status code = %d, want 400", rec.Code)
	}
}

func TestHandleTurbine_NotFound(t *testing.T) {
	srv, st := setupTestServer(t, nil)
	seedTurbines(t, st)
	h := srv.Handler()

	var turbine models.Turbine
	rec := getJSON(t, h, "GET", "/api/fleet/turbines/TX-001", "", &turbine)
	if rec.Code != http.StatusOK || turbine.TurbineID != "TX-001" {
		t.Errorf("code = %d, turbine = %+v", rec.Code, turbine)
	}

	rec = getJSON(t, h, "GET", "/api/fleet/turbines/NOPE", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing turbine code = %d, want 404", rec.Code)
	}
}

func TestHandleScheduleMaintenance(t *testing.T) {
	srv, st := setupTestServer(t, nil)
	seedTurbines(t, st)
	h := srv.Handler()

	var ack struct {
		Success   bool   `json:"success"`
		TurbineID string `json:"turbine_id"`
		Message   string `json:"message"`
	}
	rec := getJSON(t, h, "POST", "/api/fleet/turbines/TX-001/maintenance", `{"scheduled_date":"2026-09-01T08:00:00Z"}`, &ack)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !ack.Success || ack.TurbineID != "TX-001" {
		t.Errorf("ack = %+v", ack)
	}

	rec = getJSON(t, h, "POST", "/api/fleet/turbines/NOPE/maintenance", `{"scheduled_date":"2026-09-01T08:00:00Z"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing turbine code = %d, want 404", rec.Code)
	}

	rec = getJSON(t, h, "POST", "/api/fleet/turbines/TX-001/maintenance", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing date code = %d, want 400", rec.Code)
	}
}

func TestHandleEnergyOutput_FromStore(t *testing.T) {
	srv, st := setupTestServer(t, nil)
	seedTurbines(t, st)

	var points []models.EnergyPoint
	rec := getJSON(t, srv.Handler(), "GET", "/api/fleet/energy-output?hours=24", "", &points)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(points) != 1 {
		t.Fatalf("len(points) = %d, want 1 store bucket", len(points))
	}
	if math.Abs(points[0].ValueMWh-3.7) > 1e-9 {
		t.Errorf("bucket = %.4f, want 3.7", points[0].ValueMWh)
	}
}

func TestHandleEnergyOutput_SimulatedFallback(t *testing.T) {
	srv, _ := setupTestServer(t, nil)

	var points []models.EnergyPoint
	rec := getJSON(t, srv.Handler(), "GET", "/api/fleet/energy-output?hours=12", "", &points)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(points) != 12 {
		t.Errorf("len(points) = %d, want 12", len(points))
	}
}

func TestHandleClusters(t *testing.T) {
	srv, st := setupTestServer(t, nil)
	seedTurbines(t, st)

	var markers []clusterMarker
	getJSON(t, srv.Handler(), "GET", "/api/fleet/clusters", "", &markers)
	if len(markers) != 3 {
		t.Fatalf("len(markers) = %d, want 3", len(markers))
	}
	byID := map[string]clusterMarker{}
	for _, m := range markers {
		byID[m.ID] = m
	}
	tx := byID["TX-001"]
	if tx.FarmName != "Texas Panhandle" || tx.Region != "Great Plains" {
		t.Errorf("TX-001 farm = %q/%q", tx.FarmName, tx.Region)
	}
	if tx.EnergyOutput != 2.5 {
		t.Errorf("TX-001 energy = %.1f, want 2.5", tx.EnergyOutput)
	}
}

func TestHandleAssistantSummary_Static(t *testing.T) {
	srv, st := setupTestServer(t, nil)
	seedTurbines(t, st)

	var summary models.AssistantSummary
	rec := getJSON(t, srv.Handler(), "GET", "/api/assistant-summary", "", &summary)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if summary.Message == "" || len(summary.PriorityItems) == 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestHandleChatSend(t *testing.T) {
	responder := &stubResponder{reply: &models.ChatReply{
		ConversationID: "c9",
		MessageID:      "m1",
		Content:        "42 turbines",
		SQLQuery:       "SELECT count(*) FROM turbines",
	}}
	srv, _ := setupTestServer(t, responder)
	h := srv.Handler()

	var reply models.ChatReply
	rec := getJSON(t, h, "POST", "/api/chat/send-message", `{"content":"how many turbines?"}`, &reply)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if reply.ConversationID != "c9" || reply.Content != "42 turbines" {
		t.Errorf("reply = %+v", reply)
	}

	rec = getJSON(t, h, "POST", "/api/chat/send-message", `{"content":"   "}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty content code = %d, want 400", rec.Code)
	}
}

func TestHandleChatSend_ResponderError(t *testing.T) {
	srv, _ := setupTestServer(t, &stubResponder{err: errors.New("genie down")})

	rec := getJSON(t, srv.Handler(), "POST", "/api/chat/send-message", `{"content":"hi"}`, nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("code = %d, want 502", rec.Code)
	}
}

func TestSessionFlow(t *testing.T) {
	responder := &stubResponder{reply: &models.ChatReply{ConversationID: "c1", MessageID: "m1", Content: "reply"}}
	srv, _ := setupTestServer(t, responder)
	h := srv.Handler()

	var created struct {
		SessionID string    `json:"session_id"`
		Map       mapState  `json:"map"`
		Chat      chatState `json:"chat"`
	}
	rec := getJSON(t, h, "POST", "/api/session", "", &created)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d", rec.Code)
	}
	if created.SessionID == "" {
		t.Fatal("empty session id")
	}
	if created.Map.View.Zoom != 4 {
		t.Errorf("initial zoom = %d, want overview 4", created.Map.View.Zoom)
	}
	if len(created.Chat.Messages) != 1 {
		t.Errorf("greeting messages = %d, want 1", len(created.Chat.Messages))
	}

	base := "/api/session/" + created.SessionID

	var selected struct {
		Changed bool     `json:"changed"`
		Map     mapState `json:"map"`
	}
	getJSON(t, h, "POST", base+"/map/select", `{"id":"tx-panhandle"}`, &selected)
	if !selected.Changed || selected.Map.SelectedID != "tx-panhandle" {
		t.Errorf("select = %+v", selected)
	}
	if selected.Map.View.Zoom != 8 {
		t.Errorf("focus zoom = %d, want 8", selected.Map.View.Zoom)
	}
	if selected.Map.Markers["tx-panhandle"].Variant != "emphasized" {
		t.Errorf("marker = %+v", selected.Map.Markers["tx-panhandle"])
	}

	// Toggling the same farm again returns to the overview.
	getJSON(t, h, "POST", base+"/map/select", `{"id":"tx-panhandle"}`, &selected)
	if selected.Map.SelectedID != "" || selected.Map.View.Zoom != 4 {
		t.Errorf("after re-toggle map = %+v", selected.Map)
	}

	var sent struct {
		Accepted bool      `json:"accepted"`
		Chat     chatState `json:"chat"`
	}
	getJSON(t, h, "POST", base+"/chat", `{"content":"hello"}`, &sent)
	if !sent.Accepted {
		t.Fatal("send not accepted")
	}
	if len(sent.Chat.Messages) != 3 {
		t.Fatalf("messages = %d, want 3 (greeting, user, reply)", len(sent.Chat.Messages))
	}
	if sent.Chat.ConversationID != "c1" {
		t.Errorf("conversation id = %q", sent.Chat.ConversationID)
	}

	var revealed struct {
		MessageID string `json:"message_id"`
		Revealed  bool   `json:"revealed"`
	}
	getJSON(t, h, "POST", base+"/chat/reveal", `{"message_id":"m1"}`, &revealed)
	if !revealed.Revealed {
		t.Error("reveal toggle should be on")
	}
	getJSON(t, h, "POST", base+"/chat/reveal", `{"message_id":"m1"}`, &revealed)
	if revealed.Revealed {
		t.Error("second toggle should be off")
	}

	rec = getJSON(t, h, "GET", "/api/session/unknown/map", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session code = %d, want 404", rec.Code)
	}
}

func TestHandleHealth_Degraded(t *testing.T) {
	srv, st := setupTestServer(t, nil)

	var health struct {
		Status string `json:"status"`
	}
	getJSON(t, srv.Handler(), "GET", "/health", "", &health)
	if health.Status != "degraded" {
		t.Errorf("status = %q, want degraded with no readings", health.Status)
	}

	st.InsertReading(models.TurbineReading{TurbineID: "TX-001", ObservedAt: time.Now().UTC()})
	getJSON(t, srv.Handler(), "GET", "/health", "", &health)
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok with a fresh reading", health.Status)
	}
}
