package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/galeops/windfleet/internal/metrics"
	"github.com/galeops/windfleet/internal/models"
	"github.com/galeops/windfleet/internal/store"
)

const telemetryTopic = "windfleet/+/telemetry"

// MQTTConfig holds broker connection settings for the live telemetry feed.
type MQTTConfig struct {
	Broker    string
	Port      int
	Username  string
	Password  string
	Topic     string
	QueueSize int
}

// telemetryPayload is the JSON shape published by turbine gateways.
type telemetryPayload struct {
	TurbineID   string   `json:"turbine_id"`
	Timestamp   int64    `json:"ts"`
	PowerMW     *float64 `json:"power_mw"`
	WindSpeed   *float64 `json:"wind_speed"`
	RotorRPM    *float64 `json:"rotor_rpm"`
	NacelleTemp *float64 `json:"nacelle_temp"`
}

// MQTTSource subscribes to the telemetry topic and persists decoded
// readings. Messages arriving faster than the storage worker drains are
// dropped in favour of the latest data.
type MQTTSource struct {
	config   MQTTConfig
	store    *store.Store
	client   mqtt.Client
	readings chan models.TurbineReading
	done     chan struct{}
}

func NewMQTTSource(config MQTTConfig, st *store.Store) *MQTTSource {
	if config.Topic == "" {
		config.Topic = telemetryTopic
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	return &MQTTSource{
		config:   config,
		store:    st,
		readings: make(chan models.TurbineReading, config.QueueSize),
		done:     make(chan struct{}),
	}
}

func (m *MQTTSource) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", m.config.Broker, m.config.Port))
	opts.SetClientID(fmt.Sprintf("windfleet-ingest-%d", time.Now().Unix()))

	if m.config.Username != "" {
		opts.SetUsername(m.config.Username)
		opts.SetPassword(m.config.Password)
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = m.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("mqtt: connection lost: %v (will auto-reconnect)", err)
	}

	m.client = mqtt.NewClient(opts)

	log.Printf("mqtt: connecting to %s:%d", m.config.Broker, m.config.Port)
	token := m.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	go m.storageWorker(ctx)
	return nil
}

func (m *MQTTSource) Stop() {
	close(m.done)
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(1000)
	}
}

func (m *MQTTSource) onConnect(client mqtt.Client) {
	token := client.Subscribe(m.config.Topic, 0, m.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("mqtt: subscribe timeout for %s", m.config.Topic)
		return
	}
	if token.Error() != nil {
		log.Printf("mqtt: subscribe error: %v", token.Error())
		return
	}
	log.Printf("mqtt: subscribed to %s", m.config.Topic)
}

func (m *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	reading, ok := decodeTelemetry(msg.Payload())
	if !ok {
		return
	}

	select {
	case m.readings <- reading:
	case <-m.done:
	default:
		// Queue full, drop in favour of fresher data.
	}
}

func decodeTelemetry(payload []byte) (models.TurbineReading, bool) {
	var p telemetryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.TurbineReading{}, false
	}
	if p.TurbineID == "" {
		return models.TurbineReading{}, false
	}

	observed := time.Now().UTC()
	if p.Timestamp > 0 {
		observed = time.Unix(p.Timestamp, 0).UTC()
	}

	return models.TurbineReading{
		TurbineID:   p.TurbineID,
		ObservedAt:  observed,
		PowerMW:     nullFloat(p.PowerMW),
		WindSpeed:   nullFloat(p.WindSpeed),
		RotorRPM:    nullFloat(p.RotorRPM),
		NacelleTemp: nullFloat(p.NacelleTemp),
	}, true
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (m *MQTTSource) storageWorker(ctx context.Context) {
	for {
		select {
		case r := <-m.readings:
			if err := m.store.InsertReading(r); err != nil {
				log.Printf("mqtt: insert reading %s: %v", r.TurbineID, err)
				continue
			}
			metrics.ReadingsIngested.WithLabelValues("mqtt").Inc()
		case <-ctx.Done():
			return
		case <-m.done:
			return
		}
	}
}
