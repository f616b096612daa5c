package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenieAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windfleet_genie_api_calls_total",
			Help: "Total Genie conversational API calls",
		},
		[]string{"endpoint", "status"},
	)

	GenieAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "windfleet_genie_api_latency_seconds",
			Help:    "Genie API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ChatSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windfleet_chat_sends_total",
			Help: "Total chat messages sent through the conversation controller",
		},
		[]string{"result"},
	)

	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windfleet_readings_ingested_total",
			Help: "Total turbine readings successfully ingested",
		},
		[]string{"source"},
	)

	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "windfleet_live_clients",
			Help: "Connected live dashboard WebSocket clients",
		},
	)
)
