// Package metrics exposes the server's Prometheus instruments. Handlers never
// register metrics themselves; the session wrapper and the feature services
// increment these shared instruments so coverage is uniform.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Technical metrics.
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_server_requests_total",
		Help: "Total WS connection requests",
	})
	ErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_server_errors_total",
		Help: "Total WS errors",
	})
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ws_server_request_duration_seconds",
		Help:    "WS connection duration (seconds)",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_server_active_connections",
		Help: "Active WS connections",
	})

	// Business metrics.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_server_active_rooms",
		Help: "Active rooms",
	})
	ActiveUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_server_active_users",
		Help: "Active users (approx.)",
	})
	MessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_server_messages_total",
		Help: "Total chat messages sent",
	})
	VotesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_server_votes_total",
		Help: "Total votes cast",
	})
)
