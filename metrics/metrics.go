package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_sessions_active",
		Help: "The current number of live relay sessions across all rooms.",
	})
	TotalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_sessions_total",
		Help: "The total number of sessions admitted since start.",
	})
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_rooms_active",
		Help: "The current number of rooms with at least one session.",
	})
	Evictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_evictions_total",
		Help: "The total number of sessions evicted for missed heartbeats.",
	})

	// Frame metrics
	SyncFramesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_sync_frames_total",
		Help: "The total number of binary synchronization frames relayed.",
	})
	ControlFramesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_control_frames_total",
		Help: "The total number of control frames handled, by frame type.",
	}, []string{"type"})
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_frames_dropped_total",
		Help: "The total number of malformed or unrecognized frames discarded.",
	})

	// Auth metrics
	AuthSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_auth_success_total",
		Help: "The total number of successful admissions.",
	})
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_auth_failures_total",
		Help: "The total number of rejected connection attempts.",
	}, []string{"reason"})

	// Broker metrics
	BrokerMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_broker_messages_published_total",
		Help: "The total number of frames published to the message broker.",
	}, []string{"broker_type"})
)

// StartServer starts the HTTP server for Prometheus metrics.
func StartServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	slog.Info("starting metrics server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server failed", "error", err)
			os.Exit(1)
		}
	}()
}
