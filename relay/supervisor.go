package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kkapil94/whiteBoard/config"
	"github.com/kkapil94/whiteBoard/metrics"
	"github.com/kkapil94/whiteBoard/room"
)

// Supervisor probes every session on a fixed interval and evicts the ones
// that stayed silent past the eviction threshold, so rooms never
// accumulate ghost members behind dead TCP connections.
type Supervisor struct {
	registry *room.Registry
	cfg      *config.RelayConfig
	log      *slog.Logger
}

func NewSupervisor(registry *room.Registry, cfg *config.RelayConfig, log *slog.Logger) *Supervisor {
	return &Supervisor{
		registry: registry,
		cfg:      cfg,
		log:      log.With("component", "supervisor"),
	}
}

// Run ticks until the context is cancelled. Call it on its own goroutine.
func (sv *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(sv.cfg.PingInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sv.sweep()
		}
	}
}

// sweep visits every session once: evict the silent ones, ping the rest.
// Eviction goes through the session's normal close path, so the room leave
// and the "user left" broadcast fire exactly once even when a sweep races
// a voluntary disconnect.
func (sv *Supervisor) sweep() {
	threshold := time.Duration(sv.cfg.EvictionThreshold) * time.Second
	total := 0

	sv.registry.Each(func(boardID string, rs room.Session) {
		total++
		s, ok := rs.(*Session)
		if !ok {
			return
		}

		if s.SilentFor(threshold) {
			sv.log.Info("evicting unresponsive session", "board", boardID, "session", s.ID(), "user", s.User().UserID)
			metrics.Evictions.Inc()
			s.Close(websocket.ClosePolicyViolation, "heartbeat timeout")
			return
		}

		if err := s.Ping(); err != nil {
			sv.log.Warn("ping failed", "board", boardID, "session", s.ID(), "error", err)
			s.Close(websocket.CloseInternalServerErr, "ping failure")
		}
	})

	// Diagnostic only; rooms/sessions counts carry no correctness weight.
	sv.log.Info("liveness sweep", "active_sessions", total, "rooms", sv.registry.RoomCount())
}
