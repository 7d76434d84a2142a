// Package server owns the HTTP surface of the relay: the websocket
// endpoint and a health probe. Metrics are served from their own port by
// the metrics package.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// New builds the router and server. The relay endpoint matches
// /relay/<room> where room is board:<boardId>; validating the room shape is
// the gatekeeper's job, not the router's.
func New(port int, relayHandler http.HandlerFunc, readTimeout, writeTimeout int, log *slog.Logger) *Server {
	r := mux.NewRouter()
	r.HandleFunc("/relay/{room}", relayHandler)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
			// Hijacked websocket connections are exempt from these; they
			// only bound the handshake and the plain HTTP endpoints.
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		log: log.With("component", "server"),
	}
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight plain
// HTTP requests. Live websocket sessions are closed separately through the
// registry.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
