package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/kkapil94/whiteBoard/auth"
	"github.com/kkapil94/whiteBoard/broker"
	"github.com/kkapil94/whiteBoard/config"
	"github.com/kkapil94/whiteBoard/metrics"
	"github.com/kkapil94/whiteBoard/presence"
	"github.com/kkapil94/whiteBoard/relay"
	"github.com/kkapil94/whiteBoard/room"
	"github.com/kkapil94/whiteBoard/server"
	"github.com/kkapil94/whiteBoard/services"
	"github.com/kkapil94/whiteBoard/session"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if err := config.Initialize(env); err != nil {
		log.Error("failed to initialize config", "error", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// Unique ID for this relay instance; broker messages carry it so an
	// instance never replays its own frames.
	serverID := uuid.New().String()
	log.Info("starting relay instance", "server_id", serverID, "env", env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs the revocation list, membership sets, the redis session
	// store and the redis broker. Only dial it when something needs it.
	var redisClient *redis.Client
	needsRedis := cfg.Auth.Enabled ||
		strings.EqualFold(cfg.Session.Store, "redis") ||
		strings.EqualFold(cfg.Broker.Type, "redis")
	if needsRedis {
		var err error
		redisClient, err = services.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer services.CloseRedisClient(redisClient)
	}

	// Session record store
	var store session.Store
	switch strings.ToLower(cfg.Session.Store) {
	case "redis":
		store = session.NewRedisStore(redisClient, time.Duration(cfg.Session.TTL)*time.Second)
	default:
		store = session.NewMemoryStore(time.Duration(cfg.Session.TTL) * time.Second)
	}

	// Optional cross-instance broker
	var messageBroker broker.MessageBroker
	switch strings.ToLower(cfg.Broker.Type) {
	case "redis":
		messageBroker = broker.NewRedisBroker(redisClient, log)
	case "kafka":
		var err error
		messageBroker, err = broker.NewKafkaBroker(cfg.Broker.Kafka.Brokers, cfg.Broker.Kafka.GroupID, log)
		if err != nil {
			log.Error("failed to create kafka broker", "error", err)
			os.Exit(1)
		}
	case "none":
		// Single-instance deployment.
	}
	if messageBroker != nil {
		defer messageBroker.Close()
		log.Info("cross-instance fan-out enabled", "broker", messageBroker.Type(), "channel", cfg.Broker.Channel)
	}

	// Admission checks
	var verifier *auth.Verifier
	var membership auth.Membership = auth.AllowAll{}
	if cfg.Auth.Enabled {
		verifier = auth.NewVerifier(&cfg.Auth, redisClient, log)
		if cfg.Auth.Membership.Enabled {
			membership = auth.NewRedisMembership(redisClient, cfg.Auth.Membership.KeyPrefix)
		}
		log.Info("admission checks enabled", "membership", cfg.Auth.Membership.Enabled)
	} else {
		log.Warn("authentication is DISABLED; connections get guest identities")
	}
	gatekeeper := relay.NewGatekeeper(&cfg.Auth, verifier, membership, log)

	// Relay core
	registry := room.NewRegistry(log)
	tracker := presence.NewTracker(registry, log)
	handler := relay.NewHandler(registry, tracker, gatekeeper, store, messageBroker, cfg, serverID, log)
	supervisor := relay.NewSupervisor(registry, &cfg.Relay, log)

	go supervisor.Run(ctx)
	if err := handler.ListenForPeerFrames(ctx); err != nil {
		log.Error("failed to subscribe to broker", "error", err)
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	srv := server.New(cfg.Server.Port, handler.HandleRelay, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("shutdown signal received")

	// Graceful shutdown: stop accepting, close every session (each close
	// runs its own leave + "user left" path), drain broker publishes.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	registry.CloseAll("server shutting down")
	handler.WaitForCompletion()
	cancel()
	log.Info("relay stopped")
}
