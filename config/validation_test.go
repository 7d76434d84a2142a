package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{Port: 8080, ReadTimeout: 15, WriteTimeout: 15},
		Redis:  RedisConfig{Address: "localhost:6379"},
		Auth: AuthConfig{
			Enabled:         true,
			JWTSecret:       "a-real-secret",
			TokenQueryParam: "token",
			Membership:      MembershipConfig{Enabled: true, KeyPrefix: "board:members:"},
		},
		Relay: RelayConfig{
			MessageSizeLimit:  1 << 20,
			HandshakeTimeout:  10,
			PingInterval:      15,
			EvictionThreshold: 30,
			WriteTimeout:      10,
		},
		Session: SessionConfig{Store: "memory", TTL: 60},
		Broker:  BrokerConfig{Type: "none", Channel: "relay:frames"},
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *AppConfig) {},
		},
		{
			name:    "invalid port",
			mutate:  func(c *AppConfig) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "default secret with auth enabled",
			mutate:  func(c *AppConfig) { c.Auth.JWTSecret = "default-secret" },
			wantErr: "jwtSecret",
		},
		{
			name: "membership without auth",
			mutate: func(c *AppConfig) {
				c.Auth.Enabled = false
				c.Auth.JWTSecret = ""
			},
			wantErr: "membership requires auth.enabled",
		},
		{
			name: "ping interval not below eviction threshold",
			mutate: func(c *AppConfig) {
				c.Relay.PingInterval = 30
				c.Relay.EvictionThreshold = 30
			},
			wantErr: "pingInterval",
		},
		{
			name:    "session ttl below eviction threshold",
			mutate:  func(c *AppConfig) { c.Session.TTL = 30 },
			wantErr: "session.ttl",
		},
		{
			name:    "unknown session store",
			mutate:  func(c *AppConfig) { c.Session.Store = "etcd" },
			wantErr: "invalid session store",
		},
		{
			name:    "unknown broker type",
			mutate:  func(c *AppConfig) { c.Broker.Type = "rabbitmq" },
			wantErr: "invalid broker type",
		},
		{
			name: "kafka broker without brokers",
			mutate: func(c *AppConfig) {
				c.Broker.Type = "kafka"
				c.Broker.Kafka = KafkaConfig{GroupID: "g1"}
			},
			wantErr: "kafka brokers",
		},
		{
			name: "redis broker without channel",
			mutate: func(c *AppConfig) {
				c.Broker.Type = "redis"
				c.Broker.Channel = ""
			},
			wantErr: "broker.channel",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
