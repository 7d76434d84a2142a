package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	// Validate auth config
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "default-secret" {
			return errors.New("auth.jwtSecret must be set to a strong secret when auth is enabled")
		}
		if c.Auth.TokenQueryParam == "" {
			return errors.New("auth.tokenQueryParam must be configured when auth is enabled")
		}
	}
	if c.Auth.Membership.Enabled {
		if !c.Auth.Enabled {
			return errors.New("auth.membership requires auth.enabled: membership is checked against the token identity")
		}
		if c.Auth.Membership.KeyPrefix == "" {
			return errors.New("auth.membership.keyPrefix must be configured when membership checks are enabled")
		}
	}

	// Validate relay timings
	if c.Relay.MessageSizeLimit < 1 {
		return errors.New("relay.messageSizeLimit must be positive")
	}
	if c.Relay.HandshakeTimeout < 1 {
		return errors.New("relay.handshakeTimeout must be at least 1 second")
	}
	if c.Relay.PingInterval < 1 {
		return errors.New("relay.pingInterval must be at least 1 second")
	}
	if c.Relay.PingInterval >= c.Relay.EvictionThreshold {
		return errors.New("relay.pingInterval should be less than relay.evictionThreshold")
	}

	// Validate session store
	switch strings.ToLower(c.Session.Store) {
	case "memory":
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis address must be specified for the redis session store")
		}
	default:
		return fmt.Errorf("invalid session store: %s. Must be 'memory' or 'redis'", c.Session.Store)
	}
	if c.Session.TTL <= c.Relay.EvictionThreshold {
		return errors.New("session.ttl should be greater than relay.evictionThreshold")
	}

	// Validate broker configuration
	switch strings.ToLower(c.Broker.Type) {
	case "none":
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis address must be specified for the redis broker")
		}
		if c.Broker.Channel == "" {
			return errors.New("broker.channel must be configured for the redis broker")
		}
	case "kafka":
		if len(c.Broker.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers must be specified for the kafka broker")
		}
		if c.Broker.Kafka.GroupID == "" {
			return errors.New("kafka groupID must be specified for the kafka broker")
		}
		if c.Broker.Channel == "" {
			return errors.New("broker.channel must be configured for the kafka broker")
		}
	default:
		return fmt.Errorf("invalid broker type: %s. Must be 'none', 'redis' or 'kafka'", c.Broker.Type)
	}

	return nil
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "WBRELAY_PORT")

	// Redis
	viper.BindEnv("redis.address", "WBRELAY_REDIS_ADDRESS")
	viper.BindEnv("redis.password", "WBRELAY_REDIS_PASSWORD")
	viper.BindEnv("redis.db", "WBRELAY_REDIS_DB")

	// Auth
	viper.BindEnv("auth.enabled", "WBRELAY_AUTH_ENABLED")
	viper.BindEnv("auth.jwtSecret", "WBRELAY_AUTH_JWT_SECRET")
	viper.BindEnv("auth.tokenQueryParam", "WBRELAY_AUTH_TOKEN_PARAM")
	viper.BindEnv("auth.revocationListKey", "WBRELAY_AUTH_REVOCATION_KEY")
	viper.BindEnv("auth.membership.enabled", "WBRELAY_MEMBERSHIP_ENABLED")
	viper.BindEnv("auth.membership.keyPrefix", "WBRELAY_MEMBERSHIP_KEY_PREFIX")

	// Relay
	viper.BindEnv("relay.messageSizeLimit", "WBRELAY_MESSAGE_SIZE_LIMIT")
	viper.BindEnv("relay.handshakeTimeout", "WBRELAY_HANDSHAKE_TIMEOUT")
	viper.BindEnv("relay.pingInterval", "WBRELAY_PING_INTERVAL")
	viper.BindEnv("relay.evictionThreshold", "WBRELAY_EVICTION_THRESHOLD")
	viper.BindEnv("relay.writeTimeout", "WBRELAY_WRITE_TIMEOUT")

	// Presence
	viper.BindEnv("presence.multiSession", "WBRELAY_MULTI_SESSION")

	// Session store
	viper.BindEnv("session.store", "WBRELAY_SESSION_STORE")
	viper.BindEnv("session.ttl", "WBRELAY_SESSION_TTL")

	// Broker
	viper.BindEnv("broker.type", "WBRELAY_BROKER_TYPE")
	viper.BindEnv("broker.channel", "WBRELAY_BROKER_CHANNEL")
	viper.BindEnv("broker.kafka.brokers", "WBRELAY_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.groupID", "WBRELAY_KAFKA_GROUPID")
}
