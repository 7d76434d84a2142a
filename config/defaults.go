package config

import "github.com/spf13/viper"

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 15)
	viper.SetDefault("server.writeTimeout", 15)

	// Redis
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolSize", 100)
	viper.SetDefault("redis.poolTimeout", 5)

	// Auth
	viper.SetDefault("auth.enabled", false) // Default to off for local development
	viper.SetDefault("auth.jwtSecret", "default-secret")
	viper.SetDefault("auth.tokenQueryParam", "token")
	viper.SetDefault("auth.revocationListKey", "jwt:revoked")
	viper.SetDefault("auth.membership.enabled", false)
	viper.SetDefault("auth.membership.keyPrefix", "board:members:")

	// Relay
	viper.SetDefault("relay.messageSizeLimit", 1048576) // Sync frames can carry full document state
	viper.SetDefault("relay.handshakeTimeout", 10)
	viper.SetDefault("relay.pingInterval", 15)
	viper.SetDefault("relay.evictionThreshold", 30)
	viper.SetDefault("relay.writeTimeout", 10)

	// Presence
	viper.SetDefault("presence.multiSession", true)

	// Session store
	viper.SetDefault("session.store", "memory")
	viper.SetDefault("session.ttl", 60)

	// Broker
	viper.SetDefault("broker.type", "none")
	viper.SetDefault("broker.channel", "relay:frames")
	viper.SetDefault("broker.kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("broker.kafka.groupID", "whiteboard-relay")

	// Metrics
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")
}
