package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server   ServerConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Relay    RelayConfig
	Presence PresenceConfig
	Session  SessionConfig
	Broker   BrokerConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  int // Seconds
	WriteTimeout int // Seconds
}

// RedisConfig describes the shared Redis client used by the token
// revocation list, the board membership sets, the roster store and the
// Redis broker. It is only dialled when at least one of those is enabled.
type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	PoolSize    int
	PoolTimeout int // Seconds
}

type AuthConfig struct {
	Enabled           bool
	JWTSecret         string
	TokenQueryParam   string
	RevocationListKey string
	Membership        MembershipConfig
}

// MembershipConfig controls the board membership check performed at
// admission. KeyPrefix names the Redis set holding a board's member user
// IDs; the board ID is appended to it.
type MembershipConfig struct {
	Enabled   bool
	KeyPrefix string
}

type RelayConfig struct {
	MessageSizeLimit  int64 // Bytes
	HandshakeTimeout  int   // Seconds
	PingInterval      int   // Seconds
	EvictionThreshold int   // Seconds
	WriteTimeout      int   // Seconds
}

// PresenceConfig carries the multi-session policy: when MultiSession is
// false, a user joining a board evicts their own earlier session in that
// room instead of appearing twice in the roster.
type PresenceConfig struct {
	MultiSession bool
}

type SessionConfig struct {
	Store string // "memory" or "redis"
	TTL   int    // Seconds
}

type BrokerConfig struct {
	Type    string // "none", "redis" or "kafka"
	Channel string
	Kafka   KafkaConfig
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

var (
	instance *AppConfig
	once     sync.Once
)

func Initialize(env string) error {
	var initErr error
	once.Do(func() {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")

		viper.AutomaticEnv()
		viper.SetEnvPrefix("WBRELAY")

		setDefaults()
		bindEnvVars()

		if err := viper.ReadInConfig(); err != nil {
			initErr = fmt.Errorf("config file error: %w", err)
			return
		}

		if err := viper.Unmarshal(&instance); err != nil {
			initErr = fmt.Errorf("config unmarshal error: %w", err)
			return
		}

		if err := instance.Validate(); err != nil {
			initErr = fmt.Errorf("config validation failed: %w", err)
			return
		}
	})
	return initErr
}

func Get() *AppConfig {
	return instance
}
