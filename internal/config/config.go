package config

import (
	"errors"
	"net"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingMongoURI is returned when MONGODB_URI is not set.
var ErrMissingMongoURI = errors.New("environment variable MONGODB_URI is required")

// Config holds application configuration
type Config struct {
	MongoDB  MongoDBConfig
	Redis    RedisConfig
	History  HistoryConfig
	LogLevel string
	// Pushgateway is the Prometheus pushgateway URL; empty disables pushing.
	Pushgateway string
}

type MongoDBConfig struct {
	URI             string
	Database        string
	Collection      string
	UsersCollection string
	Timeout         time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr is host:port, or empty when no Redis host is configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return net.JoinHostPort(r.Host, r.Port)
}

type HistoryConfig struct {
	CacheTTL time.Duration
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("MONGODB_DATABASE", "gogotex")
	v.SetDefault("MONGODB_COLLECTION", "documents")
	v.SetDefault("MONGODB_USERS_COLLECTION", "users")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("HISTORY_CACHE_TTL", 300)
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		MongoDB: MongoDBConfig{
			URI:             v.GetString("MONGODB_URI"),
			Database:        v.GetString("MONGODB_DATABASE"),
			Collection:      v.GetString("MONGODB_COLLECTION"),
			UsersCollection: v.GetString("MONGODB_USERS_COLLECTION"),
			Timeout:         time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		History: HistoryConfig{
			CacheTTL: time.Duration(v.GetInt("HISTORY_CACHE_TTL")) * time.Second,
		},
		LogLevel:    v.GetString("LOG_LEVEL"),
		Pushgateway: v.GetString("METRICS_PUSHGATEWAY"),
	}

	if cfg.MongoDB.URI == "" {
		return cfg, ErrMissingMongoURI
	}
	return cfg, nil
}
