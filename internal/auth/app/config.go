package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer   string // Issuer claim embedded in every token
	Audience string // Audience claim embedded in every token

	AccessSecret  string // Required: HS256 secret for access + single-use tokens
	RefreshSecret string // Required: HS256 secret for refresh tokens

	AccessTTL     time.Duration // Access token lifetime (default: 15m)
	RefreshTTL    time.Duration // Refresh token lifetime (default: 168h)
	RememberMeTTL time.Duration // Extended refresh lifetime (default: 720h)

	DatabaseFile string // Path to SQLite database file (default: ./auth.db)
	RedisAddr    string // Optional: redis host:port; empty runs the in-memory cache
	RedisPass    string // Optional: redis password
	RedisDB      int    // Optional: redis database index

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	NotifyQueueSize      int           // Outbound notification queue depth (default: 128)
}

func LoadConfig() Config {
	return Config{
		Issuer:   getEnvOrDefault("AUTH_ISSUER", "showcase-auth"),
		Audience: getEnvOrDefault("AUTH_AUDIENCE", "showcase"),

		AccessSecret:  os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("AUTH_REFRESH_SECRET"),

		AccessTTL:     getEnvDurationOrDefault("AUTH_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:    getEnvDurationOrDefault("AUTH_REFRESH_TTL", 7*24*time.Hour),
		RememberMeTTL: getEnvDurationOrDefault("AUTH_REMEMBER_ME_TTL", 30*24*time.Hour),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:      getEnvIntOrDefault("REDIS_DB", 0),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		NotifyQueueSize:      getEnvIntOrDefault("NOTIFY_QUEUE_SIZE", 128),
	}
}

// Validate rejects configurations that cannot run safely. The length policy
// on signing secrets only binds in production-like environments; the token
// service always rejects missing or identical secrets.
func (cfg Config) Validate() error {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET are required")
	}
	return nil
}

// Production reports whether the deployment is production-like, which
// tightens the secret-length policy.
func (cfg Config) Production() bool {
	return cfg.Env == "prod" || cfg.Env == "staging"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
