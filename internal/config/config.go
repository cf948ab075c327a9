package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort  string
	JWTSecret []byte

	// Bootstrap administrator credentials. The hash is a bcrypt hash; when it
	// is empty the admin surface refuses all logins.
	AdminUsername     string
	AdminPasswordHash string

	Database DatabaseConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Limiter  LimiterConfig
	Usage    UsageConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProviderConfig holds provider dispatch settings
type ProviderConfig struct {
	DefaultProviderID string        // used when a request omits providerId
	RequestTimeout    time.Duration // upper bound for one upstream call
}

// LimiterConfig selects the rate limiter backend.
// "memory" keeps per-key fixed-window counters in process; "redis" shares a
// sliding window across instances.
type LimiterConfig struct {
	Backend string
}

// UsageConfig holds settings for the asynchronous usage recorder.
type UsageConfig struct {
	QueueBackend string // "memory" or "redis"
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:          getEnvString("HTTP_PORT", "8080"),
		JWTSecret:         []byte(getEnvString("JWT_SECRET", "supersecretkey")),
		AdminUsername:     getEnvString("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnvString("ADMIN_PASSWORD_HASH", ""),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Provider: ProviderConfig{
			DefaultProviderID: getEnvString("DEFAULT_PROVIDER_ID", "openai"),
			RequestTimeout:    getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Limiter: LimiterConfig{
			Backend: getEnvString("RATE_LIMITER_BACKEND", "memory"),
		},
		Usage: UsageConfig{
			QueueBackend: getEnvString("USAGE_QUEUE_BACKEND", "memory"),
			BatchSize:    getEnvInt("USAGE_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("USAGE_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("USAGE_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("USAGE_RETRY_BACKOFF", 1*time.Second),
		},
	}

	return cfg, nil
}
