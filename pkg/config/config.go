// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultPort         = "8080"
	DefaultMaxPerSecond = 4
	DefaultMaxPerDay    = 5000
	DefaultSyncPageSize = 100
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultLogLevel     = "info"
)

// Config is the full service configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogPretty bool

	B2ChatBaseURL  string `validate:"required,url"`
	B2ChatUsername string `validate:"required"`
	B2ChatPassword string `validate:"required"`
	HTTPTimeout    time.Duration

	MySQLDSN string `validate:"required"`

	// RedisAddr is optional; without it KPI snapshots are recomputed on
	// every request.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MaxRequestsPerSecond int `validate:"gt=0"`
	MaxRequestsPerDay    int `validate:"gt=0"`
	SyncPageSize         int `validate:"gt=0,lte=500"`
}

var validate = validator.New()

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first; missing .env is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", DefaultPort),
		LogLevel:  getEnv("LOG_LEVEL", DefaultLogLevel),
		LogPretty: getEnvBool("LOG_PRETTY", false),

		B2ChatBaseURL:  getEnv("B2CHAT_BASE_URL", ""),
		B2ChatUsername: getEnv("B2CHAT_USERNAME", ""),
		B2ChatPassword: getEnv("B2CHAT_PASSWORD", ""),
		HTTPTimeout:    getEnvDuration("B2CHAT_HTTP_TIMEOUT", DefaultHTTPTimeout),

		MySQLDSN: getEnv("MYSQL_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MaxRequestsPerSecond: getEnvInt("MAX_REQUESTS_PER_SECOND", DefaultMaxPerSecond),
		MaxRequestsPerDay:    getEnvInt("MAX_REQUESTS_PER_DAY", DefaultMaxPerDay),
		SyncPageSize:         getEnvInt("SYNC_PAGE_SIZE", DefaultSyncPageSize),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
